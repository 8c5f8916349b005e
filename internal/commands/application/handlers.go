package application

import (
	"context"

	commands "wms-core/internal/commands/domain"
	locationapp "wms-core/internal/location/application"
	location "wms-core/internal/location/domain"
	replicaapp "wms-core/internal/replica/application"
	tuapp "wms-core/internal/transportunit/application"
)

// Services are the application services commands are routed to. Nil
// services leave their command types unregistered.
type Services struct {
	Locations    *locationapp.LocationStateService
	Groups       *locationapp.GroupStateService
	Replicas     *replicaapp.Registry
	Reservations *tuapp.ReservationEngine
	Units        *tuapp.TransportUnitService
}

// RegisterHandlers binds every command type to its service operation.
func RegisterHandlers(r *Router, s Services) {
	if s.Locations != nil {
		Handle(r, commands.TypeChangeLocationState, func(ctx context.Context, _ commands.Command, p commands.ChangeLocationState) error {
			ref, err := p.Ref()
			if err != nil {
				return err
			}
			_, err = s.Locations.ChangeState(ctx, ref, p.ErrorCode, p.PLCState)
			return err
		})
		Handle(r, commands.TypeSetLocationEmpty, func(ctx context.Context, _ commands.Command, p commands.SetLocationEmpty) error {
			ref, err := p.Ref()
			if err != nil {
				return err
			}
			_, err = s.Locations.SetEmpty(ctx, ref)
			return err
		})
	}

	if s.Groups != nil {
		Handle(r, commands.TypeChangeGroupState, func(ctx context.Context, _ commands.Command, p commands.ChangeGroupState) error {
			_, err := s.Groups.ChangeState(ctx, p.GroupName, p.ErrorCode)
			return err
		})
		Handle(r, commands.TypeSetGroupState, func(ctx context.Context, _ commands.Command, p commands.SetGroupState) error {
			in, err := location.ParseGroupState(p.StateIn)
			if err != nil {
				return err
			}
			out, err := location.ParseGroupState(p.StateOut)
			if err != nil {
				return err
			}
			_, err = s.Groups.SetState(ctx, p.GroupName, in, out)
			return err
		})
		Handle(r, commands.TypeSetGroupMode, func(ctx context.Context, _ commands.Command, p commands.SetGroupMode) error {
			mode, err := location.ParseOperationMode(p.OperationMode)
			if err != nil {
				return err
			}
			_, err = s.Groups.SetMode(ctx, p.GroupName, mode)
			return err
		})
	}

	if s.Replicas != nil {
		Handle(r, commands.TypeRegisterReplica, func(ctx context.Context, _ commands.Command, p commands.ReplicaRegistration) error {
			_, err := s.Replicas.Register(ctx, p.Registration)
			return err
		})
		Handle(r, commands.TypeUnregisterReplica, func(ctx context.Context, _ commands.Command, p commands.ReplicaRegistration) error {
			_, err := s.Replicas.Unregister(ctx, p.Registration)
			return err
		})
	}

	if s.Reservations != nil {
		// reservation_id carries the token the reservation was placed with.
		Handle(r, commands.TypeAckReservation, func(ctx context.Context, _ commands.Command, p commands.AckReservation) error {
			_, err := s.Reservations.Acknowledge(ctx, tuapp.Acknowledgement{
				Token:      p.ReservationID,
				BusinessID: p.BusinessID,
				SequenceNo: p.SequenceNo,
			})
			return err
		})
	}

	if s.Units != nil {
		Handle(r, commands.TypeTUCreate, func(ctx context.Context, _ commands.Command, p commands.TransportUnitCommand) error {
			actual, err := p.Actual()
			if err != nil {
				return err
			}
			_, err = s.Units.Create(ctx, p.Barcode, actual, p.UnitType)
			return err
		})
		Handle(r, commands.TypeTUMove, func(ctx context.Context, _ commands.Command, p commands.TransportUnitCommand) error {
			target, err := p.Target()
			if err != nil {
				return err
			}
			_, err = s.Units.Move(ctx, p.Barcode, target, p.Token)
			return err
		})
		Handle(r, commands.TypeTUDelete, func(ctx context.Context, _ commands.Command, p commands.TransportUnitCommand) error {
			return s.Units.Delete(ctx, p.Barcode)
		})
		Handle(r, commands.TypeTUDeletionAccepted, func(ctx context.Context, _ commands.Command, p commands.TransportUnitCommand) error {
			return s.Units.AcceptDeletion(ctx, p.Barcode)
		})
	}
}
