package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	location "wms-core/internal/location/domain"
	"wms-core/internal/platform/txn"
	"wms-core/internal/transportunit/application/events"
	transportunit "wms-core/internal/transportunit/domain"
)

// LocationChangeApproval may veto a move. A nil approval approves everything.
type LocationChangeApproval interface {
	ApproveMove(ctx context.Context, tu transportunit.TransportUnit, target location.Location) error
}

// LocationChangeApprovalFunc adapts a function to LocationChangeApproval.
type LocationChangeApprovalFunc func(ctx context.Context, tu transportunit.TransportUnit, target location.Location) error

func (f LocationChangeApprovalFunc) ApproveMove(ctx context.Context, tu transportunit.TransportUnit, target location.Location) error {
	return f(ctx, tu, target)
}

// TransportUnitService manages the unit lifecycle.
type TransportUnitService struct {
	units        transportunit.TransportUnitRepository
	reservations transportunit.ReservationRepository
	locations    location.LocationRepository
	runner       txn.Runner
	deletionMode string
	approval     LocationChangeApproval
	logger       *zap.Logger
	now          func() time.Time
}

// UnitServiceOption configures the service.
type UnitServiceOption func(*TransportUnitService)

// WithDeletionMode sets the configured deletion mode. It is parsed on first
// use so that a bad value fails the delete, not startup.
func WithDeletionMode(mode string) UnitServiceOption {
	return func(s *TransportUnitService) {
		s.deletionMode = mode
	}
}

// WithMoveApproval installs a move approval hook.
func WithMoveApproval(approval LocationChangeApproval) UnitServiceOption {
	return func(s *TransportUnitService) {
		s.approval = approval
	}
}

// WithUnitLogger assigns a logger.
func WithUnitLogger(logger *zap.Logger) UnitServiceOption {
	return func(s *TransportUnitService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithUnitClock overrides the clock.
func WithUnitClock(now func() time.Time) UnitServiceOption {
	return func(s *TransportUnitService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTransportUnitService constructs the service.
func NewTransportUnitService(
	units transportunit.TransportUnitRepository,
	reservations transportunit.ReservationRepository,
	locations location.LocationRepository,
	runner txn.Runner,
	opts ...UnitServiceOption,
) (*TransportUnitService, error) {
	if units == nil {
		return nil, errors.New("transport unit: nil unit repository")
	}
	if reservations == nil {
		return nil, errors.New("transport unit: nil reservation repository")
	}
	if locations == nil {
		return nil, errors.New("transport unit: nil location repository")
	}
	if runner == nil {
		return nil, errors.New("transport unit: nil runner")
	}
	s := &TransportUnitService{
		units:        units,
		reservations: reservations,
		locations:    locations,
		runner:       runner,
		deletionMode: string(transportunit.DeletionImmediate),
		logger:       zap.NewNop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get loads a unit by barcode.
func (s *TransportUnitService) Get(ctx context.Context, barcode string) (*transportunit.TransportUnit, error) {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return nil, err
	}
	tu, err := s.units.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if tu == nil {
		return nil, transportunit.ErrNotFound.With("barcode", barcode)
	}
	return tu, nil
}

// Create registers a unit on first sighting. An existing unit with the same
// barcode is returned unchanged.
func (s *TransportUnitService) Create(ctx context.Context, barcode string, actual location.LocationPK, unitType string) (*transportunit.TransportUnit, error) {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return nil, err
	}
	var created *transportunit.TransportUnit
	err = s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		existing, err := s.units.FindByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if existing != nil {
			created = existing
			return nil
		}
		loc, err := location.Resolve(ctx, s.locations, location.Ref{PK: &actual})
		if err != nil {
			return err
		}
		now := s.now()
		tu := &transportunit.TransportUnit{
			PKey:                  uuid.NewString(),
			Barcode:               barcode,
			ActualLocation:        loc.PK,
			ActualLocationErpCode: loc.ERPCode,
			Type:                  strings.TrimSpace(unitType),
			State:                 transportunit.StateAvailable,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := s.units.Create(ctx, tu); err != nil {
			return err
		}
		uow.Enqueue(events.TransportUnitCreated{
			PKey:           tu.PKey,
			Barcode:        tu.Barcode,
			ActualLocation: tu.ActualLocation.String(),
			Type:           tu.Type,
			OccurredAt:     now,
		})
		created = tu
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Move relocates a unit. A unit reserved under another token cannot move.
func (s *TransportUnitService) Move(ctx context.Context, barcode string, target location.LocationPK, token string) (*transportunit.TransportUnit, error) {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return nil, err
	}
	var moved *transportunit.TransportUnit
	err = s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		tu, err := s.load(ctx, barcode)
		if err != nil {
			return err
		}
		reservation, err := s.reservations.FindByTransportUnit(ctx, tu.PKey)
		if err != nil {
			return err
		}
		if reservation != nil && reservation.ReservedBy != token {
			return transportunit.ErrAlreadyReserved.With("barcode", barcode)
		}
		loc, err := location.Resolve(ctx, s.locations, location.Ref{PK: &target})
		if err != nil {
			return err
		}
		if s.approval != nil {
			if err := s.approval.ApproveMove(ctx, *tu, *loc); err != nil {
				return transportunit.ErrLocationChangeRejected.With("barcode", barcode).Because(err)
			}
		}
		from := tu.ActualLocation
		tu.MoveTo(*loc, s.now())
		if err := s.units.Save(ctx, tu); err != nil {
			return err
		}
		uow.Enqueue(events.TransportUnitMoved{
			PKey:       tu.PKey,
			Barcode:    tu.Barcode,
			From:       from.String(),
			To:         tu.ActualLocation.String(),
			OccurredAt: tu.UpdatedAt,
		})
		moved = tu
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// AddError appends an error entry to the unit.
func (s *TransportUnitService) AddError(ctx context.Context, barcode, code, message string) error {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, func(ctx context.Context, _ *txn.UnitOfWork) error {
		tu, err := s.load(ctx, barcode)
		if err != nil {
			return err
		}
		return s.units.AppendError(ctx, tu.PKey, transportunit.UnitError{
			Code:       code,
			Message:    message,
			OccurredAt: s.now(),
		})
	})
}

// Delete removes a unit according to the configured deletion mode.
func (s *TransportUnitService) Delete(ctx context.Context, barcode string) error {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return err
	}
	mode, err := transportunit.ParseDeletionMode(s.deletionMode)
	if err != nil {
		s.logger.Error("deletion mode misconfigured", zap.String("deletion_mode", s.deletionMode))
		return err
	}
	return s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		tu, err := s.load(ctx, barcode)
		if err != nil {
			return err
		}
		if mode == transportunit.DeletionImmediate {
			return s.remove(ctx, uow, tu)
		}
		if tu.State == transportunit.StateDeletionRequested {
			return nil
		}
		tu.State = transportunit.StateDeletionRequested
		tu.UpdatedAt = s.now()
		if err := s.units.Save(ctx, tu); err != nil {
			return err
		}
		uow.Enqueue(events.TransportUnitDeletionRequested{
			PKey:       tu.PKey,
			Barcode:    tu.Barcode,
			OccurredAt: tu.UpdatedAt,
		})
		return nil
	})
}

// AcceptDeletion completes a cooperative deletion. Units already gone are
// ignored so redelivered acceptances stay harmless.
func (s *TransportUnitService) AcceptDeletion(ctx context.Context, barcode string) error {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		tu, err := s.units.FindByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if tu == nil {
			s.logger.Info("deletion accepted for unknown transport unit", zap.String("barcode", barcode))
			return nil
		}
		return s.remove(ctx, uow, tu)
	})
}

func (s *TransportUnitService) remove(ctx context.Context, uow *txn.UnitOfWork, tu *transportunit.TransportUnit) error {
	if err := s.reservations.DeleteByTransportUnit(ctx, tu.PKey); err != nil {
		return err
	}
	if err := s.units.Delete(ctx, tu.PKey); err != nil {
		return err
	}
	uow.Enqueue(events.TransportUnitDeleted{
		PKey:       tu.PKey,
		Barcode:    tu.Barcode,
		OccurredAt: s.now(),
	})
	return nil
}

func (s *TransportUnitService) load(ctx context.Context, barcode string) (*transportunit.TransportUnit, error) {
	tu, err := s.units.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if tu == nil {
		return nil, transportunit.ErrNotFound.With("barcode", barcode)
	}
	return tu, nil
}
