package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/txn"
	"wms-core/internal/transportunit/application/events"
	transportunit "wms-core/internal/transportunit/domain"
)

// ReservationEngine places and acknowledges exclusive claims. Exclusivity is
// enforced by the reservation store, so it holds across process instances.
type ReservationEngine struct {
	units        transportunit.TransportUnitRepository
	reservations transportunit.ReservationRepository
	runner       txn.Runner
	logger       *zap.Logger
	now          func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*ReservationEngine)

// WithEngineLogger assigns a logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *ReservationEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEngineClock overrides the clock.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *ReservationEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewReservationEngine constructs an engine.
func NewReservationEngine(units transportunit.TransportUnitRepository, reservations transportunit.ReservationRepository, runner txn.Runner, opts ...EngineOption) (*ReservationEngine, error) {
	if units == nil {
		return nil, errors.New("reservation: nil unit repository")
	}
	if reservations == nil {
		return nil, errors.New("reservation: nil reservation repository")
	}
	if runner == nil {
		return nil, errors.New("reservation: nil runner")
	}
	e := &ReservationEngine{
		units:        units,
		reservations: reservations,
		runner:       runner,
		logger:       zap.NewNop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reserve claims the unit with the given barcode for token.
func (e *ReservationEngine) Reserve(ctx context.Context, barcode, token string) (transportunit.Reservation, error) {
	barcode, err := transportunit.NormalizeBarcode(barcode)
	if err != nil {
		return transportunit.Reservation{}, err
	}
	var reservation transportunit.Reservation
	err = e.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		tu, err := e.units.FindByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if tu == nil {
			return transportunit.ErrNotFound.With("barcode", barcode)
		}
		reservation, err = e.reserve(ctx, uow, tu, token)
		return err
	})
	if err != nil {
		if errors.Is(err, transportunit.ErrAlreadyReserved) {
			metrics.IncReservation(metrics.OutcomeRejected)
		}
		return transportunit.Reservation{}, err
	}
	metrics.IncReservation(metrics.OutcomeCreated)
	return reservation, nil
}

// reserve must run inside a unit of work.
func (e *ReservationEngine) reserve(ctx context.Context, uow *txn.UnitOfWork, tu *transportunit.TransportUnit, token string) (transportunit.Reservation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return transportunit.Reservation{}, transportunit.ErrTokenMissing
	}
	reserved, err := e.reservations.HasReservations(ctx, tu.PKey)
	if err != nil {
		return transportunit.Reservation{}, err
	}
	if reserved {
		return transportunit.Reservation{}, transportunit.ErrAlreadyReserved.With("barcode", tu.Barcode)
	}
	reservation := transportunit.Reservation{
		ID:                uuid.NewString(),
		TransportUnitPKey: tu.PKey,
		ReservedBy:        token,
		ReservedAt:        e.now(),
	}
	if err := e.reservations.Create(ctx, &reservation); err != nil {
		if errors.Is(err, transportunit.ErrAlreadyReserved) {
			return transportunit.Reservation{}, transportunit.ErrAlreadyReserved.With("barcode", tu.Barcode)
		}
		return transportunit.Reservation{}, err
	}
	uow.Enqueue(events.TransportUnitReserved{
		ReservationID: reservation.ID,
		PKey:          tu.PKey,
		Barcode:       tu.Barcode,
		ReservedBy:    token,
		OccurredAt:    reservation.ReservedAt,
	})
	return reservation, nil
}

// Acknowledgement hands a claim over to its acknowledger.
type Acknowledgement struct {
	Token      string
	BusinessID string
	SequenceNo int
}

// AckID is the label taking over the claim.
func (a Acknowledgement) AckID() string {
	return a.BusinessID
}

// Acknowledge relabels every reservation held by ack.Token and returns how
// many matched. No match is not an error: acknowledgements may race the
// reservation or be redelivered. The unit stays reserved afterwards.
func (e *ReservationEngine) Acknowledge(ctx context.Context, ack Acknowledgement) (int, error) {
	if strings.TrimSpace(ack.Token) == "" {
		return 0, transportunit.ErrTokenMissing
	}
	if strings.TrimSpace(ack.AckID()) == "" {
		return 0, transportunit.ErrTokenMissing.With("field", "business_id")
	}
	matched := 0
	err := e.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		held, err := e.reservations.FindByReservedBy(ctx, ack.Token)
		if err != nil {
			return err
		}
		if len(held) == 0 {
			return nil
		}
		at := e.now()
		ids := make([]string, 0, len(held))
		for _, reservation := range held {
			if err := e.reservations.Relabel(ctx, reservation.ID, ack.AckID(), at); err != nil {
				return err
			}
			ids = append(ids, reservation.ID)
		}
		uow.Enqueue(events.ReservationAcknowledged{
			Token:          ack.Token,
			AcknowledgedBy: ack.AckID(),
			BusinessID:     ack.BusinessID,
			SequenceNo:     ack.SequenceNo,
			ReservationIDs: ids,
			OccurredAt:     at,
		})
		matched = len(held)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if matched == 0 {
		metrics.IncAcknowledgement(metrics.OutcomeNoop)
		e.logger.Info("acknowledgement matched no reservation",
			zap.String("token", ack.Token),
			zap.String("business_id", ack.BusinessID),
			zap.Int("sequence_no", ack.SequenceNo),
		)
		return 0, nil
	}
	metrics.IncAcknowledgement(metrics.OutcomeMatched)
	return matched, nil
}
