package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/txn"
	transportunit "wms-core/internal/transportunit/domain"
)

// AllocationRequest selects a unit to reserve.
type AllocationRequest struct {
	SearchAttributes []transportunit.SearchAttribute `json:"search_attributes"`
	// LocationGroupNames is informational and not matched against the unit.
	LocationGroupNames []string `json:"location_group_names,omitempty"`
}

// Allocation is one reserved candidate.
type Allocation struct {
	TransportUnitBK       string `json:"transport_unit_bk"`
	ActualLocationErpCode string `json:"actual_location_erp_code"`
	ReservationID         string `json:"reservation_id"`
}

// AllocationService resolves search criteria to a unit and reserves it.
type AllocationService struct {
	units    transportunit.TransportUnitRepository
	engine   *ReservationEngine
	runner   txn.Runner
	newToken func() string
	logger   *zap.Logger
}

// AllocationOption configures the service.
type AllocationOption func(*AllocationService)

// WithAllocationLogger assigns a logger.
func WithAllocationLogger(logger *zap.Logger) AllocationOption {
	return func(s *AllocationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenSource overrides reservation token generation.
func WithTokenSource(newToken func() string) AllocationOption {
	return func(s *AllocationService) {
		if newToken != nil {
			s.newToken = newToken
		}
	}
}

// NewAllocationService constructs the service.
func NewAllocationService(units transportunit.TransportUnitRepository, engine *ReservationEngine, runner txn.Runner, opts ...AllocationOption) (*AllocationService, error) {
	if units == nil {
		return nil, errors.New("allocation: nil unit repository")
	}
	if engine == nil {
		return nil, errors.New("allocation: nil reservation engine")
	}
	if runner == nil {
		return nil, errors.New("allocation: nil runner")
	}
	s := &AllocationService{
		units:    units,
		engine:   engine,
		runner:   runner,
		newToken: uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allocate returns at most one allocation. An empty result means no
// candidate: an unknown or already reserved unit, or no business key.
func (s *AllocationService) Allocate(ctx context.Context, req AllocationRequest) ([]Allocation, error) {
	start := time.Now()
	for _, attr := range req.SearchAttributes {
		if err := attr.Validate(); err != nil {
			return nil, err
		}
	}
	barcode, ok := transportunit.BusinessKey(req.SearchAttributes)
	if !ok {
		metrics.ObserveAllocation(metrics.OutcomeEmpty, time.Since(start))
		return []Allocation{}, nil
	}

	var result []Allocation
	err := s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		tu, err := s.units.FindByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if tu == nil {
			s.logger.Info("allocation found no transport unit", zap.String("barcode", barcode))
			return nil
		}
		reservation, err := s.engine.reserve(ctx, uow, tu, s.newToken())
		if errors.Is(err, transportunit.ErrAlreadyReserved) {
			s.logger.Info("allocation skipped reserved transport unit", zap.String("barcode", barcode))
			return nil
		}
		if err != nil {
			return err
		}
		result = []Allocation{{
			TransportUnitBK:       tu.Barcode,
			ActualLocationErpCode: tu.ActualLocationErpCode,
			ReservationID:         reservation.ReservedBy,
		}}
		return nil
	})
	if err != nil {
		metrics.ObserveAllocation(metrics.ResultError, time.Since(start))
		return nil, err
	}
	if len(result) == 0 {
		metrics.ObserveAllocation(metrics.OutcomeEmpty, time.Since(start))
		return []Allocation{}, nil
	}
	metrics.IncReservation(metrics.OutcomeCreated)
	metrics.ObserveAllocation(metrics.OutcomeAllocated, time.Since(start))
	return result, nil
}
