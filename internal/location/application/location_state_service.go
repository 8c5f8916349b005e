package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"wms-core/internal/location/application/events"
	location "wms-core/internal/location/domain"
	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/txn"
)

// LocationStateService applies PLC telegrams to single locations.
type LocationStateService struct {
	locations location.LocationRepository
	groups    location.GroupRepository
	runner    txn.Runner
	approval  LocationApproval
	logger    *zap.Logger
	now       func() time.Time
}

// LocationStateOption configures the service.
type LocationStateOption func(*LocationStateService)

// WithLocationApproval installs an approval hook.
func WithLocationApproval(approval LocationApproval) LocationStateOption {
	return func(s *LocationStateService) {
		s.approval = approval
	}
}

// WithLocationLogger assigns a logger.
func WithLocationLogger(logger *zap.Logger) LocationStateOption {
	return func(s *LocationStateService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocationClock overrides the clock.
func WithLocationClock(now func() time.Time) LocationStateOption {
	return func(s *LocationStateService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLocationStateService constructs the service.
func NewLocationStateService(locations location.LocationRepository, groups location.GroupRepository, runner txn.Runner, opts ...LocationStateOption) (*LocationStateService, error) {
	if locations == nil {
		return nil, errors.New("location state: nil location repository")
	}
	if groups == nil {
		return nil, errors.New("location state: nil group repository")
	}
	if runner == nil {
		return nil, errors.New("location state: nil runner")
	}
	s := &LocationStateService{
		locations: locations,
		groups:    groups,
		runner:    runner,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LocationResult is the outcome of a telegram.
type LocationResult struct {
	Location location.Location
	Changed  bool
}

// ChangeState decodes rawCode and applies it to the referenced location. One
// LocationStateChanged event is queued when anything changed.
func (s *LocationStateService) ChangeState(ctx context.Context, ref location.Ref, rawCode string, plcState *int) (LocationResult, error) {
	code, err := location.ParseErrorCode(rawCode)
	if err != nil {
		metrics.IncTelegram("location", metrics.ResultError)
		return LocationResult{}, err
	}
	metrics.IncTelegram("location", metrics.ResultSuccess)

	var result LocationResult
	err = s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		current, err := location.Resolve(ctx, s.locations, ref)
		if err != nil {
			return err
		}
		group, err := s.groupOf(ctx, current)
		if err != nil {
			return err
		}

		proposed := *current
		transition := proposed.ApplyTelegram(code, plcState, group)
		if !transition.Changed() {
			result = LocationResult{Location: *current}
			return nil
		}
		if s.approval != nil {
			if err := s.approval.ApproveLocationChange(ctx, *current, proposed); err != nil {
				return rejected(err, "location_id", current.ID)
			}
		}
		proposed.UpdatedAt = s.now()
		if err := s.locations.Save(ctx, &proposed); err != nil {
			return err
		}
		uow.Enqueue(events.LocationStateChanged{
			LocationID:    proposed.ID,
			LocationPK:    proposed.PK.String(),
			PLCCode:       proposed.PLCCode,
			ERPCode:       proposed.ERPCode,
			GroupName:     proposed.GroupName,
			InfeedActive:  proposed.InfeedActive,
			OutfeedActive: proposed.OutfeedActive,
			PLCState:      proposed.PLCState,
			ErrorCode:     code.String(),
			OccurredAt:    proposed.UpdatedAt,
		})
		result = LocationResult{Location: proposed, Changed: true}
		return nil
	})
	if err != nil {
		return LocationResult{}, err
	}
	metrics.IncStateChange("location", result.Changed)
	s.logger.Debug("location telegram applied",
		zap.String("location_id", result.Location.ID),
		zap.String("error_code", code.String()),
		zap.Bool("changed", result.Changed),
	)
	return result, nil
}

// SetEmpty locks both directions and records the empty sentinel.
func (s *LocationStateService) SetEmpty(ctx context.Context, ref location.Ref) (LocationResult, error) {
	empty := location.PLCStateEmpty
	return s.ChangeState(ctx, ref, location.LockStateInAndOut, &empty)
}

func (s *LocationStateService) groupOf(ctx context.Context, loc *location.Location) (*location.LocationGroup, error) {
	if loc.GroupName == "" {
		return nil, nil
	}
	group, err := s.groups.Get(ctx, loc.GroupName)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, location.ErrGroupNotFound.With("group_name", loc.GroupName)
	}
	return group, nil
}
