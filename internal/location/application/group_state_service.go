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

// GroupStateService changes location group state and operation mode. Group
// changes never rewrite member locations; they only affect later permission
// checks.
type GroupStateService struct {
	groups   location.GroupRepository
	runner   txn.Runner
	approval GroupApproval
	logger   *zap.Logger
	now      func() time.Time
}

// GroupStateOption configures the service.
type GroupStateOption func(*GroupStateService)

// WithGroupApproval installs an approval hook.
func WithGroupApproval(approval GroupApproval) GroupStateOption {
	return func(s *GroupStateService) {
		s.approval = approval
	}
}

// WithGroupLogger assigns a logger.
func WithGroupLogger(logger *zap.Logger) GroupStateOption {
	return func(s *GroupStateService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGroupClock overrides the clock.
func WithGroupClock(now func() time.Time) GroupStateOption {
	return func(s *GroupStateService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGroupStateService constructs the service.
func NewGroupStateService(groups location.GroupRepository, runner txn.Runner, opts ...GroupStateOption) (*GroupStateService, error) {
	if groups == nil {
		return nil, errors.New("group state: nil group repository")
	}
	if runner == nil {
		return nil, errors.New("group state: nil runner")
	}
	s := &GroupStateService{
		groups: groups,
		runner: runner,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GroupResult is the outcome of a group change.
type GroupResult struct {
	Group   location.LocationGroup
	Changed bool
}

// ChangeState applies a telegram. Directions marked '*' are left alone and
// nothing is written when no asserted direction differs.
func (s *GroupStateService) ChangeState(ctx context.Context, name, rawCode string) (GroupResult, error) {
	code, err := location.ParseErrorCode(rawCode)
	if err != nil {
		metrics.IncTelegram("group", metrics.ResultError)
		return GroupResult{}, err
	}
	metrics.IncTelegram("group", metrics.ResultSuccess)

	var result GroupResult
	err = s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		current, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		proposed := *current
		if !proposed.ApplyTelegram(code).Changed() {
			result = GroupResult{Group: *current}
			return nil
		}
		if err := s.persist(ctx, current, &proposed); err != nil {
			return err
		}
		uow.Enqueue(stateChanged(proposed, code.String(), events.SourceTelegram))
		result = GroupResult{Group: proposed, Changed: true}
		return nil
	})
	if err != nil {
		return GroupResult{}, err
	}
	metrics.IncStateChange("group", result.Changed)
	return result, nil
}

// SetState assigns both directions. The assignment is always persisted and
// always announced, even when the values did not differ.
func (s *GroupStateService) SetState(ctx context.Context, name string, in, out location.GroupState) (GroupResult, error) {
	if _, err := location.ParseGroupState(string(in)); err != nil {
		return GroupResult{}, err
	}
	if _, err := location.ParseGroupState(string(out)); err != nil {
		return GroupResult{}, err
	}
	var result GroupResult
	err := s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		current, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		proposed := *current
		changed := proposed.SetStates(in, out).Changed()
		if err := s.persist(ctx, current, &proposed); err != nil {
			return err
		}
		uow.Enqueue(stateChanged(proposed, "", events.SourceOperator))
		result = GroupResult{Group: proposed, Changed: changed}
		return nil
	})
	if err != nil {
		return GroupResult{}, err
	}
	metrics.IncStateChange("group", result.Changed)
	s.logger.Info("group state assigned",
		zap.String("group_name", name),
		zap.String("state_in", string(in)),
		zap.String("state_out", string(out)),
	)
	return result, nil
}

// SetMode changes the operation mode. Setting the current mode is a no-op.
func (s *GroupStateService) SetMode(ctx context.Context, name string, mode location.OperationMode) (GroupResult, error) {
	if _, err := location.ParseOperationMode(string(mode)); err != nil {
		return GroupResult{}, err
	}
	var result GroupResult
	err := s.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		current, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		proposed := *current
		if !proposed.SetMode(mode) {
			result = GroupResult{Group: *current}
			return nil
		}
		if err := s.persist(ctx, current, &proposed); err != nil {
			return err
		}
		uow.Enqueue(events.LocationGroupModeChanged{
			GroupName:     proposed.Name,
			OperationMode: string(proposed.OperationMode),
			PreviousMode:  string(current.OperationMode),
			OccurredAt:    proposed.UpdatedAt,
		})
		result = GroupResult{Group: proposed, Changed: true}
		return nil
	})
	if err != nil {
		return GroupResult{}, err
	}
	metrics.IncStateChange("group_mode", result.Changed)
	return result, nil
}

func (s *GroupStateService) load(ctx context.Context, name string) (*location.LocationGroup, error) {
	if name == "" {
		return nil, location.ErrGroupNotFound
	}
	group, err := s.groups.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, location.ErrGroupNotFound.With("group_name", name)
	}
	return group, nil
}

func (s *GroupStateService) persist(ctx context.Context, current, proposed *location.LocationGroup) error {
	if s.approval != nil {
		if err := s.approval.ApproveGroupChange(ctx, *current, *proposed); err != nil {
			return rejected(err, "group_name", current.Name)
		}
	}
	proposed.UpdatedAt = s.now()
	return s.groups.Save(ctx, proposed)
}

func stateChanged(group location.LocationGroup, code, source string) events.LocationGroupStateChanged {
	return events.LocationGroupStateChanged{
		GroupName:     group.Name,
		GroupStateIn:  string(group.GroupStateIn),
		GroupStateOut: string(group.GroupStateOut),
		ErrorCode:     code,
		Source:        source,
		OccurredAt:    group.UpdatedAt,
	}
}
