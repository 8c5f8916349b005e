package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"wms-core/internal/apperr"
	commands "wms-core/internal/commands/domain"
	"wms-core/internal/eventing"
	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/txn"
)

// ConsumerName identifies the router in the processed-events store.
const ConsumerName = "command-router"

var errDuplicate = errors.New("command router: duplicate")

// ProcessedMarker records that a command id was applied. TryMark reports
// false when the id was already recorded.
type ProcessedMarker interface {
	TryMark(ctx context.Context, eventID, consumerName string) (bool, error)
}

// DeadLetterSink receives rejected commands.
type DeadLetterSink interface {
	RecordFailure(ctx context.Context, env eventing.Envelope, err error) error
}

type route struct {
	profile commands.Profile
	decode  func(raw json.RawMessage) (commands.Payload, error)
	handle  func(ctx context.Context, cmd commands.Command, payload commands.Payload) error
}

// Router dispatches inbound commands by type. Each command is validated,
// applied inside one transaction together with its idempotency mark, and
// either committed or rejected to the dead-letter sinks. Nothing is retried.
type Router struct {
	runner      txn.Runner
	processed   ProcessedMarker
	deadLetters []DeadLetterSink
	routes      map[commands.Type]route
	logger      *zap.Logger
	now         func() time.Time
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithDeadLetter adds a sink for rejected commands.
func WithDeadLetter(sink DeadLetterSink) RouterOption {
	return func(r *Router) {
		if sink != nil {
			r.deadLetters = append(r.deadLetters, sink)
		}
	}
}

// WithRouterLogger assigns a logger.
func WithRouterLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRouterClock overrides the clock.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter constructs a router.
func NewRouter(runner txn.Runner, processed ProcessedMarker, opts ...RouterOption) (*Router, error) {
	if runner == nil {
		return nil, errors.New("command router: nil runner")
	}
	if processed == nil {
		return nil, errors.New("command router: nil processed store")
	}
	r := &Router{
		runner:    runner,
		processed: processed,
		routes:    make(map[commands.Type]route),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Handle registers the handler for a command type. P is the payload the
// command body decodes into.
func Handle[P commands.Payload](r *Router, commandType commands.Type, handler func(ctx context.Context, cmd commands.Command, payload P) error) {
	if r == nil || handler == nil {
		return
	}
	var zero P
	r.routes[commandType] = route{
		profile: zero.Profile(),
		decode: func(raw json.RawMessage) (commands.Payload, error) {
			var payload P
			if len(raw) == 0 {
				return nil, commands.ErrPayloadInvalid.With("reason", "empty")
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, commands.ErrPayloadInvalid.Because(err)
			}
			return payload, nil
		},
		handle: func(ctx context.Context, cmd commands.Command, payload commands.Payload) error {
			return handler(ctx, cmd, payload.(P))
		},
	}
}

// Types lists the registered command types.
func (r *Router) Types() []commands.Type {
	out := make([]commands.Type, 0, len(r.routes))
	for commandType := range r.routes {
		out = append(out, commandType)
	}
	return out
}

// Route processes one command envelope to a terminal outcome.
func (r *Router) Route(ctx context.Context, env eventing.Envelope) commands.Outcome {
	start := time.Now()
	cmd := commands.FromEnvelope(env)
	if cmd.ID == "" {
		cmd.ID = eventing.NewEventID()
	}
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = r.now()
	}
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = cmd.ID
	}
	ctx = eventing.WithCorrelationID(ctx, cmd.CorrelationID)
	r.step(cmd, commands.StatusReceived)

	outcome := r.apply(ctx, cmd)
	if outcome.Status == commands.StatusRejected {
		r.reject(ctx, cmd, outcome.Profile, outcome.Err)
	}
	r.step(cmd, outcome.Status)
	metrics.ObserveCommand(string(cmd.Type), strings.ToLower(string(outcome.Status)), time.Since(start))
	return outcome
}

func (r *Router) apply(ctx context.Context, cmd commands.Command) commands.Outcome {
	outcome := commands.Outcome{CommandID: cmd.ID, Type: cmd.Type}

	r.step(cmd, commands.StatusValidating)
	rt, ok := r.routes[cmd.Type]
	if !ok {
		outcome.Status = commands.StatusRejected
		outcome.Err = commands.ErrTypeUnknown.With("type", string(cmd.Type))
		return outcome
	}
	outcome.Profile = rt.profile
	payload, err := rt.decode(cmd.Payload)
	if err == nil {
		err = payload.Validate()
	}
	if err != nil {
		outcome.Status = commands.StatusRejected
		outcome.Err = err
		return outcome
	}

	r.step(cmd, commands.StatusApplying)
	err = r.runner.Run(ctx, func(ctx context.Context, _ *txn.UnitOfWork) error {
		first, err := r.processed.TryMark(ctx, cmd.ID, ConsumerName)
		if err != nil {
			return err
		}
		if !first {
			return errDuplicate
		}
		return rt.handle(ctx, cmd, payload)
	})
	switch {
	case errors.Is(err, errDuplicate):
		outcome.Status = commands.StatusDuplicate
	case err != nil:
		outcome.Status = commands.StatusRejected
		outcome.Err = err
	default:
		outcome.Status = commands.StatusCommitted
	}
	return outcome
}

// reject logs the failure and hands the command to every dead-letter sink.
// The validation profile, when known, is recorded on domain errors.
func (r *Router) reject(ctx context.Context, cmd commands.Command, profile commands.Profile, cause error) {
	r.logger.Error("command rejected",
		zap.String("command_id", cmd.ID),
		zap.String("command_type", string(cmd.Type)),
		zap.String("profile", string(profile)),
		zap.String("correlation_id", cmd.CorrelationID),
		zap.Int("payload_size", len(cmd.Payload)),
		zap.String("code", string(apperr.CodeOf(cause))),
		zap.String("kind", string(apperr.KindOf(cause))),
		zap.Error(cause),
	)
	if domainErr, ok := cause.(*apperr.Error); ok && profile != "" {
		cause = domainErr.With("profile", string(profile))
	}
	env := cmd.Envelope()
	for _, sink := range r.deadLetters {
		if err := sink.RecordFailure(ctx, env, cause); err != nil {
			r.logger.Error("dead-letter write failed",
				zap.String("command_id", cmd.ID),
				zap.String("command_type", string(cmd.Type)),
				zap.Error(err),
			)
		}
	}
}

func (r *Router) step(cmd commands.Command, status commands.Status) {
	r.logger.Debug("command step",
		zap.String("command_id", cmd.ID),
		zap.String("command_type", string(cmd.Type)),
		zap.String("status", string(status)),
	)
}
