package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wms-core/internal/eventing"
	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/retry"
)

// StreamPublisher appends envelopes to a stream, retrying transient failures
// with bounded exponential backoff.
type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	policy retry.Policy
	logger *zap.Logger
}

// PublisherOption configures the publisher.
type PublisherOption func(*StreamPublisher)

// WithMaxLen trims the stream approximately to n entries.
func WithMaxLen(n int64) PublisherOption {
	return func(p *StreamPublisher) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

// WithPublishRetry sets the retry policy.
func WithPublishRetry(policy retry.Policy) PublisherOption {
	return func(p *StreamPublisher) {
		p.policy = policy
	}
}

// WithPublisherLogger assigns a logger.
func WithPublisherLogger(logger *zap.Logger) PublisherOption {
	return func(p *StreamPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewStreamPublisher constructs a publisher for stream.
func NewStreamPublisher(client redis.Cmdable, stream string, opts ...PublisherOption) (*StreamPublisher, error) {
	if client == nil {
		return nil, errors.New("broker: nil redis client")
	}
	if stream == "" {
		return nil, errors.New("broker: empty stream")
	}
	p := &StreamPublisher{
		client: client,
		stream: stream,
		policy: retry.DefaultPolicy,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stream returns the target stream name.
func (p *StreamPublisher) Stream() string {
	return p.stream
}

// Publish appends env with its event type as routing key.
func (p *StreamPublisher) Publish(ctx context.Context, env eventing.Envelope) (string, error) {
	return p.publish(ctx, env, nil)
}

func (p *StreamPublisher) publish(ctx context.Context, env eventing.Envelope, extra map[string]any) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	values := map[string]any{
		FieldRoutingKey: env.EventType,
		FieldEnvelope:   string(body),
	}
	for k, v := range extra {
		values[k] = v
	}
	args := &redis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	var id string
	err = retry.Do(ctx, p.policy, func() error {
		var addErr error
		id, addErr = p.client.XAdd(ctx, args).Result()
		return addErr
	}, func(err error, wait time.Duration) {
		metrics.IncBrokerRetry(p.stream)
		p.logger.Warn("stream publish retry",
			zap.String("stream", p.stream),
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		p.logger.Error("stream publish failed",
			zap.String("stream", p.stream),
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.Error(err),
		)
		return "", err
	}
	return id, nil
}

// DeadLetterPublisher writes rejected envelopes, with the failure reason, to
// the dead-letter stream.
type DeadLetterPublisher struct {
	publisher *StreamPublisher
}

// NewDeadLetterPublisher wraps a publisher bound to the dead-letter stream.
func NewDeadLetterPublisher(publisher *StreamPublisher) (*DeadLetterPublisher, error) {
	if publisher == nil {
		return nil, errors.New("broker: nil dead-letter publisher")
	}
	return &DeadLetterPublisher{publisher: publisher}, nil
}

// RecordFailure appends env and the error text to the dead-letter stream.
func (d *DeadLetterPublisher) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	_, err := d.publisher.publish(ctx, env, map[string]any{FieldError: reason})
	return err
}

// Forwarder relays dispatched outbox events to the events stream. It is
// subscribed to every event type on the in-process bus.
type Forwarder struct {
	publisher *StreamPublisher
}

// NewForwarder constructs a forwarder.
func NewForwarder(publisher *StreamPublisher) (*Forwarder, error) {
	if publisher == nil {
		return nil, errors.New("broker: nil forwarder publisher")
	}
	return &Forwarder{publisher: publisher}, nil
}

// Subscribe attaches the forwarder to bus.
func (f *Forwarder) Subscribe(bus eventing.EventBus) {
	bus.Subscribe(eventing.AllEvents, f.Handle)
}

// Handle publishes the envelope bound to ctx, building one when absent. An
// error leaves the outbox record failed and dead-lettered.
func (f *Forwarder) Handle(ctx context.Context, event any) error {
	env, ok := eventing.EnvelopeFromContext(ctx)
	if !ok {
		built, err := eventing.BuildEnvelope(event, eventing.MetaFromContext(ctx))
		if err != nil {
			return err
		}
		env = built
	}
	_, err := f.publisher.Publish(ctx, env)
	return err
}
