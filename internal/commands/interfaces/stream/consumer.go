// Package stream consumes commands from a Redis stream consumer group.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wms-core/internal/broker"
	commands "wms-core/internal/commands/domain"
	"wms-core/internal/eventing"
	"wms-core/internal/observability/metrics"
)

// Router routes one command envelope to a terminal outcome.
type Router interface {
	Route(ctx context.Context, env eventing.Envelope) commands.Outcome
}

// Consumer reads the command stream and acknowledges every entry once the
// router reached a terminal outcome, so no entry is delivered twice.
type Consumer struct {
	client   redis.Cmdable
	router   Router
	stream   string
	group    string
	consumer string
	count    int64
	block    time.Duration
	backoff  time.Duration
	logger   *zap.Logger
}

// Option configures the consumer.
type Option func(*Consumer)

// WithBatch sets how many entries one read returns at most.
func WithBatch(count int64) Option {
	return func(c *Consumer) {
		if count > 0 {
			c.count = count
		}
	}
}

// WithBlock sets how long one read waits for new entries.
func WithBlock(block time.Duration) Option {
	return func(c *Consumer) {
		if block > 0 {
			c.block = block
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer constructs a consumer for stream within group.
func NewConsumer(client redis.Cmdable, router Router, stream, group, consumer string, opts ...Option) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("command consumer: nil redis client")
	}
	if router == nil {
		return nil, errors.New("command consumer: nil router")
	}
	if stream == "" || group == "" || consumer == "" {
		return nil, errors.New("command consumer: stream, group and consumer are required")
	}
	c := &Consumer{
		client:   client,
		router:   router,
		stream:   stream,
		group:    group,
		consumer: consumer,
		count:    16,
		block:    5 * time.Second,
		backoff:  time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run reads until ctx is done. Read errors pause the loop briefly.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("command stream read failed", zap.String("stream", c.stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
		}
	}
}

// Poll reads one batch, routes each entry and acknowledges it. It returns
// the number of entries handled.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.count,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			c.handle(ctx, msg)
			if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
				return handled, fmt.Errorf("command consumer: ack %s: %w", msg.ID, err)
			}
			handled++
		}
	}
	return handled, nil
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	env := decode(msg)
	if !env.OccurredAt.IsZero() {
		metrics.ObserveConsumerLag("command-stream", time.Since(env.OccurredAt))
	}
	outcome := c.router.Route(ctx, env)
	c.logger.Debug("command handled",
		zap.String("stream_id", msg.ID),
		zap.String("command_id", outcome.CommandID),
		zap.String("command_type", string(outcome.Type)),
		zap.String("status", string(outcome.Status)),
	)
}

// decode never fails: an entry that is not a valid envelope becomes one
// without payload, which the router rejects to the dead-letter sinks.
func decode(msg redis.XMessage) eventing.Envelope {
	routingKey, _ := msg.Values[broker.FieldRoutingKey].(string)
	raw, _ := msg.Values[broker.FieldEnvelope].(string)

	var env eventing.Envelope
	if raw == "" || json.Unmarshal([]byte(raw), &env) != nil {
		env = eventing.Envelope{}
	}
	if env.EventID == "" {
		env.EventID = msg.ID
	}
	if env.EventType == "" {
		env.EventType = routingKey
	}
	return env
}
