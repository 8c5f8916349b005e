package eventing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"wms-core/internal/observability/metrics"
)

const slowPublishThreshold = 50 * time.Millisecond

// Publisher writes events to the outbox. It is the txn.EventWriter used by the
// transaction manager, so inserts run on the transaction bound to ctx.
type Publisher struct {
	outbox OutboxWriter
	logger *zap.Logger
}

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter, logger *zap.Logger) (*Publisher, error) {
	if outbox == nil {
		return nil, errors.New("eventing: nil outbox")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{outbox: outbox, logger: logger}, nil
}

// Publish writes the event to outbox.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	start := time.Now()
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		metrics.ObserveOutboxPublish(metrics.ResultError, time.Since(start))
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		metrics.ObserveOutboxPublish(metrics.ResultError, time.Since(start))
		return err
	}
	duration := time.Since(start)
	metrics.ObserveOutboxPublish(metrics.ResultSuccess, duration)
	if duration > slowPublishThreshold {
		p.logger.Warn("slow outbox publish",
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID),
		)
	}
	return nil
}
