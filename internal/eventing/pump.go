package eventing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Pump drains the outbox in the background: on every Kick and on a fixed
// interval as a fallback for kicks lost to restarts.
type Pump struct {
	dispatcher *Dispatcher
	interval   time.Duration
	batch      int
	kick       chan struct{}
	logger     *zap.Logger
}

// NewPump constructs a pump.
func NewPump(dispatcher *Dispatcher, interval time.Duration, batch int, logger *zap.Logger) (*Pump, error) {
	if dispatcher == nil {
		return nil, errors.New("eventing: nil dispatcher")
	}
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		dispatcher: dispatcher,
		interval:   interval,
		batch:      batch,
		kick:       make(chan struct{}, 1),
		logger:     logger,
	}, nil
}

// Kick requests a drain without blocking. It matches txn.AfterCommitHook.
func (p *Pump) Kick(context.Context) {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run drains until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.kick:
		}
		p.drain(ctx)
	}
}

func (p *Pump) drain(ctx context.Context) {
	for {
		result, err := p.dispatcher.Dispatch(ctx, p.batch)
		if err != nil {
			p.logger.Warn("outbox dispatch failed", zap.Error(err))
			return
		}
		if result.Claimed < p.batch || ctx.Err() != nil {
			return
		}
	}
}
