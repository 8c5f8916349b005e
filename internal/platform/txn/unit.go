// Package txn demarcates transactions and holds the events a transaction
// produces until it commits.
package txn

import (
	"context"
	"sync"
)

// UnitOfWork collects domain events raised inside one transaction.
// Events are flushed in enqueue order by the runner after fn succeeds and are
// dropped when the transaction rolls back.
type UnitOfWork struct {
	mu     sync.Mutex
	events []any
}

// Enqueue appends events to the pending queue.
func (u *UnitOfWork) Enqueue(events ...any) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, event := range events {
		if event != nil {
			u.events = append(u.events, event)
		}
	}
}

// Pending returns a copy of the queued events.
func (u *UnitOfWork) Pending() []any {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]any(nil), u.events...)
}

func (u *UnitOfWork) discard() {
	u.mu.Lock()
	u.events = nil
	u.mu.Unlock()
}

// Func is the body of a transaction.
type Func func(ctx context.Context, uow *UnitOfWork) error

// Runner executes fn inside a unit of work.
type Runner interface {
	Run(ctx context.Context, fn Func) error
}

// EventWriter persists a queued event (the outbox publisher).
type EventWriter interface {
	Publish(ctx context.Context, event any) error
}

// AfterCommitHook runs once a transaction that produced events has committed.
type AfterCommitHook func(ctx context.Context)
