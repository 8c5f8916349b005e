package txn

import (
	"context"
	"errors"
	"sync"
)

// MemoryRunner provides unit-of-work semantics without a database. Events are
// handed to the writer only when fn succeeds. State written by in-memory
// repositories is not rolled back.
type MemoryRunner struct {
	mu     sync.Mutex
	writer EventWriter
	hooks  []AfterCommitHook
}

// NewMemoryRunner constructs a runner; writer may be nil to drop events.
func NewMemoryRunner(writer EventWriter, hooks ...AfterCommitHook) *MemoryRunner {
	return &MemoryRunner{writer: writer, hooks: hooks}
}

// Run executes fn and flushes its events on success. Units of work are
// serialized to mimic transaction isolation.
func (r *MemoryRunner) Run(ctx context.Context, fn Func) error {
	if fn == nil {
		return errors.New("txn: nil func")
	}
	if uow, ok := UnitFromContext(ctx); ok {
		return fn(ctx, uow)
	}

	events, err := r.runLocked(ctx, fn)
	if err != nil {
		return err
	}

	if len(events) > 0 {
		for _, hook := range r.hooks {
			hook(ctx)
		}
	}
	return nil
}

func (r *MemoryRunner) runLocked(ctx context.Context, fn Func) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uow := &UnitOfWork{}
	committed := false
	defer func() {
		if !committed {
			uow.discard()
		}
	}()
	if err := fn(withUnit(ctx, uow), uow); err != nil {
		return nil, err
	}
	events := uow.Pending()
	if r.writer != nil {
		for _, event := range events {
			if err := r.writer.Publish(ctx, event); err != nil {
				return nil, err
			}
		}
	}
	committed = true
	return events, nil
}
