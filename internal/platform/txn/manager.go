package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Beginner starts SQL transactions.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Manager runs units of work in SQL transactions. Queued events are written
// through the outbox writer inside the transaction, so they commit or roll back
// together with the state they describe.
type Manager struct {
	db     Beginner
	writer EventWriter
	hooks  []AfterCommitHook
	logger *zap.Logger
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithAfterCommit registers a hook triggered after commits that produced events.
func WithAfterCommit(hook AfterCommitHook) ManagerOption {
	return func(m *Manager) {
		if hook != nil {
			m.hooks = append(m.hooks, hook)
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs a transaction manager.
func NewManager(db Beginner, writer EventWriter, opts ...ManagerOption) (*Manager, error) {
	if db == nil {
		return nil, errors.New("txn: nil db")
	}
	if writer == nil {
		return nil, errors.New("txn: nil event writer")
	}
	m := &Manager{db: db, writer: writer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run executes fn in a transaction. A nested Run joins the outer unit of work.
func (m *Manager) Run(ctx context.Context, fn Func) error {
	if fn == nil {
		return errors.New("txn: nil func")
	}
	if uow, ok := UnitFromContext(ctx); ok {
		return fn(ctx, uow)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("txn: begin: %w", err)
	}
	uow := &UnitOfWork{}
	txCtx := withUnit(WithExecutor(ctx, tx), uow)
	defer func() {
		if p := recover(); p != nil {
			uow.discard()
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Warn("txn rollback failed", zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(txCtx, uow); err != nil {
		uow.discard()
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Warn("txn rollback failed", zap.Error(rbErr))
		}
		return err
	}

	events := uow.Pending()
	for _, event := range events {
		if err := m.writer.Publish(txCtx, event); err != nil {
			uow.discard()
			_ = tx.Rollback()
			return fmt.Errorf("txn: enqueue event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		uow.discard()
		return fmt.Errorf("txn: commit: %w", err)
	}
	if len(events) > 0 {
		for _, hook := range m.hooks {
			hook(ctx)
		}
	}
	return nil
}
