package txn

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type contextKey string

const (
	contextKeyExecutor contextKey = "txn.executor"
	contextKeyUnit     contextKey = "txn.unit_of_work"
)

// WithExecutor binds an executor (usually a *sql.Tx) to ctx.
func WithExecutor(ctx context.Context, exec DBTX) context.Context {
	return context.WithValue(ctx, contextKeyExecutor, exec)
}

// Executor returns the executor bound to ctx, or fallback.
func Executor(ctx context.Context, fallback DBTX) DBTX {
	if ctx != nil {
		if exec, ok := ctx.Value(contextKeyExecutor).(DBTX); ok && exec != nil {
			return exec
		}
	}
	return fallback
}

func withUnit(ctx context.Context, uow *UnitOfWork) context.Context {
	return context.WithValue(ctx, contextKeyUnit, uow)
}

// UnitFromContext returns the unit of work active in ctx.
func UnitFromContext(ctx context.Context) (*UnitOfWork, bool) {
	if ctx == nil {
		return nil, false
	}
	uow, ok := ctx.Value(contextKeyUnit).(*UnitOfWork)
	return uow, ok && uow != nil
}
