package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	events   []any
	boundTx  []bool
	failWith error
}

func (w *recordingWriter) Publish(ctx context.Context, event any) error {
	if w.failWith != nil {
		return w.failWith
	}
	w.events = append(w.events, event)
	w.boundTx = append(w.boundTx, Executor(ctx, nil) != nil)
	return nil
}

func TestManagerRunWritesEventsInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := &recordingWriter{}
	hookCalls := 0
	manager, err := NewManager(db, writer, WithAfterCommit(func(context.Context) { hookCalls++ }))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE locations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = manager.Run(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
		if _, err := Executor(ctx, db).ExecContext(ctx, "UPDATE locations SET plc_state = 1"); err != nil {
			return err
		}
		uow.Enqueue("first", "second")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"first", "second"}, writer.events)
	assert.Equal(t, []bool{true, true}, writer.boundTx)
	assert.Equal(t, 1, hookCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerRunRollsBackAndDropsEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := &recordingWriter{}
	hookCalls := 0
	manager, err := NewManager(db, writer, WithAfterCommit(func(context.Context) { hookCalls++ }))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = manager.Run(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
		uow.Enqueue("never-sent")
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, writer.events)
	assert.Zero(t, hookCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerRunRollsBackWhenOutboxWriteFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	manager, err := NewManager(db, &recordingWriter{failWith: errors.New("insert failed")})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = manager.Run(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
		uow.Enqueue("event")
		return nil
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerNestedRunJoinsOuterUnit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := &recordingWriter{}
	manager, err := NewManager(db, writer)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = manager.Run(context.Background(), func(ctx context.Context, outer *UnitOfWork) error {
		outer.Enqueue("outer")
		return manager.Run(ctx, func(ctx context.Context, inner *UnitOfWork) error {
			assert.Same(t, outer, inner)
			inner.Enqueue("inner")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"outer", "inner"}, writer.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerSkipsHooksWithoutEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hookCalls := 0
	manager, err := NewManager(db, &recordingWriter{}, WithAfterCommit(func(context.Context) { hookCalls++ }))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, manager.Run(context.Background(), func(context.Context, *UnitOfWork) error { return nil }))
	assert.Zero(t, hookCalls)
}

func TestNewManagerRejectsNilDeps(t *testing.T) {
	_, err := NewManager(nil, &recordingWriter{})
	assert.Error(t, err)
}

func TestManagerRunRollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writer := &recordingWriter{}
	manager, err := NewManager(db, writer)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = manager.Run(context.Background(), func(_ context.Context, uow *UnitOfWork) error {
			uow.Enqueue("lost")
			panic("boom")
		})
	})
	assert.Empty(t, writer.events)
	require.NoError(t, mock.ExpectationsWereMet())
}
