package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunnerFlushesOnlyOnSuccess(t *testing.T) {
	writer := &recordingWriter{}
	hookCalls := 0
	runner := NewMemoryRunner(writer, func(context.Context) { hookCalls++ })

	err := runner.Run(context.Background(), func(_ context.Context, uow *UnitOfWork) error {
		uow.Enqueue("dropped")
		return errors.New("rolled back")
	})
	require.Error(t, err)
	assert.Empty(t, writer.events)
	assert.Zero(t, hookCalls)

	err = runner.Run(context.Background(), func(_ context.Context, uow *UnitOfWork) error {
		uow.Enqueue("kept", nil)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"kept"}, writer.events)
	assert.Equal(t, 1, hookCalls)
}

func TestExecutorFallsBack(t *testing.T) {
	assert.Nil(t, Executor(context.Background(), nil))
	_, ok := UnitFromContext(context.Background())
	assert.False(t, ok)
}

func TestMemoryRunnerReleasesLockAfterPanic(t *testing.T) {
	writer := &recordingWriter{}
	runner := NewMemoryRunner(writer)

	assert.Panics(t, func() {
		_ = runner.Run(context.Background(), func(_ context.Context, uow *UnitOfWork) error {
			uow.Enqueue("lost")
			panic("boom")
		})
	})

	err := runner.Run(context.Background(), func(_ context.Context, uow *UnitOfWork) error {
		uow.Enqueue("next")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"next"}, writer.events)
}
