package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/platform/txn"
	"wms-core/internal/replica/application"
	"wms-core/internal/replica/application/events"
	replica "wms-core/internal/replica/domain"
	"wms-core/internal/replica/infrastructure/memory"
)

type eventSink struct {
	events []any
}

func (s *eventSink) Publish(_ context.Context, event any) error {
	s.events = append(s.events, event)
	return nil
}

func newRegistry(t *testing.T) (*application.Registry, *memory.Repository, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	repo := memory.NewRepository()
	now := time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
	registry, err := application.NewRegistry(repo, txn.NewMemoryRunner(sink), application.WithRegistryClock(func() time.Time { return now }))
	require.NoError(t, err)
	return registry, repo, sink
}

func TestRegisterTwiceKeepsOneRowAndUpdatesFields(t *testing.T) {
	registry, repo, sink := newRegistry(t)
	ctx := context.Background()

	first, err := registry.Register(ctx, replica.Registration{
		ApplicationName:        "pick-ui",
		RequestRemovalEndpoint: "http://pick-ui/request",
		RemovalEndpoint:        "http://pick-ui/removed",
	})
	require.NoError(t, err)
	assert.Equal(t, replica.StateRegistered, first.State)

	second, err := registry.Register(ctx, replica.Registration{
		ApplicationName:        "pick-ui",
		RequestRemovalEndpoint: "http://pick-ui-v2/request",
		RemovalEndpoint:        "http://pick-ui-v2/removed",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, "http://pick-ui-v2/request", second.RequestRemovalEndpoint)

	stored, err := repo.Get(ctx, "pick-ui")
	require.NoError(t, err)
	assert.Equal(t, "http://pick-ui-v2/removed", stored.RemovalEndpoint)
	require.Len(t, sink.events, 2)
	assert.IsType(t, events.ReplicaRegistered{}, sink.events[1])
}

func TestRegisterIdenticalEmitsNothing(t *testing.T) {
	registry, repo, sink := newRegistry(t)
	reg := replica.Registration{ApplicationName: "pick-ui", RemovalEndpoint: "http://pick-ui/removed"}

	_, err := registry.Register(context.Background(), reg)
	require.NoError(t, err)
	_, err = registry.Register(context.Background(), reg)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.Len())
	assert.Len(t, sink.events, 1)
}

func TestUnregisterIsIdempotentUpsert(t *testing.T) {
	registry, repo, sink := newRegistry(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, replica.Registration{ApplicationName: "pick-ui", RemovalEndpoint: "http://pick-ui/removed"})
	require.NoError(t, err)

	out, err := registry.Unregister(ctx, replica.Registration{ApplicationName: "pick-ui"})
	require.NoError(t, err)
	assert.Equal(t, replica.StateUnregistered, out.State)
	assert.Equal(t, "http://pick-ui/removed", out.RemovalEndpoint)
	require.NotNil(t, out.UnregisteredAt)

	_, err = registry.Unregister(ctx, replica.Registration{ApplicationName: "pick-ui"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
	require.Len(t, sink.events, 2)
	assert.IsType(t, events.ReplicaUnregistered{}, sink.events[1])

	registered, err := registry.Registered(ctx)
	require.NoError(t, err)
	assert.Empty(t, registered)

	_, err = registry.Unregister(ctx, replica.Registration{ApplicationName: "never-seen"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())
}

func TestRegisterValidatesPayload(t *testing.T) {
	registry, repo, sink := newRegistry(t)

	_, err := registry.Register(context.Background(), replica.Registration{})
	assert.True(t, errors.Is(err, replica.ErrNameMissing))

	_, err = registry.Register(context.Background(), replica.Registration{ApplicationName: "x", RemovalEndpoint: "not a url"})
	assert.ErrorIs(t, err, replica.ErrEndpointInvalid)

	assert.Zero(t, repo.Len())
	assert.Empty(t, sink.events)
}
