package eventing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/eventing"
	"wms-core/internal/eventing/infrastructure/memory"
	"wms-core/internal/platform/txn"
)

type groupLocked struct {
	GroupName  string    `json:"group_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (groupLocked) EventName() string { return "GroupLocked" }

type unnamed struct {
	Barcode string `json:"barcode"`
}

func TestBuildEnvelopeUsesEventNameAndAggregate(t *testing.T) {
	at := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	env, err := eventing.BuildEnvelope(groupLocked{GroupName: "ZONE-A", OccurredAt: at}, eventing.Meta{CorrelationID: "corr-1"})
	require.NoError(t, err)

	assert.Equal(t, "GroupLocked", env.EventType)
	assert.Equal(t, "ZONE-A", env.AggregateID)
	assert.Equal(t, at, env.OccurredAt)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.NotEmpty(t, env.EventID)

	plain, err := eventing.BuildEnvelope(&unnamed{Barcode: "TU-1"}, eventing.Meta{})
	require.NoError(t, err)
	assert.Equal(t, "eventing_test.unnamed", plain.EventType)
	assert.Equal(t, plain.EventID, plain.CorrelationID)
	assert.Equal(t, "GroupLocked", eventing.EventTypeOf[groupLocked]())
}

func TestRegistryRoundTripAndUnknownType(t *testing.T) {
	registry := eventing.NewRegistry()
	registry.Register(groupLocked{})

	env, err := eventing.BuildEnvelope(groupLocked{GroupName: "ZONE-B"}, eventing.Meta{})
	require.NoError(t, err)
	decoded, err := registry.DecodePayload(env)
	require.NoError(t, err)
	assert.Equal(t, "ZONE-B", decoded.(groupLocked).GroupName)

	_, err = registry.DecodePayload(eventing.Envelope{EventType: "Nope"})
	assert.ErrorIs(t, err, eventing.ErrUnknownEventType)
}

func TestOutboxFlowPublishesAfterCommitOnly(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutboxStore()
	publisher, err := eventing.NewPublisher(outbox, nil)
	require.NoError(t, err)

	registry := eventing.NewRegistry()
	registry.Register(groupLocked{})
	bus := eventing.NewInMemoryBus()
	var seen []string
	bus.Subscribe(eventing.EventTypeOf[groupLocked](), func(ctx context.Context, event any) error {
		seen = append(seen, event.(groupLocked).GroupName)
		return nil
	})
	dispatcher, err := eventing.NewDispatcher(bus, outbox, registry, memory.NewDLQStore())
	require.NoError(t, err)

	runner := txn.NewMemoryRunner(publisher, func(ctx context.Context) {
		_, _ = dispatcher.Dispatch(ctx, 10)
	})

	err = runner.Run(ctx, func(_ context.Context, uow *txn.UnitOfWork) error {
		uow.Enqueue(groupLocked{GroupName: "ROLLED-BACK"})
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Zero(t, outbox.Len())
	assert.Empty(t, seen)

	err = runner.Run(ctx, func(_ context.Context, uow *txn.UnitOfWork) error {
		uow.Enqueue(groupLocked{GroupName: "COMMITTED"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"COMMITTED"}, seen)
	assert.Equal(t, []string{"GroupLocked:sent"}, outbox.Statuses())
}

func TestDispatcherDeadLettersFailedDeliveries(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutboxStore()
	dlq := memory.NewDLQStore()
	registry := eventing.NewRegistry()
	registry.Register(groupLocked{})
	bus := eventing.NewInMemoryBus()
	bus.Subscribe(eventing.AllEvents, func(context.Context, any) error {
		return errors.New("broker down")
	})

	good, err := eventing.BuildEnvelope(groupLocked{GroupName: "G"}, eventing.Meta{})
	require.NoError(t, err)
	_, err = outbox.Insert(ctx, good)
	require.NoError(t, err)
	_, err = outbox.Insert(ctx, eventing.Envelope{EventID: "evt-unknown", EventType: "Unknown"})
	require.NoError(t, err)

	dispatcher, err := eventing.NewDispatcher(bus, outbox, registry, dlq)
	require.NoError(t, err)
	result, err := dispatcher.Dispatch(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Claimed)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, result.DLQ)
	assert.Equal(t, []string{"GroupLocked:failed", "Unknown:failed"}, outbox.Statuses())
	letters := dlq.Letters()
	require.Len(t, letters, 2)
	assert.Equal(t, "broker down", letters[0].Error)
}

func TestWrapHandlerSkipsProcessedEvents(t *testing.T) {
	store := memory.NewProcessedStore()
	calls := 0
	handler := eventing.WrapHandler("replica-notifier", func(context.Context, any) error {
		calls++
		return nil
	}, store)

	ctx := eventing.WithEnvelope(context.Background(), eventing.Envelope{EventID: "evt-1"})
	require.NoError(t, handler(ctx, groupLocked{}))
	require.NoError(t, handler(ctx, groupLocked{}))
	assert.Equal(t, 1, calls)
}

func TestPumpDrainsOnKick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbox := memory.NewOutboxStore()
	registry := eventing.NewRegistry()
	registry.Register(groupLocked{})
	bus := eventing.NewInMemoryBus()
	delivered := make(chan string, 1)
	bus.Subscribe(eventing.AllEvents, func(_ context.Context, event any) error {
		delivered <- event.(groupLocked).GroupName
		return nil
	})
	dispatcher, err := eventing.NewDispatcher(bus, outbox, registry, nil)
	require.NoError(t, err)
	pump, err := eventing.NewPump(dispatcher, time.Hour, 10, nil)
	require.NoError(t, err)
	go pump.Run(ctx)

	env, err := eventing.BuildEnvelope(groupLocked{GroupName: "KICKED"}, eventing.Meta{})
	require.NoError(t, err)
	_, err = outbox.Insert(ctx, env)
	require.NoError(t, err)
	pump.Kick(ctx)

	select {
	case name := <-delivered:
		assert.Equal(t, "KICKED", name)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not dispatch")
	}
}
