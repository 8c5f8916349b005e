package stream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/broker"
	commands "wms-core/internal/commands/domain"
	"wms-core/internal/eventing"
)

type recordingRouter struct {
	mu   sync.Mutex
	seen []eventing.Envelope
}

func (r *recordingRouter) Route(_ context.Context, env eventing.Envelope) commands.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, env)
	status := commands.StatusCommitted
	if len(env.Payload) == 0 {
		status = commands.StatusRejected
	}
	return commands.Outcome{CommandID: env.EventID, Type: commands.Type(env.EventType), Status: status}
}

func setup(t *testing.T) (*redis.Client, *recordingRouter, *Consumer) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	topology := broker.DefaultTopology("wms", "core")
	require.NoError(t, broker.Provision(context.Background(), client, topology, nil))

	router := &recordingRouter{}
	consumer, err := NewConsumer(client, router, topology.Commands, "core", "core-1", WithBlock(10*time.Millisecond))
	require.NoError(t, err)
	return client, router, consumer
}

func TestPollRoutesAndAcksEveryEntry(t *testing.T) {
	client, router, consumer := setup(t)
	ctx := context.Background()

	publisher, err := broker.NewStreamPublisher(client, "wms.commands")
	require.NoError(t, err)
	_, err = publisher.Publish(ctx, eventing.Envelope{
		EventID:   "cmd-1",
		EventType: string(commands.TypeSetLocationEmpty),
		Payload:   json.RawMessage(`{"location_id":"L-1"}`),
	})
	require.NoError(t, err)
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "wms.commands",
		Values: map[string]any{broker.FieldRoutingKey: "ACK_RESERVATION", broker.FieldEnvelope: "{not json"},
	}).Err())

	handled, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, handled)

	require.Len(t, router.seen, 2)
	assert.Equal(t, "cmd-1", router.seen[0].EventID)
	assert.Equal(t, "ACK_RESERVATION", router.seen[1].EventType)
	assert.NotEmpty(t, router.seen[1].EventID)
	assert.Empty(t, router.seen[1].Payload)

	pending, err := client.XPending(ctx, "wms.commands", "core").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)

	handled, err = consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestRunStopsOnCancel(t *testing.T) {
	_, _, consumer := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNewConsumerValidatesArguments(t *testing.T) {
	_, err := NewConsumer(nil, &recordingRouter{}, "s", "g", "c")
	require.Error(t, err)
	_, err = NewConsumer(redis.NewClient(&redis.Options{}), nil, "s", "g", "c")
	require.Error(t, err)
	_, err = NewConsumer(redis.NewClient(&redis.Options{}), &recordingRouter{}, "", "g", "c")
	require.Error(t, err)
}
