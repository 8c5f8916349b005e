package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/eventing"
	eventmemory "wms-core/internal/eventing/infrastructure/memory"
	"wms-core/internal/platform/retry"
	replica "wms-core/internal/replica/domain"
	"wms-core/internal/replica/infrastructure/memory"
	"wms-core/internal/transportunit/application/events"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string][]RemovalNotice
	fail  map[string]int
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][]RemovalNotice), fail: make(map[string]int)}
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	var notice RemovalNotice
	_ = json.NewDecoder(req.Body).Decode(&notice)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[req.URL.Path] = append(r.calls[req.URL.Path], notice)
	if r.fail[req.URL.Path] > 0 {
		r.fail[req.URL.Path]--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *recorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[path])
}

func fastPolicy() retry.Policy {
	return retry.Policy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxTries: 3}
}

func TestNotifierCallsRegisteredReplicasOnly(t *testing.T) {
	rec := newRecorder()
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	replicas := memory.NewRepository(
		replica.Replica{ApplicationName: "pick-ui", State: replica.StateRegistered, RequestRemovalEndpoint: server.URL + "/pick/request", RemovalEndpoint: server.URL + "/pick/removed"},
		replica.Replica{ApplicationName: "old-ui", State: replica.StateUnregistered, RequestRemovalEndpoint: server.URL + "/old/request"},
	)
	notifier, err := NewNotifier(replicas, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	bus := eventing.NewInMemoryBus()
	notifier.Subscribe(bus, nil)

	require.NoError(t, bus.Publish(context.Background(), events.TransportUnitDeletionRequested{PKey: "pk-1", Barcode: "4711"}))
	assert.Equal(t, 1, rec.count("/pick/request"))
	assert.Equal(t, 0, rec.count("/old/request"))
	assert.Equal(t, 0, rec.count("/pick/removed"))
	assert.Equal(t, RemovalNotice{Barcode: "4711", PKey: "pk-1"}, rec.calls["/pick/request"][0])

	require.NoError(t, bus.Publish(context.Background(), events.TransportUnitDeleted{PKey: "pk-1", Barcode: "4711"}))
	assert.Equal(t, 1, rec.count("/pick/removed"))
}

func TestNotifierRetriesServerErrorsAndNeverFails(t *testing.T) {
	rec := newRecorder()
	rec.fail["/flaky"] = 1
	rec.fail["/down"] = 10
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	replicas := memory.NewRepository(
		replica.Replica{ApplicationName: "a", State: replica.StateRegistered, RemovalEndpoint: server.URL + "/flaky"},
		replica.Replica{ApplicationName: "b", State: replica.StateRegistered, RemovalEndpoint: server.URL + "/down"},
	)
	notifier, err := NewNotifier(replicas, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	err = notifier.HandleDeleted(context.Background(), events.TransportUnitDeleted{PKey: "pk-1", Barcode: "4711"})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.count("/flaky"))
	assert.Equal(t, 3, rec.count("/down"))
}

func TestNotifierDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	replicas := memory.NewRepository(replica.Replica{ApplicationName: "a", State: replica.StateRegistered, RemovalEndpoint: server.URL})
	notifier, err := NewNotifier(replicas, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	require.NoError(t, notifier.HandleDeleted(context.Background(), &events.TransportUnitDeleted{Barcode: "4711"}))
	assert.Equal(t, 1, calls)
}

func TestNotifierIsIdempotentPerEnvelope(t *testing.T) {
	rec := newRecorder()
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	replicas := memory.NewRepository(replica.Replica{ApplicationName: "a", State: replica.StateRegistered, RemovalEndpoint: server.URL + "/removed"})
	notifier, err := NewNotifier(replicas, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	bus := eventing.NewInMemoryBus()
	notifier.Subscribe(bus, eventmemory.NewProcessedStore())

	ctx := eventing.WithEnvelope(context.Background(), eventing.Envelope{EventID: "evt-1", EventType: "TransportUnitDeleted"})
	event := events.TransportUnitDeleted{PKey: "pk-1", Barcode: "4711"}
	require.NoError(t, bus.Publish(ctx, event))
	require.NoError(t, bus.Publish(ctx, event))
	assert.Equal(t, 1, rec.count("/removed"))
}

func TestNewNotifierRejectsNilLister(t *testing.T) {
	_, err := NewNotifier(nil)
	require.Error(t, err)
}
