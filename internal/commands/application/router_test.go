package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/apperr"
	"wms-core/internal/commands/application"
	commands "wms-core/internal/commands/domain"
	"wms-core/internal/eventing"
	eventmemory "wms-core/internal/eventing/infrastructure/memory"
	locationapp "wms-core/internal/location/application"
	location "wms-core/internal/location/domain"
	locationmemory "wms-core/internal/location/infrastructure/memory"
	"wms-core/internal/platform/txn"
	replicaapp "wms-core/internal/replica/application"
	replicamemory "wms-core/internal/replica/infrastructure/memory"
)

type fixture struct {
	router    *application.Router
	outbox    *eventmemory.OutboxStore
	dlq       *eventmemory.DLQStore
	locations *locationapp.LocationStateService
	replicas  *replicamemory.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	outbox := eventmemory.NewOutboxStore()
	publisher, err := eventing.NewPublisher(outbox, nil)
	require.NoError(t, err)
	runner := txn.NewMemoryRunner(publisher)

	locations := locationmemory.NewLocationRepository(location.Location{
		ID:        "L-1",
		PK:        location.LocationPK{Area: "EXT", Aisle: "0000", X: "0001", Y: "0000", Z: "0000"},
		PLCCode:   "PLC-1",
		GroupName: "ZONE-A",
	})
	groups := locationmemory.NewGroupRepository(location.LocationGroup{
		Name:          "ZONE-A",
		GroupStateIn:  location.GroupStateAvailable,
		GroupStateOut: location.GroupStateAvailable,
		OperationMode: location.ModeInfeedAndOutfeed,
	})
	locationSvc, err := locationapp.NewLocationStateService(locations, groups, runner)
	require.NoError(t, err)
	groupSvc, err := locationapp.NewGroupStateService(groups, runner)
	require.NoError(t, err)
	replicas := replicamemory.NewRepository()
	registry, err := replicaapp.NewRegistry(replicas, runner)
	require.NoError(t, err)

	dlq := eventmemory.NewDLQStore()
	router, err := application.NewRouter(runner, eventmemory.NewProcessedStore(), application.WithDeadLetter(dlq))
	require.NoError(t, err)
	application.RegisterHandlers(router, application.Services{
		Locations: locationSvc,
		Groups:    groupSvc,
		Replicas:  registry,
	})
	return fixture{router: router, outbox: outbox, dlq: dlq, locations: locationSvc, replicas: replicas}
}

func envelope(id string, commandType commands.Type, payload map[string]any) eventing.Envelope {
	raw, _ := json.Marshal(payload)
	return eventing.Envelope{EventID: id, EventType: string(commandType), Payload: raw}
}

func TestRouteCommitsAndQueuesEvent(t *testing.T) {
	f := newFixture(t)

	outcome := f.router.Route(context.Background(), envelope("cmd-1", commands.TypeChangeLocationState, map[string]any{
		"location_id": "L-1",
		"error_code":  "00000000",
	}))
	require.NoError(t, outcome.Err)
	assert.Equal(t, commands.StatusCommitted, outcome.Status)
	assert.Equal(t, []string{"LocationStateChanged:pending"}, f.outbox.Statuses())
	assert.Empty(t, f.dlq.Letters())
}

func TestRouteDuplicateIsNotReapplied(t *testing.T) {
	f := newFixture(t)
	env := envelope("cmd-1", commands.TypeSetGroupState, map[string]any{
		"group_name": "ZONE-A",
		"state_in":   "NOT_AVAILABLE",
		"state_out":  "AVAILABLE",
	})

	first := f.router.Route(context.Background(), env)
	second := f.router.Route(context.Background(), env)

	assert.Equal(t, commands.StatusCommitted, first.Status)
	assert.Equal(t, commands.StatusDuplicate, second.Status)
	assert.NoError(t, second.Err)
	assert.Equal(t, 1, f.outbox.Len())
	assert.Empty(t, f.dlq.Letters())
}

func TestRouteMissingFieldIsDeadLettered(t *testing.T) {
	f := newFixture(t)

	outcome := f.router.Route(context.Background(), envelope("cmd-2", commands.TypeChangeGroupState, map[string]any{
		"group_name": "ZONE-A",
	}))
	assert.Equal(t, commands.StatusRejected, outcome.Status)
	assert.ErrorIs(t, outcome.Err, commands.ErrFieldRequired)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(outcome.Err))

	letters := f.dlq.Letters()
	require.Len(t, letters, 1)
	assert.Equal(t, "cmd-2", letters[0].Envelope.EventID)
	assert.Equal(t, string(commands.TypeChangeGroupState), letters[0].Envelope.EventType)
	assert.Contains(t, letters[0].Error, "error_code")
	assert.Contains(t, letters[0].Error, "profile="+string(commands.ProfileStateChange))
	assert.Equal(t, commands.ProfileStateChange, outcome.Profile)
	assert.Zero(t, f.outbox.Len())
}

func TestRouteRejectsUnknownTypeAndMalformedPayload(t *testing.T) {
	f := newFixture(t)

	unknown := f.router.Route(context.Background(), envelope("cmd-3", "LAUNCH_ROCKET", map[string]any{"x": 1}))
	assert.Equal(t, commands.StatusRejected, unknown.Status)
	assert.ErrorIs(t, unknown.Err, commands.ErrTypeUnknown)
	assert.Empty(t, unknown.Profile)

	malformed := f.router.Route(context.Background(), eventing.Envelope{
		EventID:   "cmd-4",
		EventType: string(commands.TypeSetLocationEmpty),
		Payload:   json.RawMessage(`{"location_id":`),
	})
	assert.Equal(t, commands.StatusRejected, malformed.Status)
	assert.ErrorIs(t, malformed.Err, commands.ErrPayloadInvalid)

	empty := f.router.Route(context.Background(), eventing.Envelope{EventID: "cmd-5", EventType: string(commands.TypeSetLocationEmpty)})
	assert.ErrorIs(t, empty.Err, commands.ErrPayloadInvalid)

	assert.Len(t, f.dlq.Letters(), 3)
}

func TestRouteBadTelegramIsDeadLettered(t *testing.T) {
	f := newFixture(t)

	outcome := f.router.Route(context.Background(), envelope("cmd-6", commands.TypeChangeLocationState, map[string]any{
		"plc_code":   "PLC-1",
		"error_code": "12",
	}))
	assert.Equal(t, commands.StatusRejected, outcome.Status)
	assert.ErrorIs(t, outcome.Err, location.ErrErrorCodeInvalid)
	assert.Len(t, f.dlq.Letters(), 1)
}

func TestRouteUnknownLocationIsNotFound(t *testing.T) {
	f := newFixture(t)

	outcome := f.router.Route(context.Background(), envelope("cmd-7", commands.TypeSetLocationEmpty, map[string]any{
		"location_pk": "EXT/9999/0001/0000/0000",
	}))
	assert.Equal(t, commands.StatusRejected, outcome.Status)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(outcome.Err))
}

func TestRouteRollbackSuppressesEvents(t *testing.T) {
	f := newFixture(t)
	application.Handle(f.router, "FLIP_THEN_FAIL", func(ctx context.Context, _ commands.Command, p commands.ChangeLocationState) error {
		ref, err := p.Ref()
		if err != nil {
			return err
		}
		if _, err := f.locations.ChangeState(ctx, ref, p.ErrorCode, nil); err != nil {
			return err
		}
		return errors.New("downstream write failed")
	})

	outcome := f.router.Route(context.Background(), envelope("cmd-8", "FLIP_THEN_FAIL", map[string]any{
		"location_id": "L-1",
		"error_code":  "00000000",
	}))
	assert.Equal(t, commands.StatusRejected, outcome.Status)
	assert.Zero(t, f.outbox.Len())
	assert.Len(t, f.dlq.Letters(), 1)
}

func TestRouteRegistrationIsIdempotentAcrossCommands(t *testing.T) {
	f := newFixture(t)
	for i, endpoint := range []string{"http://pick-ui/removed", "http://pick-ui-v2/removed"} {
		outcome := f.router.Route(context.Background(), envelope("reg-"+strings.Repeat("x", i+1), commands.TypeRegisterReplica, map[string]any{
			"application_name": "pick-ui",
			"removal_endpoint": endpoint,
		}))
		require.Equal(t, commands.StatusCommitted, outcome.Status, "%v", outcome.Err)
	}
	assert.Equal(t, 1, f.replicas.Len())
	stored, err := f.replicas.Get(context.Background(), "pick-ui")
	require.NoError(t, err)
	assert.Equal(t, "http://pick-ui-v2/removed", stored.RemovalEndpoint)
	assert.Equal(t, []string{"ReplicaRegistered:pending", "ReplicaRegistered:pending"}, f.outbox.Statuses())
}

func TestRouteCorrelatesEmittedEvents(t *testing.T) {
	f := newFixture(t)
	env := envelope("cmd-9", commands.TypeSetGroupMode, map[string]any{
		"group_name":     "ZONE-A",
		"operation_mode": "BLOCKED",
	})
	env.CorrelationID = "corr-42"

	outcome := f.router.Route(context.Background(), env)
	require.Equal(t, commands.StatusCommitted, outcome.Status)

	pending, err := f.outbox.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "corr-42", pending[0].Envelope.CorrelationID)
}

func TestNewRouterRejectsNilDeps(t *testing.T) {
	_, err := application.NewRouter(nil, eventmemory.NewProcessedStore())
	require.Error(t, err)
	_, err = application.NewRouter(txn.NewMemoryRunner(nil), nil)
	require.Error(t, err)
}
