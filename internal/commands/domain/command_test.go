package commands

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/apperr"
	"wms-core/internal/eventing"
	location "wms-core/internal/location/domain"
)

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCommitted.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusDuplicate.Terminal())
	assert.False(t, StatusApplying.Terminal())
}

func TestCommandEnvelopeKeepsIdentity(t *testing.T) {
	at := time.Date(2026, time.May, 4, 8, 0, 0, 0, time.UTC)
	env := eventing.Envelope{
		EventID:       "cmd-1",
		EventType:     string(TypeChangeGroupState),
		CorrelationID: "corr-1",
		OccurredAt:    at,
		Payload:       json.RawMessage(`{"group_name":"ZONE-A","error_code":"******00"}`),
	}
	cmd := FromEnvelope(env)
	assert.Equal(t, TypeChangeGroupState, cmd.Type)
	assert.Equal(t, "cmd-1", cmd.ID)

	back := cmd.Envelope()
	assert.Equal(t, env.EventID, back.EventID)
	assert.Equal(t, env.CorrelationID, back.CorrelationID)
	assert.Equal(t, 1, back.SchemaVersion)
	assert.JSONEq(t, string(env.Payload), string(back.Payload))
}

func TestLocationRefFields(t *testing.T) {
	ref, err := LocationRefFields{LocationPK: "HRL/0001/0001/0001/0000"}.Ref()
	require.NoError(t, err)
	require.NotNil(t, ref.PK)
	assert.Equal(t, "HRL", ref.PK.Area)

	_, err = LocationRefFields{}.Ref()
	assert.True(t, errors.Is(err, location.ErrLocationRefMissing))

	_, err = LocationRefFields{LocationPK: "HRL/0001"}.Ref()
	assert.True(t, errors.Is(err, location.ErrLocationPKInvalid))
}

func TestPayloadValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
		code    apperr.Code
	}{
		{"location state without code", ChangeLocationState{LocationRefFields: LocationRefFields{LocationID: "L-1"}}, apperr.CodeCommandFieldRequired},
		{"location state without ref", ChangeLocationState{ErrorCode: "00000000"}, apperr.CodeLocationRefMissing},
		{"group state without name", ChangeGroupState{ErrorCode: "00000000"}, apperr.CodeCommandFieldRequired},
		{"operator state invalid", SetGroupState{GroupName: "ZONE-A", StateIn: "OPEN", StateOut: "AVAILABLE"}, apperr.CodeGroupStateInvalid},
		{"operator mode invalid", SetGroupMode{GroupName: "ZONE-A", OperationMode: "SIDEWAYS"}, apperr.CodeOperationModeInvalid},
		{"ack without business id", AckReservation{ReservationID: "token-1"}, apperr.CodeCommandFieldRequired},
		{"transport unit without barcode", TransportUnitCommand{}, apperr.CodeCommandFieldRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			require.Error(t, err)
			assert.Equal(t, tc.code, apperr.CodeOf(err))
		})
	}

	assert.NoError(t, SetGroupMode{GroupName: "ZONE-A", OperationMode: "BLOCKED"}.Validate())
	assert.NoError(t, AckReservation{ReservationID: "token-1", BusinessID: "ACK-1"}.Validate())
	assert.Equal(t, ProfileOperator, SetGroupState{}.Profile())
}

func TestTransportUnitCommandLocations(t *testing.T) {
	cmd := TransportUnitCommand{Barcode: "4711", TargetLocation: " HRL/0001/0010/0002/0000 "}
	target, err := cmd.Target()
	require.NoError(t, err)
	assert.Equal(t, "0010", target.X)

	_, err = cmd.Actual()
	assert.Equal(t, apperr.CodeCommandFieldRequired, apperr.CodeOf(err))
}
