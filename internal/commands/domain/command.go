package commands

import (
	"encoding/json"
	"time"

	"wms-core/internal/apperr"
	"wms-core/internal/eventing"
)

// Type discriminates inbound commands. It doubles as the routing key.
type Type string

const (
	TypeChangeLocationState Type = "CHANGE_LOCATION_STATE"
	TypeChangeGroupState    Type = "CHANGE_GROUP_STATE"
	TypeSetGroupState       Type = "SET_GROUP_STATE"
	TypeSetGroupMode        Type = "SET_GROUP_MODE"
	TypeSetLocationEmpty    Type = "SET_LOCATION_EMPTY"
	TypeRegisterReplica     Type = "REGISTER_REPLICA"
	TypeUnregisterReplica   Type = "UNREGISTER_REPLICA"
	TypeAckReservation      Type = "ACK_RESERVATION"
	TypeTUCreate            Type = "TU_CREATE"
	TypeTUMove              Type = "TU_MOVE"
	TypeTUDelete            Type = "TU_DELETE"
	TypeTUDeletionAccepted  Type = "TU_DELETION_ACCEPTED"
)

// Status is a step of the command lifecycle.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusValidating Status = "VALIDATING"
	StatusApplying   Status = "APPLYING"
	StatusCommitted  Status = "COMMITTED"
	StatusRejected   Status = "REJECTED"
	StatusDuplicate  Status = "DUPLICATE"
)

// Terminal reports whether no further step follows.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusRejected || s == StatusDuplicate
}

var (
	// ErrTypeUnknown is returned for a command type without a handler.
	ErrTypeUnknown = apperr.New(apperr.KindInvalidArgument, apperr.CodeCommandTypeUnknown, "command: unknown type")
	// ErrPayloadInvalid is returned when a payload cannot be decoded.
	ErrPayloadInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeCommandPayload, "command: invalid payload")
	// ErrFieldRequired is returned when a mandatory field is missing.
	ErrFieldRequired = apperr.New(apperr.KindInvalidArgument, apperr.CodeCommandFieldRequired, "command: field required")
)

// Command is an inbound request carried in an envelope.
type Command struct {
	ID            string
	Type          Type
	CorrelationID string
	Payload       json.RawMessage
	ReceivedAt    time.Time
}

// FromEnvelope maps a transport envelope to a command.
func FromEnvelope(env eventing.Envelope) Command {
	return Command{
		ID:            env.EventID,
		Type:          Type(env.EventType),
		CorrelationID: env.CorrelationID,
		Payload:       env.Payload,
		ReceivedAt:    env.OccurredAt,
	}
}

// Envelope maps the command back to its transport form.
func (c Command) Envelope() eventing.Envelope {
	return eventing.Envelope{
		EventID:       c.ID,
		EventType:     string(c.Type),
		OccurredAt:    c.ReceivedAt,
		CorrelationID: c.CorrelationID,
		SchemaVersion: 1,
		Payload:       c.Payload,
	}
}

// Outcome is the terminal result of routing one command.
type Outcome struct {
	CommandID string
	Type      Type
	Status    Status
	Profile   Profile
	Err       error
}
