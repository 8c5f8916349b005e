package events

import "time"

// LocationStateChanged is emitted when a telegram changed a location.
type LocationStateChanged struct {
	LocationID    string    `json:"location_id"`
	LocationPK    string    `json:"location_pk"`
	PLCCode       string    `json:"plc_code,omitempty"`
	ERPCode       string    `json:"erp_code,omitempty"`
	GroupName     string    `json:"group_name,omitempty"`
	InfeedActive  bool      `json:"infeed_active"`
	OutfeedActive bool      `json:"outfeed_active"`
	PLCState      int       `json:"plc_state"`
	ErrorCode     string    `json:"error_code"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (LocationStateChanged) EventName() string { return "LocationStateChanged" }

// Sources of a group state change.
const (
	SourceTelegram = "telegram"
	SourceOperator = "operator"
)

// LocationGroupStateChanged is emitted for group state assignments.
type LocationGroupStateChanged struct {
	GroupName     string    `json:"group_name"`
	GroupStateIn  string    `json:"group_state_in"`
	GroupStateOut string    `json:"group_state_out"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Source        string    `json:"source"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (LocationGroupStateChanged) EventName() string { return "LocationGroupStateChanged" }

// LocationGroupModeChanged is emitted when the operation mode changes.
type LocationGroupModeChanged struct {
	GroupName     string    `json:"group_name"`
	OperationMode string    `json:"operation_mode"`
	PreviousMode  string    `json:"previous_mode"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (LocationGroupModeChanged) EventName() string { return "LocationGroupModeChanged" }

// All lists samples of every event for registry setup.
func All() []any {
	return []any{LocationStateChanged{}, LocationGroupStateChanged{}, LocationGroupModeChanged{}}
}
