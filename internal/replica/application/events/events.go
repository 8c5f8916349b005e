package events

import "time"

// ReplicaRegistered is emitted when a replica starts receiving callbacks or
// changes its endpoints.
type ReplicaRegistered struct {
	ApplicationName        string    `json:"application_name"`
	RequestRemovalEndpoint string    `json:"request_removal_endpoint,omitempty"`
	RemovalEndpoint        string    `json:"removal_endpoint,omitempty"`
	OccurredAt             time.Time `json:"occurred_at"`
}

func (ReplicaRegistered) EventName() string { return "ReplicaRegistered" }

// ReplicaUnregistered is emitted when a replica stops receiving callbacks.
type ReplicaUnregistered struct {
	ApplicationName string    `json:"application_name"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (ReplicaUnregistered) EventName() string { return "ReplicaUnregistered" }

// All lists samples of every event for registry setup.
func All() []any {
	return []any{ReplicaRegistered{}, ReplicaUnregistered{}}
}
