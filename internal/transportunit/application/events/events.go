package events

import "time"

// TransportUnitCreated is emitted on first sighting of a unit.
type TransportUnitCreated struct {
	PKey           string    `json:"pkey"`
	Barcode        string    `json:"barcode"`
	ActualLocation string    `json:"actual_location"`
	Type           string    `json:"type,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (TransportUnitCreated) EventName() string { return "TransportUnitCreated" }

// TransportUnitMoved is emitted after a relocation.
type TransportUnitMoved struct {
	PKey       string    `json:"pkey"`
	Barcode    string    `json:"barcode"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TransportUnitMoved) EventName() string { return "TransportUnitMoved" }

// TransportUnitDeletionRequested asks replicas to release a unit.
type TransportUnitDeletionRequested struct {
	PKey       string    `json:"pkey"`
	Barcode    string    `json:"barcode"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TransportUnitDeletionRequested) EventName() string { return "TransportUnitDeletionRequested" }

// TransportUnitDeleted is emitted once a unit is gone.
type TransportUnitDeleted struct {
	PKey       string    `json:"pkey"`
	Barcode    string    `json:"barcode"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TransportUnitDeleted) EventName() string { return "TransportUnitDeleted" }

// TransportUnitReserved is emitted when a claim is placed.
type TransportUnitReserved struct {
	ReservationID string    `json:"reservation_id"`
	PKey          string    `json:"pkey"`
	Barcode       string    `json:"barcode"`
	ReservedBy    string    `json:"reserved_by"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (TransportUnitReserved) EventName() string { return "TransportUnitReserved" }

// ReservationAcknowledged is emitted when a claim is handed over.
type ReservationAcknowledged struct {
	Token          string    `json:"token"`
	AcknowledgedBy string    `json:"acknowledged_by"`
	BusinessID     string    `json:"business_id"`
	SequenceNo     int       `json:"sequence_no"`
	ReservationIDs []string  `json:"reservation_ids"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (ReservationAcknowledged) EventName() string { return "ReservationAcknowledged" }

// All lists samples of every event for registry setup.
func All() []any {
	return []any{
		TransportUnitCreated{},
		TransportUnitMoved{},
		TransportUnitDeletionRequested{},
		TransportUnitDeleted{},
		TransportUnitReserved{},
		ReservationAcknowledged{},
	}
}
