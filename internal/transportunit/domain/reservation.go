package transportunit

import (
	"context"
	"time"
)

// Reservation is an exclusive claim on a transport unit. Acknowledgement
// relabels ReservedBy; the row is only removed together with its unit.
type Reservation struct {
	ID                string
	TransportUnitPKey string
	ReservedBy        string
	ReservedAt        time.Time
}

// ReservationRepository persists reservations. Create must fail with
// ErrAlreadyReserved when the unit already has a row, enforced by the store.
type ReservationRepository interface {
	HasReservations(ctx context.Context, transportUnitPKey string) (bool, error)
	FindByTransportUnit(ctx context.Context, transportUnitPKey string) (*Reservation, error)
	FindByReservedBy(ctx context.Context, reservedBy string) ([]Reservation, error)
	Create(ctx context.Context, reservation *Reservation) error
	Relabel(ctx context.Context, id, reservedBy string, reservedAt time.Time) error
	DeleteByTransportUnit(ctx context.Context, transportUnitPKey string) error
}
