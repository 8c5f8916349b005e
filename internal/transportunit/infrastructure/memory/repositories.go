// Package memory holds in-process transport unit repositories.
package memory

import (
	"context"
	"sync"
	"time"

	transportunit "wms-core/internal/transportunit/domain"
)

// TransportUnitRepository stores units by pkey.
type TransportUnitRepository struct {
	mu    sync.RWMutex
	items map[string]transportunit.TransportUnit
}

// NewTransportUnitRepository constructs a repository seeded with units.
func NewTransportUnitRepository(units ...transportunit.TransportUnit) *TransportUnitRepository {
	repo := &TransportUnitRepository{items: make(map[string]transportunit.TransportUnit)}
	for _, tu := range units {
		repo.items[tu.PKey] = tu
	}
	return repo
}

func (r *TransportUnitRepository) FindByBarcode(_ context.Context, barcode string) (*transportunit.TransportUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tu := range r.items {
		if tu.Barcode == barcode {
			found := tu
			found.Errors = append([]transportunit.UnitError(nil), tu.Errors...)
			return &found, nil
		}
	}
	return nil, nil
}

func (r *TransportUnitRepository) Create(_ context.Context, tu *transportunit.TransportUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Barcode == tu.Barcode {
			return transportunit.ErrBarcodeInvalid.With("barcode", tu.Barcode).With("reason", "duplicate")
		}
	}
	r.items[tu.PKey] = *tu
	return nil
}

func (r *TransportUnitRepository) Save(_ context.Context, tu *transportunit.TransportUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[tu.PKey]; !ok {
		return transportunit.ErrNotFound.With("pkey", tu.PKey)
	}
	r.items[tu.PKey] = *tu
	return nil
}

func (r *TransportUnitRepository) AppendError(_ context.Context, pkey string, unitErr transportunit.UnitError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tu, ok := r.items[pkey]
	if !ok {
		return transportunit.ErrNotFound.With("pkey", pkey)
	}
	tu.Errors = append(append([]transportunit.UnitError(nil), tu.Errors...), unitErr)
	r.items[pkey] = tu
	return nil
}

func (r *TransportUnitRepository) Delete(_ context.Context, pkey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, pkey)
	return nil
}

// ReservationRepository keeps at most one reservation per unit.
type ReservationRepository struct {
	mu     sync.Mutex
	byUnit map[string]transportunit.Reservation
}

// NewReservationRepository constructs an empty repository.
func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{byUnit: make(map[string]transportunit.Reservation)}
}

func (r *ReservationRepository) HasReservations(_ context.Context, pkey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUnit[pkey]
	return ok, nil
}

func (r *ReservationRepository) FindByTransportUnit(_ context.Context, pkey string) (*transportunit.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.byUnit[pkey]
	if !ok {
		return nil, nil
	}
	return &reservation, nil
}

func (r *ReservationRepository) FindByReservedBy(_ context.Context, reservedBy string) ([]transportunit.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []transportunit.Reservation
	for _, reservation := range r.byUnit {
		if reservation.ReservedBy == reservedBy {
			out = append(out, reservation)
		}
	}
	return out, nil
}

// Create enforces the one-reservation-per-unit constraint.
func (r *ReservationRepository) Create(_ context.Context, reservation *transportunit.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUnit[reservation.TransportUnitPKey]; ok {
		return transportunit.ErrAlreadyReserved
	}
	r.byUnit[reservation.TransportUnitPKey] = *reservation
	return nil
}

func (r *ReservationRepository) Relabel(_ context.Context, id, reservedBy string, reservedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pkey, reservation := range r.byUnit {
		if reservation.ID == id {
			reservation.ReservedBy = reservedBy
			reservation.ReservedAt = reservedAt
			r.byUnit[pkey] = reservation
			return nil
		}
	}
	return nil
}

func (r *ReservationRepository) DeleteByTransportUnit(_ context.Context, pkey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUnit, pkey)
	return nil
}

// Count returns the number of reservation rows.
func (r *ReservationRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUnit)
}
