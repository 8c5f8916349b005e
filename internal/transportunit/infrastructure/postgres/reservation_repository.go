package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"wms-core/internal/platform/txn"
	transportunit "wms-core/internal/transportunit/domain"
)

const (
	defaultReservationsTable = "reservations"
	uniqueViolation          = "23505"
)

// ReservationRepository is a Postgres implementation for reservations. The
// UNIQUE constraint on transport_unit_pkey arbitrates concurrent claims.
type ReservationRepository struct {
	db    txn.DBTX
	table string
}

// NewReservationRepository constructs a repository.
func NewReservationRepository(db txn.DBTX, opts ...ReservationOption) *ReservationRepository {
	repo := &ReservationRepository{db: db, table: defaultReservationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReservationOption configures the repository.
type ReservationOption func(*ReservationRepository)

// WithReservationTable overrides the default table name.
func WithReservationTable(table string) ReservationOption {
	return func(repo *ReservationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// HasReservations reports whether the unit has a reservation row.
func (r *ReservationRepository) HasReservations(ctx context.Context, pkey string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("reservation repo: nil db")
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE transport_unit_pkey = $1)`, r.table)
	var exists bool
	if err := txn.Executor(ctx, r.db).QueryRowContext(ctx, query, pkey).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// FindByTransportUnit returns the reservation of a unit, or nil.
func (r *ReservationRepository) FindByTransportUnit(ctx context.Context, pkey string) (*transportunit.Reservation, error) {
	list, err := r.query(ctx, "transport_unit_pkey = $1", pkey)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// FindByReservedBy returns every reservation held by a token.
func (r *ReservationRepository) FindByReservedBy(ctx context.Context, reservedBy string) ([]transportunit.Reservation, error) {
	return r.query(ctx, "reserved_by = $1", reservedBy)
}

// Create inserts a reservation. A conflicting row, whether found by the
// conflict clause or reported as a unique violation, yields ErrAlreadyReserved.
// The conflict clause keeps the surrounding transaction usable.
func (r *ReservationRepository) Create(ctx context.Context, reservation *transportunit.Reservation) error {
	if r == nil || r.db == nil {
		return errors.New("reservation repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, transport_unit_pkey, reserved_by, reserved_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (transport_unit_pkey) DO NOTHING`, r.table)
	res, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		reservation.ID,
		reservation.TransportUnitPKey,
		reservation.ReservedBy,
		reservation.ReservedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return transportunit.ErrAlreadyReserved.Because(err)
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return transportunit.ErrAlreadyReserved
	}
	return nil
}

// Relabel overwrites the holder and timestamp of a reservation.
func (r *ReservationRepository) Relabel(ctx context.Context, id, reservedBy string, reservedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("reservation repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET reserved_by = $2, reserved_at = $3
WHERE id = $1`, r.table)
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query, id, reservedBy, reservedAt.UTC())
	return err
}

// DeleteByTransportUnit removes the reservation of a unit.
func (r *ReservationRepository) DeleteByTransportUnit(ctx context.Context, pkey string) error {
	if r == nil || r.db == nil {
		return errors.New("reservation repo: nil db")
	}
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE transport_unit_pkey = $1`, r.table), pkey)
	return err
}

func (r *ReservationRepository) query(ctx context.Context, where string, args ...any) ([]transportunit.Reservation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reservation repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, transport_unit_pkey, reserved_by, reserved_at
FROM %s
WHERE %s
ORDER BY reserved_at ASC
FOR UPDATE`, r.table, where)
	rows, err := txn.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []transportunit.Reservation
	for rows.Next() {
		var reservation transportunit.Reservation
		if err := rows.Scan(&reservation.ID, &reservation.TransportUnitPKey, &reservation.ReservedBy, &reservation.ReservedAt); err != nil {
			return nil, err
		}
		out = append(out, reservation)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
