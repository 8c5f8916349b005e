package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	location "wms-core/internal/location/domain"
	"wms-core/internal/platform/txn"
	transportunit "wms-core/internal/transportunit/domain"
)

const (
	defaultUnitsTable  = "transport_units"
	defaultErrorsTable = "transport_unit_errors"
)

// TransportUnitRepository is a Postgres implementation for transport units.
type TransportUnitRepository struct {
	db          txn.DBTX
	table       string
	errorsTable string
}

// NewTransportUnitRepository constructs a repository.
func NewTransportUnitRepository(db txn.DBTX, opts ...UnitOption) *TransportUnitRepository {
	repo := &TransportUnitRepository{db: db, table: defaultUnitsTable, errorsTable: defaultErrorsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// UnitOption configures the repository.
type UnitOption func(*TransportUnitRepository)

// WithUnitTables overrides the default table names.
func WithUnitTables(units, unitErrors string) UnitOption {
	return func(repo *TransportUnitRepository) {
		if units != "" {
			repo.table = units
		}
		if unitErrors != "" {
			repo.errorsTable = unitErrors
		}
	}
}

// FindByBarcode loads a unit with its errors and locks the unit row.
func (r *TransportUnitRepository) FindByBarcode(ctx context.Context, barcode string) (*transportunit.TransportUnit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transport unit repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT pkey, barcode, actual_location, actual_location_erp_code, target_location,
	unit_type, state, created_at, updated_at
FROM %s
WHERE barcode = $1
FOR UPDATE`, r.table)

	exec := txn.Executor(ctx, r.db)
	var (
		tu      transportunit.TransportUnit
		actual  string
		erpCode sql.NullString
		target  sql.NullString
		kind    sql.NullString
	)
	err := exec.QueryRowContext(ctx, query, barcode).Scan(
		&tu.PKey, &tu.Barcode, &actual, &erpCode, &target, &kind, &tu.State, &tu.CreatedAt, &tu.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tu.ActualLocation, err = location.ParseLocationPK(actual); err != nil {
		return nil, fmt.Errorf("transport unit repo: actual location of %s: %w", tu.Barcode, err)
	}
	if target.Valid && target.String != "" {
		pk, err := location.ParseLocationPK(target.String)
		if err != nil {
			return nil, fmt.Errorf("transport unit repo: target location of %s: %w", tu.Barcode, err)
		}
		tu.TargetLocation = &pk
	}
	tu.ActualLocationErpCode = erpCode.String
	tu.Type = kind.String

	if tu.Errors, err = r.listErrors(ctx, exec, tu.PKey); err != nil {
		return nil, err
	}
	return &tu, nil
}

// Create inserts a unit.
func (r *TransportUnitRepository) Create(ctx context.Context, tu *transportunit.TransportUnit) error {
	if r == nil || r.db == nil {
		return errors.New("transport unit repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	pkey, barcode, actual_location, actual_location_erp_code, target_location,
	unit_type, state, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)`, r.table)
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		tu.PKey,
		tu.Barcode,
		tu.ActualLocation.String(),
		nullString(tu.ActualLocationErpCode),
		targetString(tu.TargetLocation),
		nullString(tu.Type),
		tu.State,
		tu.CreatedAt.UTC(),
		tu.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return transportunit.ErrBarcodeInvalid.With("barcode", tu.Barcode).With("reason", "duplicate").Because(err)
	}
	return err
}

// Save updates location, state and type of a unit.
func (r *TransportUnitRepository) Save(ctx context.Context, tu *transportunit.TransportUnit) error {
	if r == nil || r.db == nil {
		return errors.New("transport unit repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET actual_location = $2,
	actual_location_erp_code = $3,
	target_location = $4,
	unit_type = $5,
	state = $6,
	updated_at = $7
WHERE pkey = $1`, r.table)
	res, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		tu.PKey,
		tu.ActualLocation.String(),
		nullString(tu.ActualLocationErpCode),
		targetString(tu.TargetLocation),
		nullString(tu.Type),
		tu.State,
		tu.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return transportunit.ErrNotFound.With("pkey", tu.PKey)
	}
	return nil
}

// AppendError inserts an error entry.
func (r *TransportUnitRepository) AppendError(ctx context.Context, pkey string, unitErr transportunit.UnitError) error {
	if r == nil || r.db == nil {
		return errors.New("transport unit repo: nil db")
	}
	occurredAt := unitErr.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (transport_unit_pkey, code, message, occurred_at)
VALUES ($1, $2, $3, $4)`, r.errorsTable)
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query, pkey, unitErr.Code, unitErr.Message, occurredAt.UTC())
	return err
}

// Delete removes a unit and its errors.
func (r *TransportUnitRepository) Delete(ctx context.Context, pkey string) error {
	if r == nil || r.db == nil {
		return errors.New("transport unit repo: nil db")
	}
	exec := txn.Executor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE transport_unit_pkey = $1`, r.errorsTable), pkey); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE pkey = $1`, r.table), pkey)
	return err
}

func (r *TransportUnitRepository) listErrors(ctx context.Context, exec txn.DBTX, pkey string) ([]transportunit.UnitError, error) {
	query := fmt.Sprintf(`
SELECT code, message, occurred_at
FROM %s
WHERE transport_unit_pkey = $1
ORDER BY occurred_at ASC, id ASC`, r.errorsTable)
	rows, err := exec.QueryContext(ctx, query, pkey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []transportunit.UnitError
	for rows.Next() {
		var unitErr transportunit.UnitError
		if err := rows.Scan(&unitErr.Code, &unitErr.Message, &unitErr.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, unitErr)
	}
	return out, rows.Err()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func targetString(pk *location.LocationPK) sql.NullString {
	if pk == nil {
		return sql.NullString{}
	}
	return nullString(pk.String())
}
