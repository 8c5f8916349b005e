package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	location "wms-core/internal/location/domain"
	"wms-core/internal/platform/txn"
)

const defaultLocationsTable = "locations"

const locationColumns = `id, area, aisle, x, y, z, plc_code, erp_code, group_name,
	infeed_active, outfeed_active, plc_state, updated_at`

// LocationRepository is a Postgres implementation for locations.
type LocationRepository struct {
	db    txn.DBTX
	table string
}

// NewLocationRepository constructs a repository.
func NewLocationRepository(db txn.DBTX, opts ...LocationOption) *LocationRepository {
	repo := &LocationRepository{db: db, table: defaultLocationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LocationOption configures the repository.
type LocationOption func(*LocationRepository)

// WithLocationTable overrides the default table name.
func WithLocationTable(table string) LocationOption {
	return func(repo *LocationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a location by persistent key and locks the row.
func (r *LocationRepository) Get(ctx context.Context, id string) (*location.Location, error) {
	if id == "" {
		return nil, errors.New("location repo: empty id")
	}
	return r.findOne(ctx, "id = $1", id)
}

// FindByPK loads a location by coordinate.
func (r *LocationRepository) FindByPK(ctx context.Context, pk location.LocationPK) (*location.Location, error) {
	return r.findOne(ctx, "area = $1 AND aisle = $2 AND x = $3 AND y = $4 AND z = $5", pk.Area, pk.Aisle, pk.X, pk.Y, pk.Z)
}

// FindByPLCCode loads a location by PLC code.
func (r *LocationRepository) FindByPLCCode(ctx context.Context, plcCode string) (*location.Location, error) {
	if plcCode == "" {
		return nil, nil
	}
	return r.findOne(ctx, "plc_code = $1", plcCode)
}

// FindByERPCode loads a location by ERP code.
func (r *LocationRepository) FindByERPCode(ctx context.Context, erpCode string) (*location.Location, error) {
	if erpCode == "" {
		return nil, nil
	}
	return r.findOne(ctx, "erp_code = $1", erpCode)
}

// Save upserts a location.
func (r *LocationRepository) Save(ctx context.Context, loc *location.Location) error {
	if r == nil || r.db == nil {
		return errors.New("location repo: nil db")
	}
	if loc == nil || loc.ID == "" {
		return errors.New("location repo: empty location")
	}
	updatedAt := loc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, area, aisle, x, y, z, plc_code, erp_code, group_name,
	infeed_active, outfeed_active, plc_state, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (id)
DO UPDATE SET
	plc_code = EXCLUDED.plc_code,
	erp_code = EXCLUDED.erp_code,
	group_name = EXCLUDED.group_name,
	infeed_active = EXCLUDED.infeed_active,
	outfeed_active = EXCLUDED.outfeed_active,
	plc_state = EXCLUDED.plc_state,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		loc.ID,
		loc.PK.Area, loc.PK.Aisle, loc.PK.X, loc.PK.Y, loc.PK.Z,
		nullString(loc.PLCCode),
		nullString(loc.ERPCode),
		nullString(loc.GroupName),
		loc.InfeedActive,
		loc.OutfeedActive,
		loc.PLCState,
		updatedAt.UTC(),
	)
	return err
}

// List returns all locations ordered by coordinate.
func (r *LocationRepository) List(ctx context.Context) ([]location.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY area, aisle, x, y, z`, locationColumns, r.table)
	rows, err := txn.Executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []location.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *loc)
	}
	return out, rows.Err()
}

func (r *LocationRepository) findOne(ctx context.Context, where string, args ...any) (*location.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s
LIMIT 1
FOR UPDATE`, locationColumns, r.table, where)
	loc, err := scanLocation(txn.Executor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return loc, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(scanner rowScanner) (*location.Location, error) {
	var (
		loc       location.Location
		plcCode   sql.NullString
		erpCode   sql.NullString
		groupName sql.NullString
	)
	if err := scanner.Scan(
		&loc.ID,
		&loc.PK.Area, &loc.PK.Aisle, &loc.PK.X, &loc.PK.Y, &loc.PK.Z,
		&plcCode,
		&erpCode,
		&groupName,
		&loc.InfeedActive,
		&loc.OutfeedActive,
		&loc.PLCState,
		&loc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	loc.PLCCode = plcCode.String
	loc.ERPCode = erpCode.String
	loc.GroupName = groupName.String
	return &loc, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
