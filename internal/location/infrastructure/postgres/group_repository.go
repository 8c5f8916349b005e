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

const defaultGroupsTable = "location_groups"

// GroupRepository is a Postgres implementation for location groups.
type GroupRepository struct {
	db    txn.DBTX
	table string
}

// NewGroupRepository constructs a repository.
func NewGroupRepository(db txn.DBTX, opts ...GroupOption) *GroupRepository {
	repo := &GroupRepository{db: db, table: defaultGroupsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// GroupOption configures the repository.
type GroupOption func(*GroupRepository)

// WithGroupTable overrides the default table name.
func WithGroupTable(table string) GroupOption {
	return func(repo *GroupRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a group by name and locks the row.
func (r *GroupRepository) Get(ctx context.Context, name string) (*location.LocationGroup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("group repo: nil db")
	}
	if name == "" {
		return nil, errors.New("group repo: empty name")
	}
	query := fmt.Sprintf(`
SELECT name, parent_name, group_state_in, group_state_out, operation_mode, updated_at
FROM %s
WHERE name = $1
FOR UPDATE`, r.table)
	group, err := scanGroup(txn.Executor(ctx, r.db).QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return group, err
}

// Save upserts a group.
func (r *GroupRepository) Save(ctx context.Context, group *location.LocationGroup) error {
	if r == nil || r.db == nil {
		return errors.New("group repo: nil db")
	}
	if group == nil || group.Name == "" {
		return errors.New("group repo: empty group")
	}
	updatedAt := group.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (name, parent_name, group_state_in, group_state_out, operation_mode, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name)
DO UPDATE SET
	parent_name = EXCLUDED.parent_name,
	group_state_in = EXCLUDED.group_state_in,
	group_state_out = EXCLUDED.group_state_out,
	operation_mode = EXCLUDED.operation_mode,
	updated_at = EXCLUDED.updated_at`, r.table)
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		group.Name,
		nullString(group.ParentName),
		string(group.GroupStateIn),
		string(group.GroupStateOut),
		string(group.OperationMode),
		updatedAt.UTC(),
	)
	return err
}

// List returns groups ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]location.LocationGroup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("group repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT name, parent_name, group_state_in, group_state_out, operation_mode, updated_at
FROM %s
ORDER BY name`, r.table)
	rows, err := txn.Executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []location.LocationGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *group)
	}
	return out, rows.Err()
}

func scanGroup(scanner rowScanner) (*location.LocationGroup, error) {
	var (
		group  location.LocationGroup
		parent sql.NullString
		in     string
		out    string
		mode   string
	)
	if err := scanner.Scan(&group.Name, &parent, &in, &out, &mode, &group.UpdatedAt); err != nil {
		return nil, err
	}
	group.ParentName = parent.String
	group.GroupStateIn = location.GroupState(in)
	group.GroupStateOut = location.GroupState(out)
	group.OperationMode = location.OperationMode(mode)
	return &group, nil
}
