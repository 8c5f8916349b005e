package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wms-core/internal/platform/txn"
	replica "wms-core/internal/replica/domain"
)

const defaultReplicasTable = "replicas"

// Repository is a Postgres implementation of replica.Repository.
type Repository struct {
	db    txn.DBTX
	table string
}

// Option configures the repository.
type Option func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRepository constructs a repository.
func NewRepository(db txn.DBTX, opts ...Option) *Repository {
	repo := &Repository{db: db, table: defaultReplicasTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get returns a replica by application name, or nil.
func (r *Repository) Get(ctx context.Context, applicationName string) (*replica.Replica, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("replica repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT application_name, state, request_removal_endpoint, removal_endpoint, registered_at, unregistered_at
FROM %s
WHERE application_name = $1
FOR UPDATE`, r.table)
	row := txn.Executor(ctx, r.db).QueryRowContext(ctx, query, applicationName)
	item, err := scanReplica(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Upsert inserts or updates the row keyed by application_name.
func (r *Repository) Upsert(ctx context.Context, item *replica.Replica) error {
	if r == nil || r.db == nil {
		return errors.New("replica repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (application_name, state, request_removal_endpoint, removal_endpoint, registered_at, unregistered_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (application_name) DO UPDATE SET
	state = EXCLUDED.state,
	request_removal_endpoint = EXCLUDED.request_removal_endpoint,
	removal_endpoint = EXCLUDED.removal_endpoint,
	registered_at = EXCLUDED.registered_at,
	unregistered_at = EXCLUDED.unregistered_at`, r.table)
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		item.ApplicationName,
		string(item.State),
		item.RequestRemovalEndpoint,
		item.RemovalEndpoint,
		nullTime(item.RegisteredAt),
		nullTime(item.UnregisteredAt),
	)
	return err
}

// ListRegistered returns every REGISTERED replica ordered by name.
func (r *Repository) ListRegistered(ctx context.Context) ([]replica.Replica, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("replica repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT application_name, state, request_removal_endpoint, removal_endpoint, registered_at, unregistered_at
FROM %s
WHERE state = $1
ORDER BY application_name ASC`, r.table)
	rows, err := txn.Executor(ctx, r.db).QueryContext(ctx, query, string(replica.StateRegistered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []replica.Replica
	for rows.Next() {
		item, err := scanReplica(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReplica(row rowScanner) (*replica.Replica, error) {
	var (
		item           replica.Replica
		state          string
		registeredAt   sql.NullTime
		unregisteredAt sql.NullTime
	)
	if err := row.Scan(
		&item.ApplicationName,
		&state,
		&item.RequestRemovalEndpoint,
		&item.RemovalEndpoint,
		&registeredAt,
		&unregisteredAt,
	); err != nil {
		return nil, err
	}
	item.State = replica.State(state)
	if registeredAt.Valid {
		at := registeredAt.Time.UTC()
		item.RegisteredAt = &at
	}
	if unregisteredAt.Valid {
		at := unregisteredAt.Time.UTC()
		item.UnregisteredAt = &at
	}
	return &item, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
