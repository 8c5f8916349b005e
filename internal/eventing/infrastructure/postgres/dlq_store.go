package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wms-core/internal/eventing"
	"wms-core/internal/platform/txn"
)

const (
	defaultDLQTable  = "dead_letter_events"
	defaultDLQSource = "outbox"
)

// DLQStore is a Postgres implementation for dead letter events. One table
// holds both undeliverable outbox events and rejected inbound commands,
// distinguished by source.
type DLQStore struct {
	db     txn.DBTX
	table  string
	source string
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db txn.DBTX, opts ...DLQOption) *DLQStore {
	store := &DLQStore{db: db, table: defaultDLQTable, source: defaultDLQSource}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// DLQOption configures the DLQ store.
type DLQOption func(*DLQStore)

// WithDLQTable overrides the table name.
func WithDLQTable(table string) DLQOption {
	return func(store *DLQStore) {
		if table != "" {
			store.table = table
		}
	}
}

// WithDLQSource tags records written by this store.
func WithDLQSource(source string) DLQOption {
	return func(store *DLQStore) {
		if source != "" {
			store.source = source
		}
	}
}

// RecordFailure inserts or updates a DLQ record.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if env.EventID == "" {
		return errors.New("dlq store: empty event id")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	event_id,
	event_type,
	source,
	payload,
	error,
	first_seen_at,
	last_seen_at,
	attempts
) VALUES (
	$1, $2, $3, $4, $5, $6, $6, 1
)
ON CONFLICT (event_id)
DO UPDATE SET
	event_type = EXCLUDED.event_type,
	payload = EXCLUDED.payload,
	error = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts = %s.attempts + 1`, s.table, s.table)

	_, err = txn.Executor(ctx, s.db).ExecContext(ctx, query, env.EventID, env.EventType, s.source, payload, message, time.Now().UTC())
	return err
}
