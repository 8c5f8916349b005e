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

const defaultOutboxTable = "event_outbox"

// OutboxStore is a Postgres implementation for outbox records.
type OutboxStore struct {
	db    txn.DBTX
	table string
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore(db txn.DBTX, opts ...OutboxOption) *OutboxStore {
	store := &OutboxStore{db: db, table: defaultOutboxTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// OutboxOption configures the outbox store.
type OutboxOption func(*OutboxStore)

// WithOutboxTable overrides the table name.
func WithOutboxTable(table string) OutboxOption {
	return func(store *OutboxStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Insert writes an envelope to outbox using the transaction bound to ctx.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("outbox store: nil db")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	outboxID := eventing.NewEventID()
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	event_id,
	event_type,
	payload,
	status,
	attempts,
	created_at
) VALUES (
	$1, $2, $3, $4, 'pending', 0, $5
)
ON CONFLICT (event_id)
DO NOTHING`, s.table)

	_, err = txn.Executor(ctx, s.db).ExecContext(ctx, query, outboxID, env.EventID, env.EventType, payload, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return outboxID, nil
}

// ListPending returns pending outbox records in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("outbox store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, payload
FROM %s
WHERE status = 'pending'
ORDER BY created_at ASC, seq ASC
LIMIT $1`, s.table)

	rows, err := txn.Executor(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []eventing.OutboxRecord
	for rows.Next() {
		record, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent marks outbox record as sent.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = 'sent', sent_at = $1
WHERE id = $2`, s.table)
	_, err := txn.Executor(ctx, s.db).ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

// MarkFailed marks outbox record as failed and increments attempts.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = 'failed', attempts = attempts + 1
WHERE id = $1`, s.table)
	_, err := txn.Executor(ctx, s.db).ExecContext(ctx, query, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutbox(scanner rowScanner) (eventing.OutboxRecord, error) {
	var (
		id      string
		payload []byte
	)
	if err := scanner.Scan(&id, &payload); err != nil {
		return eventing.OutboxRecord{}, err
	}
	var env eventing.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return eventing.OutboxRecord{}, fmt.Errorf("outbox store: decode %s: %w", id, err)
	}
	return eventing.OutboxRecord{ID: id, Envelope: env}, nil
}
