package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wms-core/internal/platform/txn"
)

const defaultAuditTable = "audit_logs"

// Repository writes audit logs to Postgres.
type Repository struct {
	db    txn.DBTX
	table string
}

// NewRepository constructs an audit repository.
func NewRepository(db txn.DBTX) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db, table: defaultAuditTable}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry.fill(time.Now())

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, actor, role, action, resource_type, resource_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, r.table)
	_, err := txn.Executor(ctx, r.db).ExecContext(ctx, query,
		entry.ID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID,
		[]byte(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}
