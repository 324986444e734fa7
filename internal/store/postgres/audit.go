package postgres

import (
	"context"
	"database/sql"

	"dialer-platform/internal/audit"
)

// AuditLog appends to audit_events. Rows are never updated or deleted.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog { return &AuditLog{db: db} }

func (r *AuditLog) Append(ctx context.Context, e audit.Event) error {
	var meta any
	if e.Metadata != "" {
		meta = e.Metadata
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, action, actor_user_id, actor_role, ip_address,
		                          entity_type, affected, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)`,
		e.ID, string(e.Type), e.Action, nullString(e.ActorUserID), nullString(e.ActorRole),
		nullString(e.IPAddress), nullString(e.EntityType), e.Affected, meta, e.CreatedAt)
	return err
}
