package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit writes are best-effort; dialer actions never fail because of them.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Action is the dialer action name, e.g. "master-clear-leads".
	Action string `json:"action" db:"action"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	EntityType string `json:"entity_type,omitempty" db:"entity_type"`
	Affected   int    `json:"affected" db:"affected"`

	// Metadata is optional JSON with request details (ids, scope, flags).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction EventType = "admin_action"
	// EventTypeDestructive marks actions that permanently remove data.
	EventTypeDestructive EventType = "destructive_action"
)
