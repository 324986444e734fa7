package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"dialer-platform/internal/auth"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records admin actions against the lead pool and appointments.
// Audit is internal-only; callers treat failures as non-fatal.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.Action == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Action describes one audited admin action.
type Action struct {
	Name        string
	EntityType  string
	Affected    int
	Destructive bool
	Details     map[string]any
}

// Record logs an action taken by actor from ip.
func (s *Service) Record(ctx context.Context, actor auth.Identity, ip string, a Action) error {
	typ := EventTypeAdminAction
	if a.Destructive {
		typ = EventTypeDestructive
	}
	var meta string
	if len(a.Details) > 0 {
		b, err := json.Marshal(a.Details)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	return s.Append(ctx, Event{
		Type:        typ,
		Action:      a.Name,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   ip,
		EntityType:  a.EntityType,
		Affected:    a.Affected,
		Metadata:    meta,
	})
}
