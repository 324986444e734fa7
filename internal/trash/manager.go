package trash

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/pkg/logger"
)

// ConfirmationText must be typed verbatim before any permanent delete or bulk action.
const ConfirmationText = "DELETE"

type EntityType string

const (
	EntityAppointments EntityType = "appointments"
	EntityLeads        EntityType = "leads"
)

type Operation string

const (
	OpTrash  Operation = "trash"
	OpDelete Operation = "delete"
)

type Scope string

const (
	ScopeOlderThan7Days  Scope = "older-than-7-days"
	ScopeOlderThan30Days Scope = "older-than-30-days"
	ScopeOlderThan90Days Scope = "older-than-90-days"
	ScopeAll             Scope = "all"
)

// Cutoff returns the age boundary for the scope. A nil cutoff means every row.
func (s Scope) Cutoff(now time.Time) (*time.Time, error) {
	var days int
	switch s {
	case ScopeAll:
		return nil, nil
	case ScopeOlderThan7Days:
		days = 7
	case ScopeOlderThan30Days:
		days = 30
	case ScopeOlderThan90Days:
		days = 90
	default:
		return nil, apperr.Validationf("Invalid scope %q", s)
	}
	c := now.AddDate(0, 0, -days)
	return &c, nil
}

// Repository is the soft-delete contract every trashable entity implements.
//
// Trash only touches live rows; Restore and Purge only touch trashed rows.
// TrashOlderThan selects live rows by created_at, PurgeOlderThan selects
// trashed rows by deleted_at. A nil cutoff selects all candidate rows.
type Repository interface {
	Trash(ctx context.Context, ids []string, now time.Time) (int, error)
	Restore(ctx context.Context, ids []string) (int, error)
	Purge(ctx context.Context, ids []string) (int, error)
	TrashOlderThan(ctx context.Context, cutoff *time.Time, now time.Time) (int, error)
	PurgeOlderThan(ctx context.Context, cutoff *time.Time) (int, error)
}

// Manager applies the trash lifecycle uniformly across registered entity types.
type Manager struct {
	repos map[EntityType]Repository
	clock func() time.Time
}

func NewManager() *Manager {
	return &Manager{repos: map[EntityType]Repository{}, clock: time.Now}
}

// Register binds an entity type to its repository. Later registrations replace earlier ones.
func (m *Manager) Register(t EntityType, r Repository) {
	m.repos[t] = r
}

func (m *Manager) repo(t EntityType) (Repository, error) {
	r, ok := m.repos[t]
	if !ok || r == nil {
		return nil, apperr.Validationf("Unknown entity type %q", t)
	}
	return r, nil
}

func (m *Manager) Trash(ctx context.Context, t EntityType, ids []string) (int, error) {
	r, err := m.repo(t)
	if err != nil {
		return 0, err
	}
	ids, err = cleanIDs(ids)
	if err != nil {
		return 0, err
	}
	n, err := r.Trash(ctx, ids, m.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("trash %s: %w", t, err)
	}
	logger.From(ctx).Info("trash", "entity", string(t), "requested", len(ids), "affected", n)
	return n, nil
}

func (m *Manager) Restore(ctx context.Context, t EntityType, ids []string) (int, error) {
	r, err := m.repo(t)
	if err != nil {
		return 0, err
	}
	ids, err = cleanIDs(ids)
	if err != nil {
		return 0, err
	}
	n, err := r.Restore(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("restore %s: %w", t, err)
	}
	logger.From(ctx).Info("restore", "entity", string(t), "requested", len(ids), "affected", n)
	return n, nil
}

// PermanentDelete removes trashed rows. Live rows in ids are left alone.
func (m *Manager) PermanentDelete(ctx context.Context, t EntityType, ids []string, confirmation string) (int, error) {
	if confirmation != ConfirmationText {
		return 0, apperr.ErrConfirmationMismatch
	}
	r, err := m.repo(t)
	if err != nil {
		return 0, err
	}
	ids, err = cleanIDs(ids)
	if err != nil {
		return 0, err
	}
	n, err := r.Purge(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", t, err)
	}
	logger.From(ctx).Warn("permanent delete", "entity", string(t), "requested", len(ids), "affected", n)
	return n, nil
}

// BulkAction trashes live rows or purges trashed rows by age scope.
func (m *Manager) BulkAction(ctx context.Context, t EntityType, op Operation, scope Scope, confirmation string) (int, error) {
	if confirmation != ConfirmationText {
		return 0, apperr.ErrConfirmationMismatch
	}
	r, err := m.repo(t)
	if err != nil {
		return 0, err
	}
	now := m.clock().UTC()
	cutoff, err := scope.Cutoff(now)
	if err != nil {
		return 0, err
	}

	var n int
	switch op {
	case OpTrash:
		n, err = r.TrashOlderThan(ctx, cutoff, now)
	case OpDelete:
		n, err = r.PurgeOlderThan(ctx, cutoff)
	default:
		return 0, apperr.Validationf("Invalid operation %q", op)
	}
	if err != nil {
		return 0, fmt.Errorf("bulk %s %s: %w", op, t, err)
	}
	logger.From(ctx).Warn("bulk trash action", "entity", string(t), "operation", string(op), "scope", string(scope), "affected", n)
	return n, nil
}

// PurgeExpired permanently removes rows trashed more than age ago.
// Used by the retention job, which has no human to type a confirmation.
func (m *Manager) PurgeExpired(ctx context.Context, t EntityType, age time.Duration) (int, error) {
	r, err := m.repo(t)
	if err != nil {
		return 0, err
	}
	if age <= 0 {
		return 0, apperr.Validation("retention age must be positive")
	}
	cutoff := m.clock().UTC().Add(-age)
	n, err := r.PurgeOlderThan(ctx, &cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired %s: %w", t, err)
	}
	return n, nil
}

// EntityTypes lists registered entity types.
func (m *Manager) EntityTypes() []EntityType {
	out := make([]EntityType, 0, len(m.repos))
	for t := range m.repos {
		out = append(out, t)
	}
	return out
}

func cleanIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, apperr.Validation("ids required")
	}
	return out, nil
}
