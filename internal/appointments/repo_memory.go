package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"dialer-platform/internal/dialer"
)

// MemoryRepo is an in-memory appointment repository for tests and local runs.
// It also serves the trash manager and detaches purged leads.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]*Appointment
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]*Appointment{}} }

func (r *MemoryRepo) Create(_ context.Context, a Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := a
	r.rows[a.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return Appointment{}, dialer.ErrNoRows
	}
	return *a, nil
}

func (r *MemoryRepo) SetStatus(_ context.Context, id string, from, to Status, now time.Time) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.DeletedAt != nil || a.Status != from {
		return Appointment{}, dialer.ErrNoRows
	}
	a.Status = to
	a.UpdatedAt = now
	return *a, nil
}

func (r *MemoryRepo) List(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0)
	for _, a := range r.rows {
		if (a.DeletedAt != nil) != f.Trashed {
			continue
		}
		if f.CreatedBy != "" && a.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *MemoryRepo) UnlinkLeads(_ context.Context, leadIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]struct{}, len(leadIDs))
	for _, id := range leadIDs {
		set[id] = struct{}{}
	}
	for _, a := range r.rows {
		if a.LeadID == nil {
			continue
		}
		if _, ok := set[*a.LeadID]; ok {
			a.LeadID = nil
		}
	}
	return nil
}

func (r *MemoryRepo) Trash(_ context.Context, ids []string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := r.rows[id]; ok && a.DeletedAt == nil {
			at := now
			a.DeletedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) Restore(_ context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := r.rows[id]; ok && a.DeletedAt != nil {
			a.DeletedAt = nil
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) Purge(_ context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := r.rows[id]; ok && a.DeletedAt != nil {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) TrashOlderThan(_ context.Context, cutoff *time.Time, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.rows {
		if a.DeletedAt == nil && (cutoff == nil || a.CreatedAt.Before(*cutoff)) {
			at := now
			a.DeletedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) PurgeOlderThan(_ context.Context, cutoff *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, a := range r.rows {
		if a.DeletedAt != nil && (cutoff == nil || a.DeletedAt.Before(*cutoff)) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
