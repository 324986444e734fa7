package dialer

import (
	"context"
	"sort"
	"sync"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/trash"
)

// LeadUnlinker detaches rows that reference leads about to be purged.
type LeadUnlinker interface {
	UnlinkLeads(ctx context.Context, leadIDs []string) error
}

// MemoryStore is an in-memory Store for tests and local development.
// A single mutex makes every operation atomic.
type MemoryStore struct {
	mu sync.Mutex

	leads   map[string]*leads.Lead
	history map[string]map[string]time.Time // worker_id -> lead_id -> created_at
	calls   []*calls.Session

	unlinkers []LeadUnlinker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:   map[string]*leads.Lead{},
		history: map[string]map[string]time.Time{},
	}
}

// AddUnlinker registers a dependent store to detach on lead purge.
func (s *MemoryStore) AddUnlinker(u LeadUnlinker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlinkers = append(s.unlinkers, u)
}

// PutLead inserts or replaces a lead.
func (s *MemoryStore) PutLead(l leads.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Status == "" {
		l.Status = leads.StatusNew
	}
	cp := l
	s.leads[l.ID] = &cp
}

// Lead returns a copy of the stored lead including lease fields.
func (s *MemoryStore) Lead(id string) (leads.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return leads.Lead{}, false
	}
	return *l, true
}

// InHistory reports whether workerID was ever assigned leadID.
func (s *MemoryStore) InHistory(workerID, leadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history[workerID][leadID]
	return ok
}

func (s *MemoryStore) ClaimNext(_ context.Context, workerID, category string, now time.Time, lease time.Duration) (leads.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.history[workerID]
	var pick *leads.Lead
	for _, l := range s.leads {
		if !l.EligibleAt(now) {
			continue
		}
		if category != "" && l.Category != category {
			continue
		}
		if _, done := seen[l.ID]; done {
			continue
		}
		if pick == nil || l.CreatedAt.Before(pick.CreatedAt) || (l.CreatedAt.Equal(pick.CreatedAt) && l.ID < pick.ID) {
			pick = l
		}
	}
	if pick == nil {
		return leads.Lead{}, false, nil
	}

	until := now.Add(lease)
	assignedAt := now
	pick.Status = leads.StatusAssigned
	pick.AssignedTo = workerID
	pick.AssignedAt = &assignedAt
	pick.LockedUntil = &until
	pick.UpdatedAt = now

	if seen == nil {
		seen = map[string]time.Time{}
		s.history[workerID] = seen
	}
	seen[pick.ID] = now
	return *pick, true, nil
}

func (s *MemoryStore) CurrentLead(_ context.Context, workerID string, now time.Time) (leads.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *leads.Lead
	for _, l := range s.leads {
		if l.DeletedAt != nil || l.AssignedTo != workerID || !l.HeldAt(now) {
			continue
		}
		if best == nil || (l.AssignedAt != nil && best.AssignedAt != nil && l.AssignedAt.After(*best.AssignedAt)) {
			best = l
		}
	}
	if best == nil {
		return leads.Lead{}, false, nil
	}
	return *best, true, nil
}

func (s *MemoryStore) CompleteCall(_ context.Context, leadID string, session calls.Session, decide Decider) (leads.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[leadID]
	if !ok {
		return leads.Lead{}, ErrNoRows
	}
	_, served := s.history[session.UserID][leadID]
	next, err := decide(*l, served)
	if err != nil {
		return leads.Lead{}, err
	}

	cp := session
	s.calls = append(s.calls, &cp)

	l.Status = next
	l.AttemptCount++
	l.AssignedTo = ""
	l.LockedUntil = nil
	l.UpdatedAt = session.StartTime.Add(time.Duration(session.DurationSeconds) * time.Second)
	return *l, nil
}

func (s *MemoryStore) GetLead(_ context.Context, id string) (leads.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return leads.Lead{}, ErrNoRows
	}
	return *l, nil
}

func (s *MemoryStore) ListLeads(_ context.Context, q leads.Query) (leads.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]leads.Lead, 0)
	for _, l := range s.leads {
		if l.DeletedAt != nil || !q.Matches(*l) {
			continue
		}
		matched = append(matched, *l)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := leads.Page{Total: len(matched), Page: q.Page, Leads: []leads.Lead{}}
	start := q.Offset()
	if start >= len(matched) {
		return out, nil
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	out.Leads = matched[start:end]
	return out, nil
}

func (s *MemoryStore) ListLeadCalls(_ context.Context, leadID, userID string) ([]calls.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Session, 0)
	for _, c := range s.calls {
		if c.LeadID == nil || *c.LeadID != leadID {
			continue
		}
		if userID != "" && c.UserID != userID {
			continue
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) GetCall(_ context.Context, callID string) (calls.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.ID == callID {
			return *c, nil
		}
	}
	return calls.Session{}, ErrNoRows
}

func (s *MemoryStore) ListFollowups(_ context.Context, userID string) ([]calls.Followup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Followup, 0)
	for _, c := range s.calls {
		if !c.HasFollowup() {
			continue
		}
		if userID != "" && c.UserID != userID {
			continue
		}
		f := calls.Followup{
			CallID:        c.ID,
			LeadID:        c.LeadID,
			UserID:        c.UserID,
			FollowupAt:    *c.FollowupAt,
			Priority:      c.FollowupPriority,
			Notes:         c.FollowupNotes,
			Outcome:       c.Outcome,
			CallStartTime: c.StartTime,
		}
		if c.LeadID != nil {
			if l, ok := s.leads[*c.LeadID]; ok {
				f.LeadName = l.Name
				f.LeadPhone = l.Phone
				f.LeadCategory = l.Category
				f.LeadDeletedAt = l.DeletedAt
			}
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FollowupAt.Before(out[j].FollowupAt) })
	return out, nil
}

func (s *MemoryStore) ClearFollowup(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.ID == callID {
			c.ClearFollowup()
			return nil
		}
	}
	return ErrNoRows
}

func (s *MemoryStore) ClearFollowups(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if !c.HasFollowup() || (userID != "" && c.UserID != userID) {
			continue
		}
		c.ClearFollowup()
		n++
	}
	return n, nil
}

func (s *MemoryStore) MasterClear(ctx context.Context, clearHistory bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.leads))
	for id := range s.leads {
		ids = append(ids, id)
	}
	if err := s.unlinkLocked(ctx, ids); err != nil {
		return 0, err
	}
	n := len(s.leads)
	s.leads = map[string]*leads.Lead{}
	if clearHistory {
		s.history = map[string]map[string]time.Time{}
	}
	return n, nil
}

func (s *MemoryStore) unlinkLocked(ctx context.Context, ids []string) error {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, c := range s.calls {
		if c.LeadID == nil {
			continue
		}
		if _, ok := set[*c.LeadID]; ok {
			c.LeadID = nil
		}
	}
	for _, u := range s.unlinkers {
		if err := u.UnlinkLeads(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}

// LeadTrash exposes the store's leads to the trash manager.
func (s *MemoryStore) LeadTrash() trash.Repository { return memoryLeadTrash{s: s} }

type memoryLeadTrash struct{ s *MemoryStore }

func (t memoryLeadTrash) Trash(_ context.Context, ids []string, now time.Time) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, id := range ids {
		l, ok := t.s.leads[id]
		if !ok || l.DeletedAt != nil {
			continue
		}
		at := now
		l.DeletedAt = &at
		l.UpdatedAt = now
		n++
	}
	return n, nil
}

func (t memoryLeadTrash) Restore(_ context.Context, ids []string) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if l, ok := t.s.leads[id]; ok && l.DeletedAt != nil {
			l.DeletedAt = nil
			n++
		}
	}
	return n, nil
}

func (t memoryLeadTrash) Purge(ctx context.Context, ids []string) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var doomed []string
	for _, id := range ids {
		if l, ok := t.s.leads[id]; ok && l.DeletedAt != nil {
			doomed = append(doomed, id)
		}
	}
	return t.purgeLocked(ctx, doomed)
}

func (t memoryLeadTrash) TrashOlderThan(ctx context.Context, cutoff *time.Time, now time.Time) (int, error) {
	t.s.mu.Lock()
	var ids []string
	for id, l := range t.s.leads {
		if l.DeletedAt == nil && (cutoff == nil || l.CreatedAt.Before(*cutoff)) {
			ids = append(ids, id)
		}
	}
	t.s.mu.Unlock()
	if len(ids) == 0 {
		return 0, nil
	}
	return t.Trash(ctx, ids, now)
}

func (t memoryLeadTrash) PurgeOlderThan(ctx context.Context, cutoff *time.Time) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var doomed []string
	for id, l := range t.s.leads {
		if l.DeletedAt != nil && (cutoff == nil || l.DeletedAt.Before(*cutoff)) {
			doomed = append(doomed, id)
		}
	}
	return t.purgeLocked(ctx, doomed)
}

func (t memoryLeadTrash) purgeLocked(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := t.s.unlinkLocked(ctx, ids); err != nil {
		return 0, err
	}
	for _, id := range ids {
		delete(t.s.leads, id)
	}
	return len(ids), nil
}

// MemoryWorkers is an in-memory WorkerDirectory.
type MemoryWorkers struct {
	mu      sync.Mutex
	workers map[string]Worker
}

func NewMemoryWorkers(ws ...Worker) *MemoryWorkers {
	d := &MemoryWorkers{workers: map[string]Worker{}}
	for _, w := range ws {
		d.workers[w.ID] = w
	}
	return d
}

func (d *MemoryWorkers) Put(w Worker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workers[w.ID] = w
}

func (d *MemoryWorkers) Lookup(_ context.Context, workerID string) (Worker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.workers[workerID]
	if !ok {
		return Worker{}, ErrNoRows
	}
	return w, nil
}
