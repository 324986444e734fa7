package reporting

import (
	"context"
	"sync"
	"time"

	"dialer-platform/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests and local runs.
type MemoryRepo struct {
	mu sync.Mutex

	Calls []calls.Session
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(_ context.Context, userID string, from, to time.Time) ([]calls.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Session, 0)
	for _, c := range r.Calls {
		if userID != "" && c.UserID != userID {
			continue
		}
		if c.StartTime.Before(from) || !c.StartTime.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
