package dialer

import (
	"context"
	"errors"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/leads"
)

// Decider inspects the locked lead and returns its next status, or an error to abort.
// served reports whether the calling worker has a history row for the lead.
type Decider func(l leads.Lead, served bool) (leads.Status, error)

// Store is the persistence contract for the assignment queue.
//
// ClaimNext and CompleteCall must each be atomic: concurrent callers never
// observe or produce a half-applied lease or a call row without its transition.
type Store interface {
	// ClaimNext leases the oldest eligible lead not yet in workerID's history
	// and records the history row. ok is false when nothing is eligible.
	ClaimNext(ctx context.Context, workerID, category string, now time.Time, lease time.Duration) (l leads.Lead, ok bool, err error)
	// CurrentLead returns the most recently assigned lead workerID still actively holds.
	CurrentLead(ctx context.Context, workerID string, now time.Time) (leads.Lead, bool, error)
	// CompleteCall locks the lead, looks up session.UserID's history row for it,
	// asks decide for the next status, then stores the call and applies the
	// transition in one unit.
	CompleteCall(ctx context.Context, leadID string, session calls.Session, decide Decider) (leads.Lead, error)

	GetLead(ctx context.Context, id string) (leads.Lead, error)
	ListLeads(ctx context.Context, q leads.Query) (leads.Page, error)
	// ListLeadCalls returns calls for leadID; userID narrows to one worker when set.
	ListLeadCalls(ctx context.Context, leadID, userID string) ([]calls.Session, error)

	GetCall(ctx context.Context, callID string) (calls.Session, error)
	// ListFollowups returns scheduled callbacks ordered by followup_at; userID "" means everyone.
	ListFollowups(ctx context.Context, userID string) ([]calls.Followup, error)
	ClearFollowup(ctx context.Context, callID string) error
	ClearFollowups(ctx context.Context, userID string) (int, error)

	// MasterClear unlinks call and appointment rows, deletes every lead and,
	// when clearHistory is set, the worker history.
	MasterClear(ctx context.Context, clearHistory bool) (int, error)
}

// ErrNoRows is returned by stores for unknown ids; the engine maps it to apperr.ErrNotFound.
var ErrNoRows = errors.New("dialer: no rows")

// Worker is the dialer's read-only view of a caller account.
type Worker struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Suspended bool   `json:"suspended"`
}

// CanDial reports whether the worker may receive leads.
func (w Worker) CanDial() bool { return w.Active && !w.Suspended }

// WorkerDirectory resolves worker accounts owned by the identity system.
type WorkerDirectory interface {
	Lookup(ctx context.Context, workerID string) (Worker, error)
}

// Recorder receives queue events for metrics. All methods must be safe for concurrent use.
type Recorder interface {
	AssignmentServed(category string)
	AssignmentEmpty(category string)
	OutcomeRecorded(outcome calls.Outcome, newStatus leads.Status)
}

type nopRecorder struct{}

func (nopRecorder) AssignmentServed(string) {}
func (nopRecorder) AssignmentEmpty(string) {}
func (nopRecorder) OutcomeRecorded(calls.Outcome, leads.Status) {}
