package dialer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/trash"
	"dialer-platform/pkg/logger"

	"github.com/google/uuid"
)

// MasterClearConfirmation must be typed verbatim to wipe the lead pool.
const MasterClearConfirmation = "DELETE ALL LEADS"

// Options tunes queue behaviour. Zero values fall back to defaults in NewEngine,
// except MaxAttempts where 0 means "no cap".
type Options struct {
	LeaseTTL    time.Duration
	MaxAttempts int
	PhoneRegion string
	MaxPageSize int
}

// Engine hands leads to workers and records call outcomes.
//
// Concurrency: Engine holds no mutable state of its own. Exclusive assignment
// is enforced by Store.ClaimNext, so any number of Engine instances may share
// one store.
type Engine struct {
	store     Store
	workers   WorkerDirectory
	leadTrash trash.Repository
	recorder  Recorder
	opts      Options
	clock     func() time.Time
}

func NewEngine(store Store, workers WorkerDirectory, leadTrash trash.Repository, opts Options) *Engine {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Minute
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = "US"
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 200
	}
	return &Engine{
		store:     store,
		workers:   workers,
		leadTrash: leadTrash,
		recorder:  nopRecorder{},
		opts:      opts,
		clock:     time.Now,
	}
}

// SetRecorder attaches a metrics recorder.
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.recorder = r
}

// RequestNext leases the next eligible lead to the worker.
// ok is false when the pool has nothing for this worker; that is not an error.
func (e *Engine) RequestNext(ctx context.Context, workerID, category string) (leads.Public, bool, error) {
	if err := e.requireDialer(ctx, workerID); err != nil {
		return leads.Public{}, false, err
	}
	category = strings.TrimSpace(category)

	l, ok, err := e.store.ClaimNext(ctx, workerID, category, e.clock().UTC(), e.opts.LeaseTTL)
	if err != nil {
		return leads.Public{}, false, fmt.Errorf("claim next lead: %w", err)
	}
	if !ok {
		e.recorder.AssignmentEmpty(category)
		logger.From(ctx).Debug("no lead available", "worker_id", workerID, "category", category)
		return leads.Public{}, false, nil
	}

	e.recorder.AssignmentServed(category)
	logger.From(ctx).Info("lead assigned", "worker_id", workerID, "lead_id", l.ID, "attempt_count", l.AttemptCount)
	return l.Public(), true, nil
}

// Current returns the lead the worker actively holds, if any.
func (e *Engine) Current(ctx context.Context, workerID string) (leads.Public, bool, error) {
	if workerID == "" {
		return leads.Public{}, false, apperr.Validation("worker id required")
	}
	l, ok, err := e.store.CurrentLead(ctx, workerID, e.clock().UTC())
	if err != nil {
		return leads.Public{}, false, fmt.Errorf("current lead: %w", err)
	}
	if !ok {
		return leads.Public{}, false, nil
	}
	return l.Public(), true, nil
}

// CompleteRequest is one finished call reported by a worker.
type CompleteRequest struct {
	LeadID           string
	WorkerID         string
	Outcome          calls.Outcome
	Notes            string
	DurationSeconds  int
	FollowupAt       *time.Time
	FollowupPriority calls.Priority
	FollowupNotes    string
}

type CompleteResult struct {
	Success   bool         `json:"success"`
	NewStatus leads.Status `json:"newStatus"`
	CallID    string       `json:"callId"`
}

// Complete records the call and applies the outcome transition atomically.
func (e *Engine) Complete(ctx context.Context, req CompleteRequest) (CompleteResult, error) {
	now := e.clock().UTC()
	if err := validateComplete(req, now); err != nil {
		return CompleteResult{}, err
	}

	session := calls.Session{
		ID:              uuid.NewString(),
		LeadID:          &req.LeadID,
		UserID:          req.WorkerID,
		StartTime:       now.Add(-time.Duration(req.DurationSeconds) * time.Second),
		DurationSeconds: req.DurationSeconds,
		Outcome:         req.Outcome,
		Notes:           strings.TrimSpace(req.Notes),
	}
	// Only a followup outcome enqueues a callback.
	if req.Outcome == calls.OutcomeFollowup {
		at := req.FollowupAt.UTC()
		session.FollowupAt = &at
		session.FollowupPriority = req.FollowupPriority
		session.FollowupNotes = strings.TrimSpace(req.FollowupNotes)
	}

	decide := func(l leads.Lead, served bool) (leads.Status, error) {
		if err := authorizeComplete(l, req.WorkerID, served); err != nil {
			return "", err
		}
		return NextStatus(req.Outcome, l.AttemptCount+1, e.opts.MaxAttempts), nil
	}

	updated, err := e.store.CompleteCall(ctx, req.LeadID, session, decide)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return CompleteResult{}, apperr.NotFound("lead")
		}
		return CompleteResult{}, err
	}

	e.recorder.OutcomeRecorded(req.Outcome, updated.Status)
	logger.From(ctx).Info("call completed",
		"worker_id", req.WorkerID,
		"lead_id", req.LeadID,
		"outcome", string(req.Outcome),
		"new_status", string(updated.Status),
		"attempt_count", updated.AttemptCount,
	)
	return CompleteResult{Success: true, NewStatus: updated.Status, CallID: session.ID}, nil
}

func validateComplete(req CompleteRequest, now time.Time) error {
	if strings.TrimSpace(req.LeadID) == "" {
		return apperr.Validation("leadId required")
	}
	if req.WorkerID == "" {
		return apperr.Validation("worker id required")
	}
	if !req.Outcome.Valid() {
		return apperr.Validation("Invalid outcome")
	}
	if req.DurationSeconds < 0 {
		return apperr.Validation("duration must not be negative")
	}
	if !req.FollowupPriority.Valid() {
		return apperr.Validation("Invalid follow-up priority")
	}
	if req.Outcome == calls.OutcomeFollowup {
		if req.FollowupAt == nil || !req.FollowupAt.After(now) {
			return apperr.Validation("Select Follow-up Date")
		}
	}
	return nil
}

// authorizeComplete allows the current holder, whose lease may have lapsed
// without being reclaimed, and a worker calling back an unheld NEW lead it was
// served before.
func authorizeComplete(l leads.Lead, workerID string, served bool) error {
	if l.DeletedAt != nil {
		return apperr.NotFound("lead")
	}
	switch l.Status {
	case leads.StatusDNC:
		return apperr.Forbidden("lead is marked do-not-call")
	case leads.StatusCompleted:
		return apperr.Forbidden("lead is already completed")
	case leads.StatusAssigned:
		if l.AssignedTo != workerID {
			return apperr.Forbidden("lead is assigned to another worker")
		}
		return nil
	case leads.StatusNew:
		if l.AssignedTo != "" && l.AssignedTo != workerID {
			return apperr.Forbidden("lead is assigned to another worker")
		}
		if !served {
			return apperr.Forbidden("lead was not assigned to this worker")
		}
		return nil
	}
	return apperr.Forbidden("lead is not callable")
}

// Followups lists scheduled callbacks. Scope "all" is admin only.
func (e *Engine) Followups(ctx context.Context, actor auth.Identity, scope calls.Scope) ([]calls.Followup, error) {
	userID, err := scopeUser(actor, scope)
	if err != nil {
		return nil, err
	}
	out, err := e.store.ListFollowups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list followups: %w", err)
	}
	return out, nil
}

// DeleteFollowup drops a call from the follow-up queue. The call itself is kept.
func (e *Engine) DeleteFollowup(ctx context.Context, actor auth.Identity, callID string) error {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return apperr.Validation("callId required")
	}
	call, err := e.store.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return apperr.NotFound("call")
		}
		return err
	}
	if !rbac.IsAdmin(actor.Role) && call.UserID != actor.UserID {
		return apperr.Forbidden("follow-up belongs to another worker")
	}
	if err := e.store.ClearFollowup(ctx, callID); err != nil {
		return fmt.Errorf("clear followup: %w", err)
	}
	logger.From(ctx).Info("followup cleared", "call_id", callID, "actor", actor.UserID)
	return nil
}

// ClearFollowups drops every follow-up in scope and returns how many were cleared.
func (e *Engine) ClearFollowups(ctx context.Context, actor auth.Identity, scope calls.Scope) (int, error) {
	userID, err := scopeUser(actor, scope)
	if err != nil {
		return 0, err
	}
	n, err := e.store.ClearFollowups(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear followups: %w", err)
	}
	logger.From(ctx).Info("followups cleared", "scope", string(scope), "actor", actor.UserID, "cleared", n)
	return n, nil
}

func scopeUser(actor auth.Identity, scope calls.Scope) (string, error) {
	if scope == "" {
		scope = calls.ScopeOwn
	}
	if !scope.Valid() {
		return "", apperr.Validationf("Invalid scope %q", scope)
	}
	if scope == calls.ScopeAll {
		if !rbac.IsAdmin(actor.Role) {
			return "", apperr.Forbidden("scope all requires admin")
		}
		return "", nil
	}
	return actor.UserID, nil
}

// AllLeads is the admin listing with optional search over text fields or phone number.
func (e *Engine) AllLeads(ctx context.Context, actor auth.Identity, page, pageSize int, search string) (leads.Page, error) {
	if !rbac.IsAdmin(actor.Role) {
		return leads.Page{}, apperr.Forbidden("admin only")
	}
	q := leads.BuildQuery(page, pageSize, search, e.opts.PhoneRegion, e.opts.MaxPageSize)
	out, err := e.store.ListLeads(ctx, q)
	if err != nil {
		return leads.Page{}, fmt.Errorf("list leads: %w", err)
	}
	if out.Leads == nil {
		out.Leads = []leads.Lead{}
	}
	return out, nil
}

// LeadCalls lists a lead's call history. Workers only see their own calls.
func (e *Engine) LeadCalls(ctx context.Context, actor auth.Identity, leadID string) ([]calls.Session, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, apperr.Validation("leadId required")
	}
	if _, err := e.store.GetLead(ctx, leadID); err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, apperr.NotFound("lead")
		}
		return nil, err
	}
	userID := actor.UserID
	if rbac.IsAdmin(actor.Role) {
		userID = ""
	}
	out, err := e.store.ListLeadCalls(ctx, leadID, userID)
	if err != nil {
		return nil, fmt.Errorf("list lead calls: %w", err)
	}
	if out == nil {
		out = []calls.Session{}
	}
	return out, nil
}

// DeleteLead moves a lead to the trash. Call history stays linked until purge.
func (e *Engine) DeleteLead(ctx context.Context, actor auth.Identity, leadID string) error {
	if !rbac.IsAdmin(actor.Role) {
		return apperr.Forbidden("admin only")
	}
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return apperr.Validation("leadId required")
	}
	l, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return apperr.NotFound("lead")
		}
		return err
	}
	if l.DeletedAt != nil {
		return nil
	}
	if e.leadTrash == nil {
		return errors.New("dialer: lead trash not configured")
	}
	if _, err := e.leadTrash.Trash(ctx, []string{leadID}, e.clock().UTC()); err != nil {
		return fmt.Errorf("trash lead: %w", err)
	}
	logger.From(ctx).Info("lead trashed", "lead_id", leadID, "actor", actor.UserID)
	return nil
}

// MasterClearLeads wipes the lead pool. Calls and appointments survive unlinked.
func (e *Engine) MasterClearLeads(ctx context.Context, actor auth.Identity, confirmation string, clearHistory bool) (int, error) {
	if !rbac.IsAdmin(actor.Role) {
		return 0, apperr.Forbidden("admin only")
	}
	if confirmation != MasterClearConfirmation {
		return 0, apperr.ErrConfirmationMismatch
	}
	n, err := e.store.MasterClear(ctx, clearHistory)
	if err != nil {
		return 0, fmt.Errorf("master clear: %w", err)
	}
	logger.From(ctx).Warn("master clear leads", "actor", actor.UserID, "leads_deleted", n, "clear_history", clearHistory)
	return n, nil
}

func (e *Engine) requireDialer(ctx context.Context, workerID string) error {
	if workerID == "" {
		return apperr.Validation("worker id required")
	}
	if e.workers == nil {
		return errors.New("dialer: worker directory not configured")
	}
	w, err := e.workers.Lookup(ctx, workerID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return apperr.Forbidden("unknown worker")
		}
		return fmt.Errorf("lookup worker: %w", err)
	}
	if !w.CanDial() {
		return apperr.Forbidden("worker is inactive or suspended")
	}
	return nil
}
