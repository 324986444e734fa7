package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/trash"
)

func setup(t *testing.T) (*Service, *MemoryRepo, *dialer.MemoryStore) {
	t.Helper()
	store := dialer.NewMemoryStore()
	repo := NewMemoryRepo()
	store.AddUnlinker(repo)
	svc := NewService(repo, store)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc, repo, store
}

var (
	worker = auth.Identity{UserID: "w1", Role: rbac.RoleWorker}
	other  = auth.Identity{UserID: "w2", Role: rbac.RoleWorker}
	admin  = auth.Identity{UserID: "adm", Role: rbac.RoleAdmin}
)

func TestCreate_InterestedRequiresCompletedLead(t *testing.T) {
	svc, _, store := setup(t)
	store.PutLead(leads.Lead{ID: "fresh", Status: leads.StatusNew})
	store.PutLead(leads.Lead{ID: "won", Status: leads.StatusCompleted})
	store.PutLead(leads.Lead{ID: "dnc", Status: leads.StatusDNC})
	at := time.Unix(1700086400, 0).UTC()

	_, err := svc.Create(context.Background(), worker, CreateRequest{LeadID: "fresh", ScheduledAt: at, Outcome: OutcomeInterested})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Create(context.Background(), worker, CreateRequest{LeadID: "dnc", ScheduledAt: at, Outcome: OutcomeFollowup})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for dnc lead, got %v", err)
	}
	_, err = svc.Create(context.Background(), worker, CreateRequest{LeadID: "ghost", ScheduledAt: at, Outcome: OutcomeFollowup})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	a, err := svc.Create(context.Background(), worker, CreateRequest{LeadID: "won", ScheduledAt: at, Outcome: OutcomeInterested, SelectedPlan: "pro"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != StatusScheduled || a.CreatedBy != "w1" || a.LeadID == nil || *a.LeadID != "won" {
		t.Fatalf("unexpected appointment %+v", a)
	}
}

func TestCreate_ManualWithoutLead(t *testing.T) {
	svc, _, _ := setup(t)
	a, err := svc.Create(context.Background(), admin, CreateRequest{ScheduledAt: time.Now(), Outcome: OutcomeManual})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.LeadID != nil {
		t.Fatalf("expected no lead link")
	}

	if _, err := svc.Create(context.Background(), admin, CreateRequest{Outcome: OutcomeManual}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected scheduledAt validation, got %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, CreateRequest{ScheduledAt: time.Now(), Outcome: "walk_in"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected outcome validation, got %v", err)
	}
}

func TestUpdateStatus_TerminalStatesAreFinal(t *testing.T) {
	svc, _, _ := setup(t)
	a, err := svc.Create(context.Background(), worker, CreateRequest{ScheduledAt: time.Now(), Outcome: OutcomeManual})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), other, a.ID, StatusCompleted); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}

	done, err := svc.UpdateStatus(context.Background(), worker, a.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), admin, a.ID, StatusCancelled); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected terminal state error, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), admin, a.ID, StatusScheduled); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected invalid target error, got %v", err)
	}
}

func TestList_TrashAndVisibility(t *testing.T) {
	svc, repo, _ := setup(t)
	mgr := trash.NewManager()
	mgr.Register(trash.EntityAppointments, repo)

	mine, _ := svc.Create(context.Background(), worker, CreateRequest{ScheduledAt: time.Now(), Outcome: OutcomeManual})
	_, _ = svc.Create(context.Background(), other, CreateRequest{ScheduledAt: time.Now(), Outcome: OutcomeManual})

	list, err := svc.List(context.Background(), worker, false)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 own appointment, got %d (%v)", len(list), err)
	}

	if _, err := mgr.Trash(context.Background(), trash.EntityAppointments, []string{mine.ID}); err != nil {
		t.Fatalf("trash: %v", err)
	}
	list, _ = svc.List(context.Background(), admin, false)
	if len(list) != 1 {
		t.Fatalf("expected 1 live appointment, got %d", len(list))
	}
	list, _ = svc.List(context.Background(), admin, true)
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("expected trashed appointment listed")
	}
	if _, err := svc.List(context.Background(), worker, true); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden trash listing for worker")
	}

	if _, err := svc.UpdateStatus(context.Background(), worker, mine.ID, StatusCancelled); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected trashed appointment to be not found, got %v", err)
	}
}

func TestLeadPurgeUnlinksAppointments(t *testing.T) {
	svc, repo, store := setup(t)
	store.PutLead(leads.Lead{ID: "won", Status: leads.StatusCompleted})
	a, err := svc.Create(context.Background(), worker, CreateRequest{LeadID: "won", ScheduledAt: time.Now(), Outcome: OutcomeInterested})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mgr := trash.NewManager()
	mgr.Register(trash.EntityLeads, store.LeadTrash())
	if _, err := mgr.Trash(context.Background(), trash.EntityLeads, []string{"won"}); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if _, err := mgr.PermanentDelete(context.Background(), trash.EntityLeads, []string{"won"}, trash.ConfirmationText); err != nil {
		t.Fatalf("purge: %v", err)
	}

	got, err := repo.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LeadID != nil {
		t.Fatalf("expected lead link cleared")
	}
}
