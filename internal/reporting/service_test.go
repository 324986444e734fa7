package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/calls"
)

func seeded(now time.Time) *MemoryRepo {
	later := now.Add(24 * time.Hour)
	repo := NewMemoryRepo()
	repo.Calls = []calls.Session{
		{ID: "c1", UserID: "w1", StartTime: now, DurationSeconds: 30, Outcome: calls.OutcomeInterested},
		{ID: "c2", UserID: "w1", StartTime: now, DurationSeconds: 10, Outcome: calls.OutcomeNoAnswer},
		{ID: "c3", UserID: "w1", StartTime: now, DurationSeconds: 50, Outcome: calls.OutcomeFollowup, FollowupAt: &later},
		{ID: "c4", UserID: "w2", StartTime: now, DurationSeconds: 90, Outcome: calls.OutcomeDNC},
		{ID: "c5", UserID: "w1", StartTime: now.Add(-48 * time.Hour), DurationSeconds: 5, Outcome: calls.OutcomeVoicemail},
	}
	return repo
}

func TestOutcomeSummary_Aggregates(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(seeded(now))

	out, err := svc.OutcomeSummary(context.Background(), OutcomeSummaryRequest{UserID: "w1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 {
		t.Fatalf("expected 3 calls, got %d", out.TotalCalls)
	}
	if out.ByOutcome[calls.OutcomeInterested] != 1 || out.ByOutcome[calls.OutcomeDNC] != 0 {
		t.Fatalf("unexpected outcome counts %+v", out.ByOutcome)
	}
	if out.Contacted != 2 || out.FollowupsScheduled != 1 {
		t.Fatalf("unexpected contacted/followups: %+v", out)
	}
	if out.AverageDurationSeconds != 30 {
		t.Fatalf("expected avg 30, got %d", out.AverageDurationSeconds)
	}
	if out.ConversionRate == 0 || out.ContactRate == 0 {
		t.Fatalf("expected non-zero rates")
	}
}

func TestOutcomeSummary_RejectsBadRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()
	if _, err := svc.OutcomeSummary(context.Background(), OutcomeSummaryRequest{Range: TimeRange{From: now, To: now}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestSummary_Visibility(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(seeded(now))
	r := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	w1 := auth.Identity{UserID: "w1", Role: "worker"}
	adm := auth.Identity{UserID: "adm", Role: "admin"}

	if _, err := svc.Summary(context.Background(), w1, calls.ScopeAll, "", r); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for worker scope all, got %v", err)
	}
	if _, err := svc.Summary(context.Background(), w1, calls.ScopeOwn, "w2", r); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for another worker, got %v", err)
	}

	all, err := svc.Summary(context.Background(), adm, calls.ScopeAll, "", r)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if all.TotalCalls != 4 {
		t.Fatalf("expected 4 calls across workers, got %d", all.TotalCalls)
	}

	one, err := svc.Summary(context.Background(), adm, calls.ScopeOwn, "w2", r)
	if err != nil || one.TotalCalls != 1 {
		t.Fatalf("expected 1 call for w2, got %d (%v)", one.TotalCalls, err)
	}

	if _, err := svc.Summary(context.Background(), adm, calls.ScopeAll, "", TimeRange{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for empty range, got %v", err)
	}
}
