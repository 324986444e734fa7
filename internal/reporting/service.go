package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/rbac"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Call sessions are append-only,
// so reports read them directly.
type Repository interface {
	ListCalls(ctx context.Context, userID string, from, to time.Time) ([]calls.Session, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// Summary applies visibility rules: workers only ever see their own numbers,
// admins choose between one worker, themselves or everyone.
func (s *Service) Summary(ctx context.Context, actor auth.Identity, scope calls.Scope, userID string, r TimeRange) (OutcomeSummary, error) {
	if scope == "" {
		scope = calls.ScopeOwn
	}
	if !scope.Valid() {
		return OutcomeSummary{}, apperr.Validationf("Invalid scope %q", scope)
	}
	req := OutcomeSummaryRequest{UserID: actor.UserID, Range: r}
	if rbac.IsAdmin(actor.Role) {
		switch {
		case userID != "":
			req.UserID = userID
		case scope == calls.ScopeAll:
			req.UserID = ""
		}
	} else if scope == calls.ScopeAll || (userID != "" && userID != actor.UserID) {
		return OutcomeSummary{}, apperr.Forbidden("admin only")
	}

	out, err := s.OutcomeSummary(ctx, req)
	if errors.Is(err, ErrInvalidRequest) {
		return OutcomeSummary{}, apperr.Validation("Invalid time range")
	}
	return out, err
}

func (s *Service) OutcomeSummary(ctx context.Context, req OutcomeSummaryRequest) (OutcomeSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return OutcomeSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return OutcomeSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return OutcomeSummary{}, fmt.Errorf("list calls: %w", err)
	}

	out := OutcomeSummary{UserID: req.UserID, Range: req.Range, ByOutcome: map[calls.Outcome]int{}}
	for _, o := range calls.Outcomes {
		out.ByOutcome[o] = 0
	}
	for _, c := range rows {
		out.TotalCalls++
		out.ByOutcome[c.Outcome]++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.HasFollowup() {
			out.FollowupsScheduled++
		}
		switch c.Outcome {
		case calls.OutcomeNoAnswer, calls.OutcomeVoicemail, calls.OutcomeWrongNumber:
			// nobody reached
		default:
			out.Contacted++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.ContactRate = float64(out.Contacted) / float64(out.TotalCalls)
		out.ConversionRate = float64(out.ByOutcome[calls.OutcomeInterested]) / float64(out.TotalCalls)
	}
	return out, nil
}
