package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/rbac"
	"dialer-platform/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for appointments.
type Repository interface {
	Create(ctx context.Context, a Appointment) error
	Get(ctx context.Context, id string) (Appointment, error)
	// SetStatus moves a live appointment from one status to another and
	// returns dialer.ErrNoRows if it is missing, trashed or no longer in from.
	SetStatus(ctx context.Context, id string, from, to Status, now time.Time) (Appointment, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)
}

// LeadLookup resolves leads referenced by new appointments.
type LeadLookup interface {
	GetLead(ctx context.Context, id string) (leads.Lead, error)
}

type Service struct {
	repo  Repository
	leads LeadLookup
	clock func() time.Time
}

func NewService(repo Repository, lookup LeadLookup) *Service {
	return &Service{repo: repo, leads: lookup, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, req CreateRequest) (Appointment, error) {
	if actor.UserID == "" {
		return Appointment{}, apperr.Validation("user id required")
	}
	if !req.Outcome.Valid() {
		return Appointment{}, apperr.Validation("Invalid appointment outcome")
	}
	if req.ScheduledAt.IsZero() {
		return Appointment{}, apperr.Validation("scheduledAt required")
	}
	if req.NegotiatedPrice != nil && *req.NegotiatedPrice < 0 {
		return Appointment{}, apperr.Validation("negotiatedPrice must not be negative")
	}

	leadID := strings.TrimSpace(req.LeadID)
	if leadID == "" && req.Outcome != OutcomeManual {
		return Appointment{}, apperr.Validation("leadId required")
	}
	if leadID != "" {
		if err := s.checkLead(ctx, leadID, req.Outcome); err != nil {
			return Appointment{}, err
		}
	}

	now := s.clock().UTC()
	a := Appointment{
		ID:              uuid.NewString(),
		ScheduledAt:     req.ScheduledAt.UTC(),
		Status:          StatusScheduled,
		Outcome:         req.Outcome,
		CreatedBy:       actor.UserID,
		SelectedPlan:    strings.TrimSpace(req.SelectedPlan),
		NegotiatedPrice: req.NegotiatedPrice,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if leadID != "" {
		a.LeadID = &leadID
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	logger.From(ctx).Info("appointment created", "appointment_id", a.ID, "lead_id", leadID, "outcome", string(a.Outcome))
	return a, nil
}

func (s *Service) checkLead(ctx context.Context, leadID string, outcome Outcome) error {
	if s.leads == nil {
		return errors.New("appointments: lead lookup not configured")
	}
	l, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, dialer.ErrNoRows) {
			return apperr.NotFound("lead")
		}
		return err
	}
	if l.DeletedAt != nil {
		return apperr.NotFound("lead")
	}
	if l.Status == leads.StatusDNC {
		return apperr.Validation("Lead is marked do-not-call")
	}
	if outcome == OutcomeInterested && l.Status != leads.StatusCompleted {
		return apperr.Validation("Lead has no interested call")
	}
	return nil
}

// UpdateStatus closes a scheduled appointment. Only its creator or an admin may do so.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Identity, id string, to Status) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, apperr.Validation("appointmentId required")
	}
	if to != StatusCompleted && to != StatusCancelled {
		return Appointment{}, apperr.Validation("Invalid appointment status")
	}

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, dialer.ErrNoRows) {
			return Appointment{}, apperr.NotFound("appointment")
		}
		return Appointment{}, err
	}
	if cur.DeletedAt != nil {
		return Appointment{}, apperr.NotFound("appointment")
	}
	if !rbac.IsAdmin(actor.Role) && cur.CreatedBy != actor.UserID {
		return Appointment{}, apperr.Forbidden("appointment belongs to another user")
	}
	if cur.Status.Terminal() {
		return Appointment{}, apperr.Validationf("Appointment is already %s", cur.Status)
	}

	out, err := s.repo.SetStatus(ctx, id, StatusScheduled, to, s.clock().UTC())
	if err != nil {
		if errors.Is(err, dialer.ErrNoRows) {
			// lost a race with another status change
			return Appointment{}, apperr.Validation("Appointment is no longer scheduled")
		}
		return Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	return out, nil
}

// List returns appointments visible to actor. Workers see the ones they created.
func (s *Service) List(ctx context.Context, actor auth.Identity, trashed bool) ([]Appointment, error) {
	f := ListFilter{Trashed: trashed}
	if !rbac.IsAdmin(actor.Role) {
		if trashed {
			return nil, apperr.Forbidden("admin only")
		}
		f.CreatedBy = actor.UserID
	}
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if out == nil {
		out = []Appointment{}
	}
	return out, nil
}
