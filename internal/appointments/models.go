package appointments

import "time"

// Appointment is a scheduled sales meeting produced from a call or entered manually.
//
// LeadID is nullable so appointments outlive purged leads.
// Status moves scheduled -> completed|cancelled once; both targets are terminal.
type Appointment struct {
	ID              string     `json:"id" db:"id"`
	LeadID          *string    `json:"lead_id" db:"lead_id"`
	ScheduledAt     time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Status          Status     `json:"status" db:"status"`
	Outcome         Outcome    `json:"outcome" db:"outcome"`
	CreatedBy       string     `json:"created_by" db:"created_by"`
	SelectedPlan    string     `json:"selected_plan,omitempty" db:"selected_plan"`
	NegotiatedPrice *int64     `json:"negotiated_price,omitempty" db:"negotiated_price"`
	Notes           string     `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

func (s Status) Valid() bool {
	return s == StatusScheduled || s == StatusCompleted || s == StatusCancelled
}

// Outcome records what produced the appointment.
type Outcome string

const (
	OutcomeInterested Outcome = "interested"
	OutcomeFollowup   Outcome = "followup"
	OutcomeManual     Outcome = "manual"
)

func (o Outcome) Valid() bool {
	return o == OutcomeInterested || o == OutcomeFollowup || o == OutcomeManual
}

type CreateRequest struct {
	LeadID          string
	ScheduledAt     time.Time
	Outcome         Outcome
	SelectedPlan    string
	NegotiatedPrice *int64
	Notes           string
}

// ListFilter narrows List. CreatedBy "" means everyone.
type ListFilter struct {
	CreatedBy string
	Trashed   bool
}
