package calls

import "time"

// Session is one recorded call attempt against a lead.
//
// LeadID is nullable: call history survives lead removal and master clear.
// Follow-up fields form the follow-up queue; clearing them never deletes the row.
type Session struct {
	ID              string    `json:"id" db:"id"`
	LeadID          *string   `json:"lead_id" db:"lead_id"`
	UserID          string    `json:"user_id" db:"user_id"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	Outcome         Outcome   `json:"outcome" db:"outcome"`
	Notes           string    `json:"notes,omitempty" db:"notes"`

	FollowupAt       *time.Time `json:"followup_at,omitempty" db:"followup_at"`
	FollowupPriority Priority   `json:"followup_priority,omitempty" db:"followup_priority"`
	FollowupNotes    string     `json:"followup_notes,omitempty" db:"followup_notes"`
}

// HasFollowup reports whether the call is currently in the follow-up queue.
func (s Session) HasFollowup() bool { return s.FollowupAt != nil }

// ClearFollowup removes the call from the follow-up queue.
func (s *Session) ClearFollowup() {
	s.FollowupAt = nil
	s.FollowupPriority = ""
	s.FollowupNotes = ""
}

type Outcome string

const (
	OutcomeNoAnswer      Outcome = "no_answer"
	OutcomeVoicemail     Outcome = "voicemail"
	OutcomeNotInterested Outcome = "not_interested"
	OutcomeInterested    Outcome = "interested"
	OutcomeFollowup      Outcome = "followup"
	OutcomeWrongNumber   Outcome = "wrong_number"
	OutcomeDNC           Outcome = "dnc"
)

// Outcomes lists every accepted outcome token.
var Outcomes = []Outcome{
	OutcomeNoAnswer,
	OutcomeVoicemail,
	OutcomeNotInterested,
	OutcomeInterested,
	OutcomeFollowup,
	OutcomeWrongNumber,
	OutcomeDNC,
}

func (o Outcome) Valid() bool {
	for _, v := range Outcomes {
		if o == v {
			return true
		}
	}
	return false
}

// SoftNegative reports outcomes that return the lead to the pool until the attempt cap.
func (o Outcome) SoftNegative() bool {
	switch o {
	case OutcomeNoAnswer, OutcomeVoicemail, OutcomeNotInterested, OutcomeWrongNumber:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid accepts the empty priority (not set).
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Followup is the queue view of a call with a scheduled callback.
type Followup struct {
	CallID        string     `json:"call_id"`
	LeadID        *string    `json:"lead_id"`
	UserID        string     `json:"user_id"`
	FollowupAt    time.Time  `json:"followup_at"`
	Priority      Priority   `json:"followup_priority,omitempty"`
	Notes         string     `json:"followup_notes,omitempty"`
	Outcome       Outcome    `json:"outcome"`
	CallStartTime time.Time  `json:"start_time"`
	LeadName      string     `json:"lead_name,omitempty"`
	LeadPhone     string     `json:"lead_phone,omitempty"`
	LeadCategory  string     `json:"lead_category,omitempty"`
	LeadDeletedAt *time.Time `json:"lead_deleted_at,omitempty"`
}

// Scope selects whose follow-ups or calls an operation covers.
type Scope string

const (
	ScopeOwn Scope = "own"
	ScopeAll Scope = "all"
)

func (s Scope) Valid() bool { return s == ScopeOwn || s == ScopeAll }
