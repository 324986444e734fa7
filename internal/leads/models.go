package leads

import "time"

// Lead is a single phone prospect in the dialer pool.
//
// Invariants:
// - A lead is actively held iff Status == StatusAssigned and LockedUntil is in the future.
// - DNC and COMPLETED leads are never handed out again.
// - AttemptCount only grows; every recorded call adds exactly one.
type Lead struct {
	ID       string `json:"id" db:"id"`
	Phone    string `json:"phone" db:"phone"`
	Name     string `json:"name,omitempty" db:"name"`
	Email    string `json:"email,omitempty" db:"email"`
	Website  string `json:"website,omitempty" db:"website"`
	Category string `json:"category,omitempty" db:"category"`

	Status Status `json:"status" db:"status"`

	// Lease fields. Owned by the assignment engine and the outcome processor only.
	AssignedTo  string     `json:"assigned_to,omitempty" db:"assigned_to"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty" db:"locked_until"`

	AttemptCount int    `json:"attempt_count" db:"attempt_count"`
	UploadID     string `json:"upload_id,omitempty" db:"upload_id"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type Status string

const (
	StatusNew       Status = "NEW"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
	StatusDNC       Status = "DNC"
)

// Terminal reports whether the status removes the lead from the assignment pool for good.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDNC
}

// HeldAt reports whether the lead is actively leased at now.
func (l Lead) HeldAt(now time.Time) bool {
	return l.Status == StatusAssigned && l.LockedUntil != nil && l.LockedUntil.After(now)
}

// EligibleAt reports whether the lead may be claimed at now.
// Expired leases count as available; there is no background sweeper.
func (l Lead) EligibleAt(now time.Time) bool {
	if l.DeletedAt != nil {
		return false
	}
	switch l.Status {
	case StatusNew:
		return true
	case StatusAssigned:
		return l.LockedUntil == nil || l.LockedUntil.Before(now)
	default:
		return false
	}
}

// Public is the worker-facing projection. Lease fields never leave the server.
type Public struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Category     string `json:"category,omitempty"`
	AttemptCount int    `json:"attempt_count"`
}

func (l Lead) Public() Public {
	return Public{
		ID:           l.ID,
		Name:         l.Name,
		Phone:        l.Phone,
		Email:        l.Email,
		Website:      l.Website,
		Category:     l.Category,
		AttemptCount: l.AttemptCount,
	}
}

// Page is one page of the admin lead listing.
type Page struct {
	Leads []Lead `json:"leads"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
}

// Query filters the admin lead listing.
type Query struct {
	Page     int
	PageSize int
	Search   string
	// Phone is the E.164 form of Search when Search parses as a phone number.
	Phone string
	// PhoneDigits holds the digit-only forms matched against stored phones.
	PhoneDigits []string
}

// Offset returns the row offset for the 1-based page.
func (q Query) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}
