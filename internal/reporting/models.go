package reporting

import (
	"time"

	"dialer-platform/internal/calls"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// OutcomeSummaryRequest asks for call outcome totals in [From, To).
// UserID "" aggregates every worker.
type OutcomeSummaryRequest struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`
}

type OutcomeSummary struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`

	TotalCalls int                   `json:"total_calls"`
	ByOutcome  map[calls.Outcome]int `json:"by_outcome"`

	// Contacted counts calls that reached a person.
	Contacted          int `json:"contacted"`
	FollowupsScheduled int `json:"followups_scheduled"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	ContactRate    float64 `json:"contact_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}
