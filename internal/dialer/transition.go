package dialer

import (
	"dialer-platform/internal/calls"
	"dialer-platform/internal/leads"
)

// NextStatus maps a call outcome to the lead's next status.
//
// attemptsAfter is the attempt count including the call being recorded.
// maxAttempts caps soft-negative retries; 0 means no cap.
func NextStatus(outcome calls.Outcome, attemptsAfter, maxAttempts int) leads.Status {
	switch outcome {
	case calls.OutcomeDNC:
		return leads.StatusDNC
	case calls.OutcomeInterested:
		return leads.StatusCompleted
	case calls.OutcomeFollowup:
		return leads.StatusNew
	}
	if outcome.SoftNegative() && maxAttempts > 0 && attemptsAfter >= maxAttempts {
		return leads.StatusCompleted
	}
	return leads.StatusNew
}
