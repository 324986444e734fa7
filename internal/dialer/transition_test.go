package dialer

import (
	"testing"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/leads"
)

func TestNextStatus(t *testing.T) {
	cases := []struct {
		outcome  calls.Outcome
		attempts int
		max      int
		want     leads.Status
	}{
		{calls.OutcomeDNC, 1, 3, leads.StatusDNC},
		{calls.OutcomeInterested, 1, 3, leads.StatusCompleted},
		{calls.OutcomeFollowup, 5, 3, leads.StatusNew},
		{calls.OutcomeNoAnswer, 1, 3, leads.StatusNew},
		{calls.OutcomeVoicemail, 2, 3, leads.StatusNew},
		{calls.OutcomeNotInterested, 3, 3, leads.StatusCompleted},
		{calls.OutcomeWrongNumber, 4, 3, leads.StatusCompleted},
		{calls.OutcomeNoAnswer, 50, 0, leads.StatusNew},
	}
	for _, tc := range cases {
		if got := NextStatus(tc.outcome, tc.attempts, tc.max); got != tc.want {
			t.Fatalf("%s attempts=%d max=%d: expected %s, got %s", tc.outcome, tc.attempts, tc.max, tc.want, got)
		}
	}
}
