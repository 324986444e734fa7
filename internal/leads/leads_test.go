package leads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLead_EligibleAt(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		lead Lead
		want bool
	}{
		{"new", Lead{Status: StatusNew}, true},
		{"assigned expired", Lead{Status: StatusAssigned, LockedUntil: &past}, true},
		{"assigned without lease", Lead{Status: StatusAssigned}, true},
		{"assigned held", Lead{Status: StatusAssigned, LockedUntil: &future}, false},
		{"completed", Lead{Status: StatusCompleted}, false},
		{"dnc", Lead{Status: StatusDNC}, false},
		{"trashed", Lead{Status: StatusNew, DeletedAt: &past}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.lead.EligibleAt(now))
		})
	}
}

func TestLead_PublicOmitsLeaseFields(t *testing.T) {
	now := time.Now()
	l := Lead{ID: "l1", Phone: "+15551234567", Status: StatusAssigned, AssignedTo: "w1", LockedUntil: &now, AttemptCount: 2}
	p := l.Public()
	assert.Equal(t, "l1", p.ID)
	assert.Equal(t, 2, p.AttemptCount)
}

func TestNormalizePhone(t *testing.T) {
	got, ok := NormalizePhone("(202) 555-0143", "US")
	assert.True(t, ok)
	assert.Equal(t, "+12025550143", got)

	_, ok = NormalizePhone("acme plumbing", "US")
	assert.False(t, ok)

	_, ok = NormalizePhone("12", "US")
	assert.False(t, ok)
}

func TestBuildQuery_ClampsPaging(t *testing.T) {
	q := BuildQuery(0, 5000, " 202-555-0143 ", "US", 100)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 100, q.PageSize)
	assert.Equal(t, "+12025550143", q.Phone)
	assert.Equal(t, 0, q.Offset())

	q = BuildQuery(3, 20, "", "US", 100)
	assert.Equal(t, 40, q.Offset())
}

func TestQuery_Matches(t *testing.T) {
	l := Lead{Name: "Acme Roofing", Phone: "202.555.0143", Category: "roofers"}
	assert.True(t, BuildQuery(1, 10, "acme", "US", 0).Matches(l))
	assert.True(t, BuildQuery(1, 10, "+1 202 555 0143", "US", 0).Matches(l))
	assert.False(t, BuildQuery(1, 10, "dentist", "US", 0).Matches(l))
}

func TestPhoneDigitForms(t *testing.T) {
	assert.Equal(t, []string{"12025550143", "2025550143"}, PhoneDigitForms("(202) 555-0143", "US"))
	assert.Equal(t, []string{"442079460000", "2079460000", "02079460000"}, PhoneDigitForms("020 7946 0000", "GB"))
	assert.Nil(t, PhoneDigitForms("acme plumbing", "US"))
	assert.Equal(t, "5551234567", DigitsOnly("(555) 123-4567"))
}

func TestQuery_MatchesStoredPhoneInAnyFormat(t *testing.T) {
	q := BuildQuery(1, 10, "+1 202 555 0143", "US", 0)
	require.Equal(t, []string{"12025550143", "2025550143"}, q.PhoneDigits)

	for _, stored := range []string{"(202) 555-0143", "202.555.0143", "+12025550143", "1-202-555-0143"} {
		assert.True(t, q.Matches(Lead{Phone: stored}), stored)
	}
	assert.False(t, q.Matches(Lead{Phone: "(202) 555-0199"}))
}
