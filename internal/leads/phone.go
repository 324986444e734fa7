package leads

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizePhone parses raw into E.164 using region for numbers without a
// country prefix. ok is false when raw is not a plausible phone number.
func NormalizePhone(raw, region string) (string, bool) {
	num, ok := parsePhone(raw, region)
	if !ok {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

func parsePhone(raw, region string) (*phonenumbers.PhoneNumber, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !looksLikePhone(raw) {
		return nil, false
	}
	if region == "" {
		region = defaultRegion
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return nil, false
	}
	return num, true
}

// PhoneDigitForms returns the digit-only spellings a stored phone may use for
// the number in raw, with and without country code or trunk prefix. Stored
// phones are not normalized on ingest, so searches compare digits only.
func PhoneDigitForms(raw, region string) []string {
	num, ok := parsePhone(raw, region)
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range []string{
		phonenumbers.Format(num, phonenumbers.E164),
		phonenumbers.GetNationalSignificantNumber(num),
		phonenumbers.Format(num, phonenumbers.NATIONAL),
	} {
		d := DigitsOnly(f)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// DigitsOnly strips everything but 0-9.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// looksLikePhone rejects free text early so names like "Acme 24" are searched as text.
func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == ' ' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7
}

// BuildQuery normalizes paging and derives the phone form of the search term.
func BuildQuery(page, pageSize int, search, region string, maxPageSize int) Query {
	if page < 1 {
		page = 1
	}
	if maxPageSize <= 0 {
		maxPageSize = 200
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	q := Query{Page: page, PageSize: pageSize, Search: strings.TrimSpace(search)}
	if e164, ok := NormalizePhone(q.Search, region); ok {
		q.Phone = e164
		q.PhoneDigits = PhoneDigitForms(q.Search, region)
	}
	return q
}

// Matches applies the listing search to an in-memory lead. It mirrors the
// Postgres predicate, including the digit-only phone comparison.
func (q Query) Matches(l Lead) bool {
	if q.Search == "" {
		return true
	}
	if len(q.PhoneDigits) > 0 {
		stored := DigitsOnly(l.Phone)
		for _, d := range q.PhoneDigits {
			if stored == d {
				return true
			}
		}
	}
	term := strings.ToLower(q.Search)
	for _, f := range []string{l.Name, l.Email, l.Website, l.Category, l.Phone} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
