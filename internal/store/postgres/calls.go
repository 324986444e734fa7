package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialer-platform/internal/calls"
)

const callColumns = `id, lead_id, user_id, start_time, duration_seconds, outcome, notes,
	followup_at, followup_priority, followup_notes`

func insertCall(ctx context.Context, q querier, c calls.Session) error {
	var followupAt any
	if c.FollowupAt != nil {
		followupAt = *c.FollowupAt
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO call_sessions (`+callColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.LeadID, c.UserID, c.StartTime, c.DurationSeconds, string(c.Outcome), c.Notes,
		followupAt, nullString(string(c.FollowupPriority)), nullString(c.FollowupNotes))
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func scanCall(row rowScanner) (calls.Session, error) {
	var (
		c          calls.Session
		leadID     sql.NullString
		outcome    string
		followupAt sql.NullTime
		priority   sql.NullString
		fNotes     sql.NullString
	)
	if err := row.Scan(&c.ID, &leadID, &c.UserID, &c.StartTime, &c.DurationSeconds, &outcome, &c.Notes,
		&followupAt, &priority, &fNotes); err != nil {
		return calls.Session{}, err
	}
	if leadID.Valid {
		c.LeadID = &leadID.String
	}
	c.Outcome = calls.Outcome(outcome)
	c.FollowupAt = timePtr(followupAt)
	c.FollowupPriority = calls.Priority(priority.String)
	c.FollowupNotes = fNotes.String
	return c, nil
}

func collectCalls(rows *sql.Rows) ([]calls.Session, error) {
	defer rows.Close()
	out := make([]calls.Session, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListLeadCalls(ctx context.Context, leadID, userID string) ([]calls.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM call_sessions
		WHERE lead_id = $1 AND ($2 = '' OR user_id = $2)
		ORDER BY start_time DESC`, leadID, userID)
	if err != nil {
		return nil, fmt.Errorf("list lead calls: %w", err)
	}
	return collectCalls(rows)
}

func (s *Store) GetCall(ctx context.Context, callID string) (calls.Session, error) {
	c, err := scanCall(s.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM call_sessions WHERE id = $1`, callID))
	if err != nil {
		return calls.Session{}, mapNoRows(err)
	}
	return c, nil
}

// ListFollowups reads the follow-up projection. Purged leads leave the lead fields empty.
func (s *Store) ListFollowups(ctx context.Context, userID string) ([]calls.Followup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.lead_id, c.user_id, c.followup_at, c.followup_priority, c.followup_notes,
		       c.outcome, c.start_time,
		       COALESCE(l.name, ''), COALESCE(l.phone, ''), COALESCE(l.category, ''), l.deleted_at
		FROM call_sessions c
		LEFT JOIN leads l ON l.id = c.lead_id
		WHERE c.followup_at IS NOT NULL AND ($1 = '' OR c.user_id = $1)
		ORDER BY c.followup_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list followups: %w", err)
	}
	defer rows.Close()

	out := make([]calls.Followup, 0)
	for rows.Next() {
		var (
			f        calls.Followup
			leadID   sql.NullString
			priority sql.NullString
			notes    sql.NullString
			outcome  string
			deleted  sql.NullTime
		)
		if err := rows.Scan(&f.CallID, &leadID, &f.UserID, &f.FollowupAt, &priority, &notes,
			&outcome, &f.CallStartTime, &f.LeadName, &f.LeadPhone, &f.LeadCategory, &deleted); err != nil {
			return nil, err
		}
		if leadID.Valid {
			f.LeadID = &leadID.String
		}
		f.Priority = calls.Priority(priority.String)
		f.Notes = notes.String
		f.Outcome = calls.Outcome(outcome)
		f.LeadDeletedAt = timePtr(deleted)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) ClearFollowup(ctx context.Context, callID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_sessions
		SET followup_at = NULL, followup_priority = NULL, followup_notes = NULL
		WHERE id = $1`, callID)
	if err != nil {
		return err
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNoRows(sql.ErrNoRows)
	}
	return nil
}

func (s *Store) ClearFollowups(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_sessions
		SET followup_at = NULL, followup_priority = NULL, followup_notes = NULL
		WHERE followup_at IS NOT NULL AND ($1 = '' OR user_id = $1)`, userID)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

// ListCalls serves reporting: calls started in [from, to), optionally for one user.
func (s *Store) ListCalls(ctx context.Context, userID string, from, to time.Time) ([]calls.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM call_sessions
		WHERE start_time >= $1 AND start_time < $2 AND ($3 = '' OR user_id = $3)
		ORDER BY start_time`, from, to, userID)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return collectCalls(rows)
}
