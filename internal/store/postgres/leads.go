package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/trash"
	"dialer-platform/pkg/utils"

	"github.com/lib/pq"
)

var leadFields = []string{
	"id", "phone", "name", "email", "website", "category", "status",
	"assigned_to", "assigned_at", "locked_until", "attempt_count", "upload_id",
	"created_at", "updated_at", "deleted_at",
}

// leadColumns renders the lead column list, optionally qualified by table.
func leadColumns(table string) string {
	if table == "" {
		return strings.Join(leadFields, ", ")
	}
	out := make([]string, len(leadFields))
	for i, f := range leadFields {
		out[i] = table + "." + f
	}
	return strings.Join(out, ", ")
}

func scanLead(row rowScanner) (leads.Lead, error) {
	var (
		l          leads.Lead
		status     string
		assignedTo sql.NullString
		uploadID   sql.NullString
		assignedAt sql.NullTime
		lockedTill sql.NullTime
		deletedAt  sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.Phone, &l.Name, &l.Email, &l.Website, &l.Category, &status,
		&assignedTo, &assignedAt, &lockedTill, &l.AttemptCount, &uploadID,
		&l.CreatedAt, &l.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return leads.Lead{}, err
	}
	l.Status = leads.Status(status)
	l.AssignedTo = assignedTo.String
	l.UploadID = uploadID.String
	l.AssignedAt = timePtr(assignedAt)
	l.LockedUntil = timePtr(lockedTill)
	l.DeletedAt = timePtr(deletedAt)
	return l, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// claimSQL leases the oldest eligible lead. An ASSIGNED lead whose lease has
// lapsed is eligible again; reclaim happens here rather than in a sweeper.
var claimSQL = `
WITH picked AS (
	SELECT l.id
	FROM leads l
	WHERE l.deleted_at IS NULL
	  AND (l.status = 'NEW'
	       OR (l.status = 'ASSIGNED' AND (l.locked_until IS NULL OR l.locked_until < $2)))
	  AND ($3 = '' OR l.category = $3)
	  AND NOT EXISTS (
	      SELECT 1 FROM worker_lead_history h
	      WHERE h.worker_id = $1 AND h.lead_id = l.id)
	ORDER BY l.created_at, l.id
	LIMIT 1
	FOR UPDATE OF l SKIP LOCKED
)
UPDATE leads
SET status = 'ASSIGNED', assigned_to = $1, assigned_at = $2, locked_until = $4, updated_at = $2
FROM picked
WHERE leads.id = picked.id
RETURNING ` + leadColumns("leads")

func (s *Store) ClaimNext(ctx context.Context, workerID, category string, now time.Time, lease time.Duration) (leads.Lead, bool, error) {
	var (
		out leads.Lead
		ok  bool
	)
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		l, err := scanLead(tx.QueryRowContext(ctx, claimSQL, workerID, now, category, now.Add(lease)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("claim lead: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO worker_lead_history (worker_id, lead_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (worker_id, lead_id) DO NOTHING`, workerID, l.ID, now); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		out, ok = l, true
		return nil
	})
	if err != nil {
		return leads.Lead{}, false, err
	}
	return out, ok, nil
}

func (s *Store) CurrentLead(ctx context.Context, workerID string, now time.Time) (leads.Lead, bool, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx, `
		SELECT `+leadColumns("")+`
		FROM leads
		WHERE assigned_to = $1 AND status = 'ASSIGNED' AND locked_until > $2 AND deleted_at IS NULL
		ORDER BY assigned_at DESC
		LIMIT 1`, workerID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leads.Lead{}, false, nil
		}
		return leads.Lead{}, false, err
	}
	return l, true, nil
}

func (s *Store) CompleteCall(ctx context.Context, leadID string, session calls.Session, decide dialer.Decider) (leads.Lead, error) {
	var out leads.Lead
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		l, err := scanLead(tx.QueryRowContext(ctx,
			`SELECT `+leadColumns("")+` FROM leads WHERE id = $1 FOR UPDATE`, leadID))
		if err != nil {
			return mapNoRows(err)
		}
		var served bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM worker_lead_history WHERE worker_id = $1 AND lead_id = $2)`,
			session.UserID, leadID).Scan(&served); err != nil {
			return fmt.Errorf("check lead history: %w", err)
		}
		next, err := decide(l, served)
		if err != nil {
			return err
		}
		if err := insertCall(ctx, tx, session); err != nil {
			return err
		}
		updatedAt := session.StartTime.Add(time.Duration(session.DurationSeconds) * time.Second)
		out, err = scanLead(tx.QueryRowContext(ctx, `
			UPDATE leads
			SET status = $2, attempt_count = attempt_count + 1,
			    assigned_to = NULL, locked_until = NULL, updated_at = $3
			WHERE id = $1
			RETURNING `+leadColumns(""), leadID, string(next), updatedAt))
		if err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return leads.Lead{}, err
	}
	return out, nil
}

func (s *Store) GetLead(ctx context.Context, id string) (leads.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns("")+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return leads.Lead{}, mapNoRows(err)
	}
	return l, nil
}

func (s *Store) ListLeads(ctx context.Context, q leads.Query) (leads.Page, error) {
	where := "deleted_at IS NULL"
	var args []any
	if q.Search != "" {
		args = append(args, likePattern(q.Search))
		where += ` AND (name ILIKE $1 OR email ILIKE $1 OR website ILIKE $1 OR category ILIKE $1 OR phone ILIKE $1`
		if len(q.PhoneDigits) > 0 {
			args = append(args, pq.Array(q.PhoneDigits))
			where += ` OR regexp_replace(phone, '[^0-9]', '', 'g') = ANY($2)`
		}
		where += `)`
	}

	out := leads.Page{Page: q.Page, Leads: []leads.Lead{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE `+where, args...).Scan(&out.Total); err != nil {
		return leads.Page{}, fmt.Errorf("count leads: %w", err)
	}

	n := len(args)
	args = append(args, q.PageSize, q.Offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM leads WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, leadColumns(""), where, n+1, n+2), args...)
	if err != nil {
		return leads.Page{}, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return leads.Page{}, err
		}
		out.Leads = append(out.Leads, l)
	}
	return out, rows.Err()
}

// MasterClear deletes every lead. call_sessions and appointments reference
// leads with ON DELETE SET NULL, so their rows survive unlinked.
func (s *Store) MasterClear(ctx context.Context, clearHistory bool) (int, error) {
	var n int
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM leads`)
		if err != nil {
			return fmt.Errorf("delete leads: %w", err)
		}
		if n, err = affected(res); err != nil {
			return err
		}
		if clearHistory {
			if _, err := tx.ExecContext(ctx, `DELETE FROM worker_lead_history`); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
		}
		return nil
	})
	return n, err
}

// LeadTrash exposes soft delete, restore and purge of leads to the trash manager.
func (s *Store) LeadTrash() trash.Repository { return leadTrash{db: s.db} }

type leadTrash struct{ db *sql.DB }

func (t leadTrash) Trash(ctx context.Context, ids []string, now time.Time) (int, error) {
	res, err := t.db.ExecContext(ctx, `
		UPDATE leads
		SET deleted_at = $2, updated_at = $2
		WHERE id = ANY($1) AND deleted_at IS NULL`, pq.Array(ids), now)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (t leadTrash) Restore(ctx context.Context, ids []string) (int, error) {
	res, err := t.db.ExecContext(ctx,
		`UPDATE leads SET deleted_at = NULL WHERE id = ANY($1) AND deleted_at IS NOT NULL`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (t leadTrash) Purge(ctx context.Context, ids []string) (int, error) {
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM leads WHERE id = ANY($1) AND deleted_at IS NOT NULL`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (t leadTrash) TrashOlderThan(ctx context.Context, cutoff *time.Time, now time.Time) (int, error) {
	res, err := t.db.ExecContext(ctx, `
		UPDATE leads
		SET deleted_at = $2, updated_at = $2
		WHERE deleted_at IS NULL AND ($1::timestamptz IS NULL OR created_at < $1)`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (t leadTrash) PurgeOlderThan(ctx context.Context, cutoff *time.Time) (int, error) {
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM leads WHERE deleted_at IS NOT NULL AND ($1::timestamptz IS NULL OR deleted_at < $1)`, cutoff)
	if err != nil {
		return 0, err
	}
	return affected(res)
}
