package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialer-platform/internal/appointments"

	"github.com/lib/pq"
)

const appointmentColumns = `id, lead_id, scheduled_at, status, outcome, created_by, selected_plan,
	negotiated_price, notes, created_at, updated_at, deleted_at`

// Appointments is the Postgres appointments.Repository and its trash repository.
type Appointments struct {
	db *sql.DB
}

func NewAppointments(db *sql.DB) *Appointments { return &Appointments{db: db} }

func scanAppointment(row rowScanner) (appointments.Appointment, error) {
	var (
		a       appointments.Appointment
		leadID  sql.NullString
		status  string
		outcome string
		price   sql.NullInt64
		deleted sql.NullTime
	)
	if err := row.Scan(&a.ID, &leadID, &a.ScheduledAt, &status, &outcome, &a.CreatedBy, &a.SelectedPlan,
		&price, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &deleted); err != nil {
		return appointments.Appointment{}, err
	}
	if leadID.Valid {
		a.LeadID = &leadID.String
	}
	if price.Valid {
		p := price.Int64
		a.NegotiatedPrice = &p
	}
	a.Status = appointments.Status(status)
	a.Outcome = appointments.Outcome(outcome)
	a.DeletedAt = timePtr(deleted)
	return a, nil
}

func (r *Appointments) Create(ctx context.Context, a appointments.Appointment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (id, lead_id, scheduled_at, status, outcome, created_by, selected_plan,
		                          negotiated_price, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.LeadID, a.ScheduledAt, string(a.Status), string(a.Outcome), a.CreatedBy, a.SelectedPlan,
		a.NegotiatedPrice, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *Appointments) Get(ctx context.Context, id string) (appointments.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return appointments.Appointment{}, mapNoRows(err)
	}
	return a, nil
}

// SetStatus is a compare-and-set on status; a concurrent change yields dialer.ErrNoRows.
func (r *Appointments) SetStatus(ctx context.Context, id string, from, to appointments.Status, now time.Time) (appointments.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRowContext(ctx, `
		UPDATE appointments SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		RETURNING `+appointmentColumns, id, string(from), string(to), now))
	if err != nil {
		return appointments.Appointment{}, mapNoRows(err)
	}
	return a, nil
}

func (r *Appointments) List(ctx context.Context, f appointments.ListFilter) ([]appointments.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE (deleted_at IS NOT NULL) = $1 AND ($2 = '' OR created_by = $2)
		ORDER BY scheduled_at ASC`, f.Trashed, f.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	out := make([]appointments.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Appointments) Trash(ctx context.Context, ids []string, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET deleted_at = $2, updated_at = $2 WHERE id = ANY($1) AND deleted_at IS NULL`,
		pq.Array(ids), now)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (r *Appointments) Restore(ctx context.Context, ids []string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET deleted_at = NULL WHERE id = ANY($1) AND deleted_at IS NOT NULL`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (r *Appointments) Purge(ctx context.Context, ids []string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE id = ANY($1) AND deleted_at IS NOT NULL`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (r *Appointments) TrashOlderThan(ctx context.Context, cutoff *time.Time, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments SET deleted_at = $2, updated_at = $2
		WHERE deleted_at IS NULL AND ($1::timestamptz IS NULL OR created_at < $1)`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (r *Appointments) PurgeOlderThan(ctx context.Context, cutoff *time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE deleted_at IS NOT NULL AND ($1::timestamptz IS NULL OR deleted_at < $1)`, cutoff)
	if err != nil {
		return 0, err
	}
	return affected(res)
}
