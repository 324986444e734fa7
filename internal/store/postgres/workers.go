package postgres

import (
	"context"
	"database/sql"

	"dialer-platform/internal/dialer"
)

// Workers reads caller accounts from the workers table.
type Workers struct {
	db *sql.DB
}

func NewWorkers(db *sql.DB) *Workers { return &Workers{db: db} }

func (w *Workers) Lookup(ctx context.Context, workerID string) (dialer.Worker, error) {
	var out dialer.Worker
	err := w.db.QueryRowContext(ctx,
		`SELECT id, name, active, suspended FROM workers WHERE id = $1`, workerID).
		Scan(&out.ID, &out.Name, &out.Active, &out.Suspended)
	if err != nil {
		return dialer.Worker{}, mapNoRows(err)
	}
	return out, nil
}
