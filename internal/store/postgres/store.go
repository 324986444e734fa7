// Package postgres implements the dialer's persistence contracts on PostgreSQL.
//
// All multi-statement writes go through utils.WithTx. Row locks use
// FOR UPDATE, and the queue claim uses SKIP LOCKED so concurrent workers
// never block on, or double-claim, the same lead.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dialer-platform/internal/dialer"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store is the Postgres-backed dialer.Store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

var _ dialer.Store = (*Store)(nil)

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return dialer.ErrNoRows
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// likePattern escapes LIKE metacharacters and wraps term for a substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
