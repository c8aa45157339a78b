package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/josephgoksu/taskmail/internal/task"
)

// checkRowsErr checks for errors that may have occurred during row iteration.
// Call it after every rows.Next() loop.
func checkRowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// txExecutor abstracts *sql.DB and *sql.Tx for shared insert helpers.
type txExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullTimeString returns nil for zero time, RFC3339 string otherwise.
func nullTimeString(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	return parseTime(ns.String)
}

func nullDate(d *task.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDate(ns sql.NullString) *task.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := task.ParseDate(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
