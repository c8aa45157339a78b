package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EmailStatus tracks an ingested email through processing.
type EmailStatus string

const (
	EmailUnprocessed  EmailStatus = "UNPROCESSED"
	EmailProcessing   EmailStatus = "PROCESSING" // claimed by a run
	EmailUpdatedTasks EmailStatus = "UPDATED_TASKS"
	EmailFailed       EmailStatus = "FAILED"
)

// EmailRecord is the stored copy of an inbound email and its processing outcome.
type EmailRecord struct {
	ID                int64       `json:"id"`
	Owner             string      `json:"owner"`
	MessageID         string      `json:"message_id,omitempty"`
	From              string      `json:"from,omitempty"`
	To                string      `json:"to,omitempty"`
	Subject           string      `json:"subject,omitempty"`
	SentAt            time.Time   `json:"sent_at,omitempty"`
	Body              string      `json:"-"`
	Status            EmailStatus `json:"status"`
	FailureReason     string      `json:"failure_reason,omitempty"`
	TasksBefore       int         `json:"tasks_before"`
	TasksAfter        int         `json:"tasks_after"`
	InputCostNanoUSD  int64       `json:"input_cost_nano_usd"`
	OutputCostNanoUSD int64       `json:"output_cost_nano_usd"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// EmailOutcome is written once processing finishes.
type EmailOutcome struct {
	Status            EmailStatus
	FailureReason     string
	TasksBefore       int
	TasksAfter        int
	InputCostNanoUSD  int64
	OutputCostNanoUSD int64
}

const emailColumns = `id, owner, message_id, sender, recipient, subject, sent_at, body, status,
	failure_reason, tasks_before, tasks_after, input_cost_nano_usd, output_cost_nano_usd,
	created_at, updated_at`

func scanEmail(sc rowScanner) (EmailRecord, error) {
	var (
		e                    EmailRecord
		sentAt               sql.NullString
		status               string
		createdAt, updatedAt string
	)
	err := sc.Scan(&e.ID, &e.Owner, &e.MessageID, &e.From, &e.To, &e.Subject, &sentAt, &e.Body, &status,
		&e.FailureReason, &e.TasksBefore, &e.TasksAfter, &e.InputCostNanoUSD, &e.OutputCostNanoUSD,
		&createdAt, &updatedAt)
	if err != nil {
		return EmailRecord{}, err
	}
	e.SentAt = parseNullTime(sentAt)
	e.Status = EmailStatus(status)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// CreateEmail stores e as UNPROCESSED. A repeated non-empty Message-ID for the
// same owner yields ErrAlreadyExists.
func (s *SQLiteStore) CreateEmail(ctx context.Context, e EmailRecord) (EmailRecord, error) {
	now := time.Now().UTC()
	if e.Status == "" {
		e.Status = EmailUnprocessed
	}
	e.CreatedAt, e.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (owner, message_id, sender, recipient, subject, sent_at, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Owner, e.MessageID, e.From, e.To, e.Subject, nullTimeString(e.SentAt), e.Body, e.Status,
		formatTime(now), formatTime(now))
	if isUniqueViolation(err) {
		return EmailRecord{}, fmt.Errorf("email %q: %w", e.MessageID, ErrAlreadyExists)
	}
	if err != nil {
		return EmailRecord{}, fmt.Errorf("insert email: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return EmailRecord{}, fmt.Errorf("email id: %w", err)
	}
	return e, nil
}

// GetEmail returns ErrNotFound for unknown ids.
func (s *SQLiteStore) GetEmail(ctx context.Context, id int64) (EmailRecord, error) {
	e, err := scanEmail(s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return EmailRecord{}, fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return EmailRecord{}, fmt.Errorf("get email: %w", err)
	}
	return e, nil
}

// FindEmailByMessageID looks up an owner's email by its Message-ID header.
func (s *SQLiteStore) FindEmailByMessageID(ctx context.Context, owner, messageID string) (EmailRecord, error) {
	if messageID == "" {
		return EmailRecord{}, ErrNotFound
	}
	e, err := scanEmail(s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE owner = ? AND message_id = ?`, owner, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return EmailRecord{}, fmt.Errorf("email %q: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return EmailRecord{}, fmt.Errorf("find email: %w", err)
	}
	return e, nil
}

// ClaimEmail moves an UNPROCESSED email to PROCESSING. It reports false when
// the email was not UNPROCESSED, i.e. another run already claimed or finished it.
func (s *SQLiteStore) ClaimEmail(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE emails SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, EmailProcessing, formatTime(time.Now()), id, EmailUnprocessed)
	if err != nil {
		return false, fmt.Errorf("claim email: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ReleaseStaleClaims returns PROCESSING emails last touched before cutoff to
// UNPROCESSED. A claim only goes stale when its process died mid-run.
func (s *SQLiteStore) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE emails SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?
	`, EmailUnprocessed, formatTime(time.Now()), EmailProcessing, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpdateEmailOutcome records the terminal (or retryable) state of an email.
func (s *SQLiteStore) UpdateEmailOutcome(ctx context.Context, id int64, o EmailOutcome) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE emails SET status = ?, failure_reason = ?, tasks_before = ?, tasks_after = ?,
			input_cost_nano_usd = input_cost_nano_usd + ?, output_cost_nano_usd = output_cost_nano_usd + ?,
			updated_at = ?
		WHERE id = ?
	`, o.Status, o.FailureReason, o.TasksBefore, o.TasksAfter, o.InputCostNanoUSD, o.OutputCostNanoUSD,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListEmails returns emails oldest first. Empty owner or status means any.
func (s *SQLiteStore) ListEmails(ctx context.Context, owner string, status EmailStatus) ([]EmailRecord, error) {
	q := `SELECT ` + emailColumns + ` FROM emails WHERE 1 = 1`
	var args []any
	if owner != "" {
		q += ` AND owner = ?`
		args = append(args, owner)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmailRecord
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}
