// Package memory persists tasks, users, ingested emails, AI invocations and
// processing budgets in SQLite.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "taskmail.db"

var (
	// ErrNotFound is returned when no row matches the id/owner pair.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique key conflicts.
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStore implements the task store and its supporting tables.
type SQLiteStore struct {
	db       *sql.DB
	basePath string
}

// NewSQLiteStore opens (or creates) the database under basePath.
// Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	var dsn string
	if basePath == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dsn = "file:" + filepath.Join(basePath, DBFileName) +
			"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, basePath: basePath}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the data directory the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.basePath
}

// Ping checks the connection; used by health endpoints.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		api_key_hash TEXT NOT NULL DEFAULT '',
		include_no_due_date INTEGER NOT NULL DEFAULT 1,
		parent_requirement_levels TEXT NOT NULL DEFAULT '',
		due_window_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TEXT,
		consequence_if_ignore TEXT NOT NULL DEFAULT '',
		parent_action TEXT NOT NULL DEFAULT '',
		parent_requirement_level TEXT NOT NULL DEFAULT '',
		student_action TEXT NOT NULL DEFAULT '',
		student_requirement_level TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		email_id INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_due ON tasks(owner, due_date);

	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		sent_at TEXT,
		body TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		tasks_before INTEGER NOT NULL DEFAULT 0,
		tasks_after INTEGER NOT NULL DEFAULT 0,
		input_cost_nano_usd INTEGER NOT NULL DEFAULT 0,
		output_cost_nano_usd INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_owner_message
		ON emails(owner, message_id) WHERE message_id <> '';
	CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);

	CREATE TABLE IF NOT EXISTS ai_invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		email_id INTEGER,
		mode TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		input_cost_nano_usd INTEGER NOT NULL DEFAULT 0,
		output_cost_nano_usd INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ai_invocations_owner ON ai_invocations(owner);

	CREATE TABLE IF NOT EXISTS budgets (
		owner TEXT PRIMARY KEY,
		remaining_nano_usd INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
