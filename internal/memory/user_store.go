package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/taskmail/internal/task"
)

// Preferences are the per-user defaults applied when a task listing request
// leaves a filter unset.
type Preferences struct {
	IncludeNoDueDate        bool                    `json:"include_no_due_date" yaml:"include_no_due_date"`
	ParentRequirementLevels []task.RequirementLevel `json:"parent_requirement_levels,omitempty" yaml:"parent_requirement_levels,omitempty"`
	// DueWindowDays limits listings to tasks due within this many days of today. Zero disables it.
	DueWindowDays int `json:"due_window_days,omitempty" yaml:"due_window_days,omitempty"`
}

// DefaultPreferences keep undated tasks and apply no other narrowing.
func DefaultPreferences() Preferences {
	return Preferences{IncludeNoDueDate: true}
}

// FilterOptions turns the preferences into listing defaults. A due window
// runs from today through today+DueWindowDays.
func (p Preferences) FilterOptions(today task.Date) task.FilterOptions {
	opts := task.FilterOptions{
		IncludeNoDueDate:        p.IncludeNoDueDate,
		ParentRequirementLevels: p.ParentRequirementLevels,
	}
	if p.DueWindowDays > 0 {
		from, to := today, today.AddDays(p.DueWindowDays)
		opts.DueFrom, opts.DueTo = &from, &to
	}
	return opts
}

// User is a registered mailbox owner.
type User struct {
	Username    string      `json:"username" yaml:"username"`
	APIKeyHash  string      `json:"-" yaml:"-"`
	Preferences Preferences `json:"preferences" yaml:"preferences"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
}

func joinLevels(levels []task.RequirementLevel) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}

func scanUser(sc rowScanner) (User, error) {
	var (
		u         User
		include   int
		levels    string
		createdAt string
	)
	if err := sc.Scan(&u.Username, &u.APIKeyHash, &include, &levels, &u.Preferences.DueWindowDays, &createdAt); err != nil {
		return User{}, err
	}
	u.Preferences.IncludeNoDueDate = include != 0
	// Levels were validated on write; a bad row degrades to "no level filter".
	u.Preferences.ParentRequirementLevels, _ = task.ParseRequirementLevels(levels)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

const userColumns = `username, api_key_hash, include_no_due_date, parent_requirement_levels, due_window_days, created_at`

// CreateUser registers username with default preferences.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, apiKeyHash string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username required", task.ErrValidation)
	}
	u := User{Username: username, APIKeyHash: apiKeyHash, Preferences: DefaultPreferences(), CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, api_key_hash, include_no_due_date, parent_requirement_levels, due_window_days, created_at)
		VALUES (?, ?, 1, '', 0, ?)
	`, u.Username, u.APIKeyHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("user %q: %w", username, ErrAlreadyExists)
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser returns ErrNotFound for unknown usernames.
func (s *SQLiteStore) GetUser(ctx context.Context, username string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by name.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return users, nil
}

// SetAPIKeyHash replaces the stored credential hash.
func (s *SQLiteStore) SetAPIKeyHash(ctx context.Context, username, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET api_key_hash = ? WHERE username = ?`, hash, username)
	if err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return nil
}

// GetPreferences returns the stored preferences, or DefaultPreferences for
// owners that never registered. Unregistered owners are valid when auth is off.
func (s *SQLiteStore) GetPreferences(ctx context.Context, username string) (Preferences, error) {
	u, err := s.GetUser(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return Preferences{}, err
	}
	return u.Preferences, nil
}

// SetPreferences upserts preferences, creating a credential-less user row when needed.
func (s *SQLiteStore) SetPreferences(ctx context.Context, username string, p Preferences) error {
	if p.DueWindowDays < 0 {
		return fmt.Errorf("%w: due_window_days must not be negative", task.ErrValidation)
	}
	for _, l := range p.ParentRequirementLevels {
		if l == "" || !l.Valid() {
			return fmt.Errorf("%w: unknown requirement level %q", task.ErrValidation, l)
		}
	}
	include := 0
	if p.IncludeNoDueDate {
		include = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, api_key_hash, include_no_due_date, parent_requirement_levels, due_window_days, created_at)
		VALUES (?, '', ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			include_no_due_date = excluded.include_no_due_date,
			parent_requirement_levels = excluded.parent_requirement_levels,
			due_window_days = excluded.due_window_days
	`, username, include, joinLevels(p.ParentRequirementLevels), p.DueWindowDays, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}
