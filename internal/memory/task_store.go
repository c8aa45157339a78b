package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/taskmail/internal/task"
)

const taskColumns = `id, owner, title, description, due_date, consequence_if_ignore,
	parent_action, parent_requirement_level, student_action, student_requirement_level,
	status, email_id, created_at, updated_at`

// listOrder puts undated tasks last, then ascending due date, then insertion order.
const listOrder = `ORDER BY (due_date IS NULL), due_date ASC, id ASC`

func scanTask(sc rowScanner) (task.Task, error) {
	var (
		t                    task.Task
		dueDate              sql.NullString
		emailID              sql.NullInt64
		createdAt, updatedAt string
		status               string
	)
	err := sc.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &dueDate, &t.ConsequenceIfIgnore,
		&t.ParentAction, &t.ParentRequirementLevel, &t.StudentAction, &t.StudentRequirementLevel,
		&status, &emailID, &createdAt, &updatedAt)
	if err != nil {
		return task.Task{}, err
	}
	t.DueDate = parseNullDate(dueDate)
	t.Status = task.Status(status)
	if emailID.Valid {
		t.EmailID = emailID.Int64
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// insertTaskTx inserts t for owner and fills in its id and timestamps.
// It is the single insert path for AddTask, AddTasks and ReplaceTasks.
func insertTaskTx(ctx context.Context, tx txExecutor, owner string, t *task.Task, now time.Time) error {
	t.Owner = owner
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t.CreatedAt, t.UpdatedAt = now, now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (
			owner, title, description, due_date, consequence_if_ignore,
			parent_action, parent_requirement_level, student_action, student_requirement_level,
			status, email_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, owner, t.Title, t.Description, nullDate(t.DueDate), t.ConsequenceIfIgnore,
		t.ParentAction, t.ParentRequirementLevel, t.StudentAction, t.StudentRequirementLevel,
		t.Status, nullInt64(t.EmailID), formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert task %q: %w", t.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	t.ID = id
	return nil
}

// AddTask persists t for owner with status pending unless t sets one, and
// returns the stored task with its assigned id.
func (s *SQLiteStore) AddTask(ctx context.Context, owner string, t task.Task) (task.Task, error) {
	if err := insertTaskTx(ctx, s.db, owner, &t, time.Now().UTC()); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// ListTasks returns every task for owner: dated tasks ascending by due date,
// undated tasks last, ties in insertion order.
func (s *SQLiteStore) ListTasks(ctx context.Context, owner string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE owner = ? `+listOrder, owner)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns one task, or ErrNotFound when id does not belong to owner.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64, owner string) (task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner = ?`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask applies only the fields set in changes.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id int64, owner string, changes task.Changes) (task.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner = ?`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("get task: %w", err)
	}

	if err := changes.Apply(&t); err != nil {
		return task.Task{}, err
	}
	t.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, due_date = ?, consequence_if_ignore = ?,
			parent_action = ?, parent_requirement_level = ?, student_action = ?, student_requirement_level = ?,
			status = ?, updated_at = ?
		WHERE id = ? AND owner = ?
	`, t.Title, t.Description, nullDate(t.DueDate), t.ConsequenceIfIgnore,
		t.ParentAction, t.ParentRequirementLevel, t.StudentAction, t.StudentRequirementLevel,
		t.Status, formatTime(t.UpdatedAt), id, owner)
	if err != nil {
		return task.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return task.Task{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// DeleteAll clears tasks for owner, or for every owner when owner is empty.
// It returns the number of rows removed.
func (s *SQLiteStore) DeleteAll(ctx context.Context, owner string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if owner == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM tasks`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM tasks WHERE owner = ?`, owner)
	}
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func insertTasksTx(ctx context.Context, tx txExecutor, owner string, tasks []task.Task) ([]task.Task, error) {
	now := time.Now().UTC()
	stored := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if err := insertTaskTx(ctx, tx, owner, &t, now); err != nil {
			return nil, err
		}
		stored = append(stored, t)
	}
	return stored, nil
}

// AddTasks inserts tasks for owner in one transaction: either all are stored
// or none are.
func (s *SQLiteStore) AddTasks(ctx context.Context, owner string, tasks []task.Task) ([]task.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := insertTasksTx(ctx, tx, owner, tasks)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// ReplaceTasks swaps owner's whole task set for tasks in one transaction, so
// readers see either the old set or the new one. Returns the stored tasks.
func (s *SQLiteStore) ReplaceTasks(ctx context.Context, owner string, tasks []task.Task) ([]task.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner = ?`, owner); err != nil {
		return nil, fmt.Errorf("clear tasks: %w", err)
	}

	stored, err := insertTasksTx(ctx, tx, owner, tasks)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// CountTasks returns how many tasks owner has.
func (s *SQLiteStore) CountTasks(ctx context.Context, owner string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE owner = ?`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// ListOwners returns owners that currently hold at least one task.
func (s *SQLiteStore) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner FROM tasks ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return owners, nil
}
