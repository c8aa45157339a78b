package app

import (
	"context"
	"fmt"
	"time"

	"github.com/josephgoksu/taskmail/internal/task"
)

// TaskApp provides the task operations the CLI exposes.
type TaskApp struct {
	ctx *Context
	now func() time.Time
}

// NewTaskApp creates a new task application service.
func NewTaskApp(ctx *Context) *TaskApp {
	return &TaskApp{ctx: ctx, now: time.Now}
}

// List returns owner's tasks narrowed by q. Filters q leaves unset come from
// the owner's saved preferences.
func (a *TaskApp) List(ctx context.Context, owner string, q task.ListQuery) ([]task.Task, error) {
	prefs, err := a.ctx.Store.GetPreferences(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	tasks, err := a.ctx.Store.ListTasks(ctx, owner)
	if err != nil {
		return nil, err
	}
	return task.Filter(tasks, q.Resolve(prefs.FilterOptions(task.DateOf(a.now()))))
}

// Get returns one task.
func (a *TaskApp) Get(ctx context.Context, owner string, id int64) (task.Task, error) {
	return a.ctx.Store.GetTask(ctx, id, owner)
}

// SetStatus marks a task pending, done or snoozed.
func (a *TaskApp) SetStatus(ctx context.Context, owner string, id int64, status task.Status) (task.Task, error) {
	return a.Update(ctx, owner, id, task.Changes{Status: &status})
}

// Update edits a task in place.
func (a *TaskApp) Update(ctx context.Context, owner string, id int64, changes task.Changes) (task.Task, error) {
	if changes.IsEmpty() {
		return task.Task{}, fmt.Errorf("%w: no fields to update", task.ErrValidation)
	}
	unlock := a.ctx.Locks.Lock(owner)
	defer unlock()
	return a.ctx.Store.UpdateTask(ctx, id, owner, changes)
}

// Clear deletes every task owner has and returns how many went.
func (a *TaskApp) Clear(ctx context.Context, owner string) (int64, error) {
	unlock := a.ctx.Locks.Lock(owner)
	defer unlock()
	return a.ctx.Store.DeleteAll(ctx, owner)
}
