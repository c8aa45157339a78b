package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/task"
)

// Store is what the task tools read and write.
type Store interface {
	ListTasks(ctx context.Context, owner string) ([]task.Task, error)
	UpdateTask(ctx context.Context, id int64, owner string, changes task.Changes) (task.Task, error)
	GetPreferences(ctx context.Context, owner string) (memory.Preferences, error)
}

// Ingester runs the pipeline for ingest_email.
type Ingester interface {
	Ingest(ctx context.Context, owner string, raw []byte) (pipeline.Result, error)
}

// Service binds the tools to one owner. MCP clients are local and
// unauthenticated, so the owner comes from configuration.
type Service struct {
	store    Store
	ingester Ingester
	owner    string
	now      func() time.Time
}

// NewService creates the tool backend for owner.
func NewService(store Store, ingester Ingester, owner string) *Service {
	return &Service{store: store, ingester: ingester, owner: owner, now: time.Now}
}

// HandleListTasks returns the owner's tasks after filtering.
func (s *Service) HandleListTasks(ctx context.Context, params ListTasksParams) (*ToolResult, error) {
	result := &ToolResult{Tool: "list_tasks"}

	q, field, err := params.query()
	if err != nil {
		result.Error = FormatValidationError(field, err.Error())
		return result, nil
	}
	prefs, err := s.store.GetPreferences(ctx, s.owner)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, s.owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	filtered, err := task.Filter(tasks, q.Resolve(prefs.FilterOptions(task.DateOf(s.now()))))
	if err != nil {
		result.Error = FormatValidationError("due_from", err.Error())
		return result, nil
	}

	result.Content = FormatTaskList(filtered)
	return result, nil
}

func (p ListTasksParams) query() (task.ListQuery, string, error) {
	var q task.ListQuery
	if p.DueFrom != "" {
		d, err := task.ParseDate(p.DueFrom)
		if err != nil {
			return q, "due_from", err
		}
		q.DueFrom = &d
	}
	if p.DueTo != "" {
		d, err := task.ParseDate(p.DueTo)
		if err != nil {
			return q, "due_to", err
		}
		q.DueTo = &d
	}
	q.IncludeNoDueDate = p.IncludeNoDueDate
	if p.ParentRequirementLevels != "" {
		levels, err := task.ParseRequirementLevels(p.ParentRequirementLevels)
		if err != nil {
			return q, "parent_requirement_levels", err
		}
		q.ParentRequirementLevels = levels
	}
	if p.Status != "" {
		st, err := task.ParseStatus(p.Status)
		if err != nil {
			return q, "status", err
		}
		q.Statuses = []task.Status{st}
	}
	return q, "", nil
}

// HandleSetTaskStatus marks a task done, snoozed or pending.
func (s *Service) HandleSetTaskStatus(ctx context.Context, params SetTaskStatusParams) (*ToolResult, error) {
	result := &ToolResult{Tool: "set_task_status"}

	if params.TaskID <= 0 {
		result.Error = FormatValidationError("task_id", "task_id is required")
		return result, nil
	}
	st, err := task.ParseStatus(params.Status)
	if err != nil {
		result.Error = FormatValidationError("status", err.Error())
		return result, nil
	}

	updated, err := s.store.UpdateTask(ctx, params.TaskID, s.owner, task.Changes{Status: &st})
	if errors.Is(err, memory.ErrNotFound) {
		result.Error = FormatError(fmt.Sprintf("task %d not found", params.TaskID))
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	result.Content = FormatTask(updated)
	return result, nil
}

// HandleIngestEmail runs the full pipeline on a pasted message.
func (s *Service) HandleIngestEmail(ctx context.Context, params IngestEmailParams) (*ToolResult, error) {
	result := &ToolResult{Tool: "ingest_email"}

	if strings.TrimSpace(params.Raw) == "" {
		result.Error = FormatValidationError("raw", "raw email is required")
		return result, nil
	}

	res, err := s.ingester.Ingest(ctx, s.owner, []byte(params.Raw))
	if err != nil {
		var failure *pipeline.Failure
		if errors.As(err, &failure) && failure.Reason != pipeline.ReasonStoreFailed {
			result.Error = FormatError(fmt.Sprintf("%s: %v", failure.Reason, failure.Err))
			return result, nil
		}
		return nil, err
	}

	result.Content = FormatIngestResult(res)
	return result, nil
}
