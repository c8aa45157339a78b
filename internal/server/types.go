package server

import "github.com/josephgoksu/taskmail/internal/task"

// IngestResponse is returned by POST /emails.
type IngestResponse struct {
	TaskCount int    `json:"task_count"`
	EmailID   int64  `json:"email_id,omitempty"`
	State     string `json:"state"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// TaskListResponse is returned by GET /tasks.
type TaskListResponse struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

// UpdateTaskRequest is the PATCH /tasks/{id} body. Absent fields are left alone.
type UpdateTaskRequest struct {
	Title                   *string `json:"title"`
	Description             *string `json:"description"`
	DueDate                 *string `json:"due_date"`
	ConsequenceIfIgnore     *string `json:"consequence_if_ignore"`
	ParentAction            *string `json:"parent_action"`
	ParentRequirementLevel  *string `json:"parent_requirement_level"`
	StudentAction           *string `json:"student_action"`
	StudentRequirementLevel *string `json:"student_requirement_level"`
	Status                  *string `json:"status"`
}

// ConsolidateResponse is returned by POST /consolidate.
type ConsolidateResponse struct {
	TaskCount int         `json:"task_count"`
	Tasks     []task.Task `json:"tasks"`
}
