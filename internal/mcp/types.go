// Package mcp exposes the owner's tasks to MCP clients over stdio.
package mcp

// ListTasksParams are the list_tasks arguments. Omitted filters fall back
// to the owner's preferences.
type ListTasksParams struct {
	// DueFrom and DueTo bound the due date, YYYY-MM-DD, inclusive.
	DueFrom string `json:"due_from,omitempty"`
	DueTo   string `json:"due_to,omitempty"`

	// IncludeNoDueDate keeps undated tasks.
	IncludeNoDueDate *bool `json:"include_no_due_date,omitempty"`

	// ParentRequirementLevels is a comma separated list, e.g. "MANDATORY,OPTIONAL".
	ParentRequirementLevels string `json:"parent_requirement_levels,omitempty"`

	// Status limits results to one status: pending, done or snoozed.
	Status string `json:"status,omitempty"`
}

// SetTaskStatusParams are the set_task_status arguments.
type SetTaskStatusParams struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
}

// IngestEmailParams are the ingest_email arguments.
type IngestEmailParams struct {
	// Raw is the full RFC 5322 message including headers.
	Raw string `json:"raw"`
}

// ToolResult is what a handler produced. Error is set for failures the
// client should see and correct; Content is Markdown.
type ToolResult struct {
	Tool    string `json:"tool"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}
