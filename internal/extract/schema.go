package extract

import "github.com/josephgoksu/taskmail/internal/task"

// SchemaName identifies the response format sent to the model.
const SchemaName = "school_tasks"

func enumValues[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// TaskSchema returns the JSON Schema every completion must satisfy: an object
// with a "tasks" array whose items require only a title. Unknown keys are
// forbidden at both levels.
func TaskSchema() map[string]any {
	levels := enumValues(task.RequirementLevels)

	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"title"},
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short topic-only label for grouping. Avoid verbs.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Details of what is needed, including sub-items, later dates and attire notes.",
			},
			"due_date": map[string]any{
				"type":        "string",
				"format":      "date",
				"description": "YYYY-MM-DD deadline if explicitly stated; otherwise omit.",
			},
			"consequence_if_ignore": map[string]any{
				"type":        "string",
				"description": "What happens if the task is ignored. Infer it when not stated.",
			},
			"parent_action": map[string]any{
				"type":        "string",
				"enum":        enumValues(task.ParentActions),
				"description": "Single most important parent action.",
			},
			"parent_requirement_level": map[string]any{
				"type": "string",
				"enum": levels,
			},
			"student_action": map[string]any{
				"type":        "string",
				"enum":        enumValues(task.StudentActions),
				"description": "Single most important student action.",
			},
			"student_requirement_level": map[string]any{
				"type": "string",
				"enum": levels,
			},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"tasks"},
		"properties": map[string]any{
			"tasks": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
	}
}
