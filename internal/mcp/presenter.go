package mcp

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/task"
)

var titleCase = cases.Title(language.English)

// FormatTaskList renders tasks as a compact Markdown list.
func FormatTaskList(tasks []task.Task) string {
	if len(tasks) == 0 {
		return "No tasks match."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Tasks (%d)\n", len(tasks)))
	for _, t := range tasks {
		sb.WriteString(formatTaskLine(t))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// FormatTask renders one task with every populated attribute.
func FormatTask(t task.Task) string {
	var sb strings.Builder
	sb.WriteString(formatTaskLine(t))
	sb.WriteString("\n")
	if t.Description != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", truncate(t.Description, 400)))
	}
	if t.ConsequenceIfIgnore != "" {
		sb.WriteString(fmt.Sprintf("\n**If ignored**: %s\n", t.ConsequenceIfIgnore))
	}
	return strings.TrimSpace(sb.String())
}

func formatTaskLine(t task.Task) string {
	due := "no due date"
	if t.DueDate != nil {
		due = "due " + t.DueDate.String()
	}
	line := fmt.Sprintf("- %s #%d **%s** (%s)", statusIcon(t.Status), t.ID, t.Title, due)

	var actions []string
	if a := actionLabel("parent", string(t.ParentAction), t.ParentRequirementLevel); a != "" {
		actions = append(actions, a)
	}
	if a := actionLabel("student", string(t.StudentAction), t.StudentRequirementLevel); a != "" {
		actions = append(actions, a)
	}
	if len(actions) > 0 {
		line += " · " + strings.Join(actions, ", ")
	}
	return line
}

func actionLabel(actor, action string, level task.RequirementLevel) string {
	if action == "" || action == string(task.ParentActionNone) {
		return ""
	}
	label := fmt.Sprintf("%s: %s", actor, titleCase.String(strings.ToLower(action)))
	if level != "" && level != task.RequirementNone {
		label += " [" + strings.ReplaceAll(strings.ToLower(string(level)), "_", " ") + "]"
	}
	return label
}

// FormatIngestResult summarizes one ingestion.
func FormatIngestResult(res pipeline.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Email #%d processed: %d task(s).", res.EmailID, res.TaskCount))
	if cost := res.Cost.TotalNanoUSD(); cost > 0 {
		sb.WriteString(fmt.Sprintf(" Cost $%.6f.", res.Cost.USD()))
	}
	if len(res.Tasks) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(FormatTaskList(res.Tasks))
	}
	return sb.String()
}

// FormatError returns a standardized Markdown error message.
func FormatError(message string) string {
	return fmt.Sprintf("## Error\n\n**Details**: %s", message)
}

// FormatValidationError returns a Markdown error for validation failures.
func FormatValidationError(field, message string) string {
	return fmt.Sprintf("## Validation Error\n\n**Field**: `%s`\n**Details**: %s", field, message)
}

func statusIcon(status task.Status) string {
	switch status {
	case task.StatusDone:
		return "[x]"
	case task.StatusSnoozed:
		return "[z]"
	default:
		return "[ ]"
	}
}

// truncate shortens a string to maxLen runes and adds ellipsis
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
