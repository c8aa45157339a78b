package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/taskmail/internal/task"
)

var taskHeaders = []string{"ID", "DUE", "STATUS", "PARENT", "STUDENT", "TITLE"}

const (
	colDue    = 1
	colStatus = 2
	colParent = 3
)

// TaskTable lays tasks out one per row. maxWidth caps every column; 0 means
// no cap.
func TaskTable(tasks []task.Task, maxWidth int) *Table {
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			strconv.FormatInt(t.ID, 10),
			dueLabel(t.DueDate),
			string(t.Status),
			actionLabel(string(t.ParentAction), t.ParentRequirementLevel),
			actionLabel(string(t.StudentAction), t.StudentRequirementLevel),
			t.Title,
		}
	}
	return &Table{
		Headers:  taskHeaders,
		Rows:     rows,
		MaxWidth: maxWidth,
		CellStyle: func(row, col int, _ string) lipgloss.Style {
			t := tasks[row]
			switch col {
			case colStatus:
				return statusStyle(t.Status)
			case colParent:
				if t.ParentRequirementLevel == task.RequirementMandatory {
					return StyleWarning
				}
			case colDue:
				if t.DueDate == nil {
					return StyleSubtle
				}
			}
			return StyleText
		},
	}
}

// TaskDetail renders every populated field of t.
func TaskDetail(t task.Task) string {
	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(fmt.Sprintf("#%d %s", t.ID, t.Title)) + "\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		sb.WriteString(StyleSubtle.Render(padRight(label+":", 14)) + value + "\n")
	}
	field("Status", statusStyle(t.Status).Render(string(t.Status)))
	field("Due", dueLabel(t.DueDate))
	field("Parent", actionLabel(string(t.ParentAction), t.ParentRequirementLevel))
	field("Student", actionLabel(string(t.StudentAction), t.StudentRequirementLevel))
	field("Description", t.Description)
	field("If ignored", t.ConsequenceIfIgnore)
	if t.EmailID > 0 {
		field("Email", strconv.FormatInt(t.EmailID, 10))
	}
	return sb.String()
}

func dueLabel(d *task.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func actionLabel(action string, level task.RequirementLevel) string {
	if action == "" || action == string(task.ParentActionNone) {
		return "-"
	}
	label := strings.ToLower(action)
	if level != "" && level != task.RequirementNone {
		label += " (" + strings.ToLower(strings.ReplaceAll(string(level), "_", " ")) + ")"
	}
	return label
}

func statusStyle(s task.Status) lipgloss.Style {
	switch s {
	case task.StatusDone:
		return StyleSuccess
	case task.StatusSnoozed:
		return StyleSubtle
	default:
		return StyleText
	}
}
