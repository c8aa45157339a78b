package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/taskmail/internal/task"
)

func TestTable_ColumnWidths(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "Name", "Status"},
		Rows: [][]string{
			{"12", "First item", "pending"},
			{"345", "Second item with longer name", "done"},
		},
	}

	widths := table.ColumnWidths()

	assert.Equal(t, 3, widths[0])
	assert.Equal(t, 28, widths[1])
	assert.Equal(t, 7, widths[2])
}

func TestTable_ColumnWidths_MaxWidth(t *testing.T) {
	table := &Table{
		Headers:  []string{"ID", "Description"},
		Rows:     [][]string{{"a", "This is a very long description that should be truncated"}},
		MaxWidth: 20,
	}

	widths := table.ColumnWidths()

	assert.Equal(t, 2, widths[0])
	assert.Equal(t, 20, widths[1])
}

func TestTable_Render(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "Title"},
		Rows: [][]string{
			{"1", "Sign permission slip"},
			{"2", "Picture day"},
		},
	}

	output := table.Render()

	assert.Contains(t, output, "Title")
	assert.Contains(t, output, "Sign permission slip")
	assert.Contains(t, output, "Picture day")
	assert.Contains(t, output, "─")
}

func TestTable_Render_Empty(t *testing.T) {
	assert.Empty(t, (&Table{}).Render())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "This is…", Truncate("This is way too long", 8))
	assert.Equal(t, "Café…", Truncate("Café au lait", 5))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestTaskTable(t *testing.T) {
	due := task.NewDate(2025, 3, 14)
	tasks := []task.Task{
		{
			ID: 7, Title: "Return field trip form", DueDate: &due, Status: task.StatusPending,
			ParentAction: task.ParentActionSign, ParentRequirementLevel: task.RequirementMandatory,
			StudentAction: task.StudentActionSubmit, StudentRequirementLevel: task.RequirementMandatory,
		},
		{ID: 8, Title: "Bake sale", Status: task.StatusDone, ParentAction: task.ParentActionNone},
	}

	out := TaskTable(tasks, 0).Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[2], "2025-03-14")
	assert.Contains(t, lines[2], "sign (mandatory)")
	assert.Contains(t, lines[3], "Bake sale")
	assert.Contains(t, lines[3], "-")
}

func TestTaskDetail_SkipsEmptyFields(t *testing.T) {
	out := TaskDetail(task.Task{ID: 3, Title: "Picture day", Status: task.StatusPending, Description: "Wear the blue shirt"})
	assert.Contains(t, out, "#3 Picture day")
	assert.Contains(t, out, "Wear the blue shirt")
	assert.NotContains(t, out, "If ignored")
	assert.NotContains(t, out, "Email")
}

func TestColumnLimit_NotATerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, ColumnLimit(&buf))
	assert.False(t, IsTerminal(&buf))
}
