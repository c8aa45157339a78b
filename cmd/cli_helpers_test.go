package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskmail/internal/task"
)

func newListCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "list"}
	addListFlags(c.Flags())
	require.NoError(t, c.ParseFlags(args))
	return c
}

func newUpdateCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "update"}
	addUpdateFlags(c.Flags())
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "#12"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 12}, ids)

	for _, bad := range []string{"abc", "0", "-4"} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestListQueryLeavesUnsetFlagsNil(t *testing.T) {
	q, err := listQuery(newListCommand(t))
	require.NoError(t, err)
	assert.Nil(t, q.DueFrom)
	assert.Nil(t, q.DueTo)
	assert.Nil(t, q.IncludeNoDueDate, "an unset flag must not override preferences")
	assert.Empty(t, q.ParentRequirementLevels)
	assert.Empty(t, q.Statuses)
}

func TestListQueryParsesFlags(t *testing.T) {
	q, err := listQuery(newListCommand(t,
		"--due-from", "2024-09-01",
		"--due-to", "2024-09-30",
		"--include-no-due-date=false",
		"--level", "mandatory,OPTIONAL",
		"--status", "Done",
	))
	require.NoError(t, err)

	require.NotNil(t, q.DueFrom)
	assert.Equal(t, task.NewDate(2024, 9, 1), *q.DueFrom)
	require.NotNil(t, q.DueTo)
	assert.Equal(t, task.NewDate(2024, 9, 30), *q.DueTo)
	require.NotNil(t, q.IncludeNoDueDate)
	assert.False(t, *q.IncludeNoDueDate)
	assert.Equal(t, []task.RequirementLevel{task.RequirementMandatory, task.RequirementOptional}, q.ParentRequirementLevels)
	assert.Equal(t, []task.Status{task.StatusDone}, q.Statuses)
}

func TestListQueryRejectsBadInput(t *testing.T) {
	_, err := listQuery(newListCommand(t, "--due-from", "2024-02-30"))
	assert.True(t, errors.Is(err, task.ErrValidation))

	_, err = listQuery(newListCommand(t, "--level", "URGENT"))
	assert.True(t, errors.Is(err, task.ErrValidation))

	_, err = listQuery(newListCommand(t, "--status", "archived"))
	assert.True(t, errors.Is(err, task.ErrValidation))
}

func TestUpdateChanges(t *testing.T) {
	c, err := updateChanges(newUpdateCommand(t))
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	c, err = updateChanges(newUpdateCommand(t,
		"--title", "Sign permission slip",
		"--due", "2024-10-04",
		"--parent-action", "sign",
		"--parent-level", "mandatory",
		"--status", "snoozed",
	))
	require.NoError(t, err)
	require.NotNil(t, c.Title)
	assert.Equal(t, "Sign permission slip", *c.Title)
	require.NotNil(t, c.DueDate)
	assert.Equal(t, task.NewDate(2024, 10, 4), *c.DueDate)
	require.NotNil(t, c.ParentAction)
	assert.Equal(t, task.ParentActionSign, *c.ParentAction)
	require.NotNil(t, c.ParentRequirementLevel)
	assert.Equal(t, task.RequirementMandatory, *c.ParentRequirementLevel)
	require.NotNil(t, c.Status)
	assert.Equal(t, task.StatusSnoozed, *c.Status)
	assert.Nil(t, c.Description)
}

func TestUpdateChangesEmptyDueClears(t *testing.T) {
	c, err := updateChanges(newUpdateCommand(t, "--due", ""))
	require.NoError(t, err)
	assert.True(t, c.ClearDueDate)
	assert.Nil(t, c.DueDate)
}

func TestReadEmail(t *testing.T) {
	orig := appFs
	appFs = afero.NewMemMapFs()
	defer func() { appFs = orig }()

	require.NoError(t, afero.WriteFile(appFs, "/inbox/trip.eml", []byte("Subject: Trip\r\n\r\nbody"), 0o644))

	c := &cobra.Command{}
	raw, err := readEmail(c, "/inbox/trip.eml")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Trip")

	c.SetIn(bytes.NewBufferString("Subject: From stdin\r\n\r\nx"))
	raw, err = readEmail(c, "-")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "From stdin")

	_, err = readEmail(c, "/inbox/missing.eml")
	assert.Error(t, err)
}

func TestRedactSecrets(t *testing.T) {
	settings := map[string]any{
		"llm": map[string]any{
			"provider": "openai",
			"apikey":   "sk-1234567890abcdef",
			"apikeys":  map[string]any{"anthropic": "sk-ant-secret"},
		},
		"auth": map[string]any{"jwtsecret": "short"},
	}
	out := redactSecrets(settings)

	llmSettings := out["llm"].(map[string]any)
	assert.Equal(t, "openai", llmSettings["provider"])
	assert.Equal(t, "sk-1****cdef", llmSettings["apikey"])
	assert.Equal(t, map[string]any{"anthropic": "****"}, llmSettings["apikeys"])
	assert.Equal(t, "****", out["auth"].(map[string]any)["jwtsecret"])
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, int64(60), parseValue("60"))
	assert.Equal(t, 0.5, parseValue("0.5"))
	assert.Equal(t, "anthropic", parseValue("anthropic"))
}
