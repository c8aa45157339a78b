package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskmail/internal/task"
)

func TestRootCmd(t *testing.T) {
	b := bytes.NewBufferString("")
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs([]string{"--help"})

	err := rootCmd.Execute()
	assert.NoError(t, err)

	output := b.String()
	assert.Contains(t, output, "school emails into a household task list")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Commands:")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "0.1.0", GetVersion())
}

// runCLI executes the root command against a scratch data directory.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	viper.Set("data.dir", dataDir)
	t.Cleanup(func() {
		viper.Set("data.dir", "")
		viper.Set("json", false)
		viper.Set("owner", "")
	})

	b := bytes.NewBufferString("")
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return b.String(), err
}

func TestTasksListEmptyOwner(t *testing.T) {
	viper.Set("json", true)
	viper.Set("owner", "mom")

	out, err := runCLI(t, t.TempDir(), "tasks", "list")
	require.NoError(t, err)

	var tasks []task.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	assert.Empty(t, tasks)
}

func TestTasksListRequiresOwner(t *testing.T) {
	viper.Set("owner", "")
	_, err := runCLI(t, t.TempDir(), "tasks", "list")
	assert.ErrorIs(t, err, errMissingOwner)
}

func TestUserAddAndList(t *testing.T) {
	dir := t.TempDir()
	viper.Set("json", true)

	out, err := runCLI(t, dir, "user", "add", "mom")
	require.NoError(t, err)
	var created struct {
		APIKey string `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.NotEmpty(t, created.APIKey)

	viper.Set("json", true)
	out, err = runCLI(t, dir, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "mom")
}
