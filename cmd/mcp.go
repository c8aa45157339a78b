package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the task tools to an MCP client over stdio",
	Long: `Start an MCP server on stdin/stdout exposing list_tasks, set_task_status and
ingest_email for one owner (--owner, or mcp.owner in the config file).

Register it in an MCP client as:

  {"command": "taskmail", "args": ["mcp", "--owner", "mom"]}

Logs go to stderr; stdout carries JSON-RPC only.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := openApp("mcp")
	if err != nil {
		return err
	}
	defer a.Close()

	owner, err := ownerOrDefault(a.Config.MCP.Owner)
	if err != nil {
		return err
	}
	orch, err := a.Pipeline(cmd.Context())
	if err != nil {
		return err
	}

	svc := mcp.NewService(a.Store, orch, owner)
	return mcp.Run(cmd.Context(), mcp.NewServer(svc, version, a.Logger.With("component", "mcp")))
}
