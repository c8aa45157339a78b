package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName identifies this implementation to clients.
const ServerName = "taskmail-mcp"

// NewServer registers the task tools on a new MCP server.
func NewServer(svc *Service, version string, logger *slog.Logger) *mcpsdk.Server {
	impl := &mcpsdk.Implementation{Name: ServerName, Version: version}
	server := mcpsdk.NewServer(impl, &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			logger.Info("mcp client connected", "owner", svc.owner)
		},
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_tasks",
		Description: "List the owner's household tasks from school emails. Filters default to the owner's saved preferences. Dates are YYYY-MM-DD.",
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ListTasksParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(svc.HandleListTasks(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "set_task_status",
		Description: "Set a task's status to pending, done or snoozed.",
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[SetTaskStatusParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(svc.HandleSetTaskStatus(ctx, params.Arguments))
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "ingest_email",
		Description: "Extract tasks from a raw school email (full RFC 5322 text with headers) and store them, skipping duplicates.",
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[IngestEmailParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(svc.HandleIngestEmail(ctx, params.Arguments))
	})

	return server
}

// Run serves over stdio until the client disconnects. stdout carries
// JSON-RPC only, so logs must go to stderr.
func Run(ctx context.Context, server *mcpsdk.Server) error {
	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// toolResponse turns a handler result into an MCP result. Tool errors are
// returned in the result with IsError so the model can see and correct them.
func toolResponse(result *ToolResult, err error) (*mcpsdk.CallToolResultFor[any], error) {
	if err != nil {
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: FormatError(err.Error())}},
			IsError: true,
		}, nil
	}
	if result.Error != "" {
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Error}},
			IsError: true,
		}, nil
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Content}},
	}, nil
}
