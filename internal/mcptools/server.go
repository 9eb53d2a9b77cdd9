// Package mcptools exposes read-only workflow inspection as MCP tools so an
// agent can ask where a document stands without running a step.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server with the inspection tools registered.
func NewServer(svc *Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "orchestrator",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_status",
		Description: "Classify every workflow target of a document and report the next target a run would work on. Invalid documents report their structural errors instead.",
	}, svc.WorkflowStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_document",
		Description: "Check a document's section, lock, table and workflow markers. Returns each structural error with its kind and line numbers.",
	}, svc.ValidateDocument)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_completion",
		Description: "Run the completion checks (placeholders, open questions, review gates, structure, targets). Strict mode treats deferred questions as blocking.",
	}, svc.EvaluateCompletion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_questions",
		Description: "List rows of the document's open questions table, optionally filtered by target section and status.",
	}, svc.ListQuestions)

	return server
}

// RunStdio serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
