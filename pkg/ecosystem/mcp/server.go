// Package mcp exposes webrun to MCP clients: validating, inspecting,
// compiling and replaying workflows over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with webrun tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"webrun",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("webrun/list",
			mcp.WithDescription("List workflows in a workflow directory"),
			mcp.WithString("dir", mcp.Required(), mcp.Description("Workflow directory")),
		),
		HandleList,
	)

	s.AddTool(
		mcp.NewTool("webrun/validate",
			mcp.WithDescription("Validate a webrun workflow YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("webrun/schema",
			mcp.WithDescription("Export the workflow JSON Schema"),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("webrun/compile",
			mcp.WithDescription("Compile a recorded browser trace into a workflow"),
			mcp.WithString("trace", mcp.Required(), mcp.Description("Path to the trace JSON file")),
			mcp.WithString("out", mcp.Required(), mcp.Description("Path for the compiled workflow YAML")),
			mcp.WithString("name", mcp.Description("Workflow name")),
			mcp.WithString("goal", mcp.Description("What the workflow accomplishes")),
		),
		HandleCompile,
	)

	s.AddTool(
		mcp.NewTool("webrun/run",
			mcp.WithDescription("Replay a workflow against a recorded scenario (offline, deterministic)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
			mcp.WithString("scenario", mcp.Required(), mcp.Description("Path to the scenario YAML")),
			mcp.WithObject("inputs", mcp.Description("Workflow input values")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("webrun/diagram",
			mcp.WithDescription("Render a workflow as a Mermaid flowchart"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
		),
		HandleDiagram,
	)

	return s
}
