// Package mcp exposes scenario validation, execution and assertion checks
// as MCP tools for AI agents.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/clirun/pkg/config"
)

// NewServer creates an MCP server with the clirun tools registered. Runs
// started through the server use the providers described by cfg.
func NewServer(version string, cfg config.Config) *server.MCPServer {
	s := server.NewMCPServer(
		"clirun",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{Config: cfg}

	s.AddTool(
		mcp.NewTool("clirun/validate",
			mcp.WithDescription("Validate a clirun scenario file (JSON or YAML)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the scenario file")),
		),
		h.Validate,
	)

	s.AddTool(
		mcp.NewTool("clirun/run",
			mcp.WithDescription("Run a clirun scenario and return the scenario result"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the scenario file")),
			mcp.WithObject("vars", mcp.Description("Variable overrides applied before the first step")),
		),
		h.Run,
	)

	s.AddTool(
		mcp.NewTool("clirun/assert",
			mcp.WithDescription("Evaluate assertions against captured client stdout"),
			mcp.WithString("stdout", mcp.Required(), mcp.Description("Client stdout (key=value lines)")),
			mcp.WithArray("assertions", mcp.Required(), mcp.Description("Assertion texts, e.g. \"response.result == 0000\""),
				mcp.WithStringItems()),
			mcp.WithNumber("exitCode", mcp.Description("Exit code of the captured run (default 0)")),
		),
		h.Assert,
	)

	s.AddTool(
		mcp.NewTool("clirun/schema",
			mcp.WithDescription("Export the clirun scenario JSON Schema"),
		),
		h.Schema,
	)

	return s
}
