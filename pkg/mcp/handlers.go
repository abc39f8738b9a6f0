package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/clirun/pkg/assertions"
	"github.com/ormasoftchile/clirun/pkg/config"
	"github.com/ormasoftchile/clirun/pkg/logging"
	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Handlers implements the clirun MCP tools.
type Handlers struct {
	Config config.Config
}

// Validate implements the clirun/validate tool.
func (h *Handlers) Validate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	sc, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps)", sc.Info.Name, len(sc.Requests))
	if len(errs) > 0 {
		msg += "\n" + formatErrors(errs)
	}
	return textResult(msg), nil
}

// Schema implements the clirun/schema tool.
func (h *Handlers) Schema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// Run implements the clirun/run tool.
func (h *Handlers) Run(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	sc, err := schema.LoadFile(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if raw, ok := req.GetArguments()["vars"].(map[string]any); ok {
		for k, v := range raw {
			sc.SetVariable(k, fmt.Sprint(v))
		}
	}

	eng, err := runtime.New(sc, runtime.Options{
		Providers: h.Config.Providers(),
		Logger:    logging.Discard(),
		Source:    path,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	res, runErr := eng.Run(ctx)
	if res == nil {
		return errorResult(runErr.Error()), nil
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: !res.Success,
	}, nil
}

// Assert implements the clirun/assert tool.
func (h *Handlers) Assert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	texts := req.GetStringSlice("assertions", nil)
	if len(texts) == 0 {
		return errorResult("assertions argument is required"), nil
	}
	raw := response.New(req.GetInt("exitCode", 0), req.GetString("stdout", ""), "", 0)
	actx := assertions.NewContext(nil, raw)

	results := make([]*assertions.Result, 0, len(texts))
	failed := false
	for _, text := range texts {
		r := assertions.Evaluate(text, actx)
		if !r.Passed {
			failed = true
		}
		results = append(results, r)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: failed,
	}, nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var sb strings.Builder
	for _, e := range errs {
		fmt.Fprintf(&sb, "%s %s\n", e.Severity, e.Error())
	}
	return strings.TrimRight(sb.String(), "\n")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}
