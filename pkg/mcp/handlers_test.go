package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/clirun/pkg/config"
	"github.com/ormasoftchile/clirun/pkg/runtime"
)

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("expected content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return tc.Text
}

func TestValidate_MissingPath(t *testing.T) {
	h := &Handlers{Config: config.Default()}
	res, err := h.Validate(context.Background(), call(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error for missing path")
	}
}

func TestValidate_Fixtures(t *testing.T) {
	h := &Handlers{Config: config.Default()}
	res, err := h.Validate(context.Background(), call(map[string]any{"path": "../../testdata/valid/payment.json"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("payment.json should be valid: %s", text(t, res))
	}
	if !strings.Contains(text(t, res), "is valid") {
		t.Errorf("text = %q", text(t, res))
	}

	res, err = h.Validate(context.Background(), call(map[string]any{"path": "../../testdata/invalid/bad-rules.json"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("bad-rules.json should be rejected")
	}
}

func TestSchema(t *testing.T) {
	h := &Handlers{Config: config.Default()}
	res, err := h.Schema(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatal("expected schema")
	}
	if !strings.Contains(text(t, res), "requests") {
		t.Error("schema missing requests")
	}
}

func TestAssert(t *testing.T) {
	h := &Handlers{Config: config.Default()}
	res, err := h.Assert(context.Background(), call(map[string]any{
		"stdout":     "RESULT=0000\nAPPROVAL_NO=778899\n",
		"assertions": []any{"response.result == 0000", "response.approval_no exists"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("assertions should pass: %s", text(t, res))
	}

	res, err = h.Assert(context.Background(), call(map[string]any{
		"stdout":     "RESULT=0000\n",
		"assertions": []any{"response.result == 9999"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("a failing assertion marks the result as an error")
	}
}

func TestAssert_RequiresAssertions(t *testing.T) {
	h := &Handlers{Config: config.Default()}
	res, err := h.Assert(context.Background(), call(map[string]any{"stdout": "A=1"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error without assertions")
	}
}

func TestRun_SleepScenarioWithVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wait.json")
	doc := `{
  "info": {"name": "wait"},
  "variables": [{"key": "WAIT", "value": "5000"}],
  "requests": [{
    "name": "pause",
    "type": "sleep",
    "arguments": {"duration": "{{WAIT}}"},
    "extractors": [{"pattern": "skipped", "variable": "SKIPPED"}],
    "tests": [{"name": "not skipped", "assertion": "SKIPPED == false"}]
  }]
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &Handlers{Config: config.Default()}
	res, err := h.Run(context.Background(), call(map[string]any{
		"path": path,
		"vars": map[string]any{"WAIT": 1},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("run failed: %s", text(t, res))
	}
	var out runtime.ScenarioResult
	if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Summary.Passed != 1 || out.Source != path {
		t.Errorf("summary = %+v source = %q", out.Summary, out.Source)
	}
}
