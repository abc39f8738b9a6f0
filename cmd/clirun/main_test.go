package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/clirun/pkg/config"
	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/logging"
	"github.com/ormasoftchile/clirun/pkg/report"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

func TestParseVars(t *testing.T) {
	got, err := parseVars([]string{"MID=M0001", "Q=a=b", "EMPTY="})
	if err != nil {
		t.Fatal(err)
	}
	if got["MID"] != "M0001" || got["Q"] != "a=b" || got["EMPTY"] != "" {
		t.Errorf("parseVars = %v", got)
	}
	if _, err := parseVars([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}
	if _, err := parseVars([]string{"=x"}); err == nil {
		t.Error("expected error for empty key")
	}
}

const waitScenario = `{
  "info": {"name": "Wait Twice"},
  "variables": [{"key": "WAIT", "value": "1"}],
  "requests": [
    {"name": "first", "type": "sleep", "arguments": {"duration": "{{WAIT}}"},
     "extractors": [{"pattern": "skipped", "variable": "SKIPPED"}],
     "tests": [{"name": "slept", "assertion": "SKIPPED == false"}]},
    {"name": "gated", "type": "sleep", "arguments": {"duration": "1", "when": "NEVER_SET"},
     "tests": [{"name": "never passes", "assertion": "SKIPPED == true"}]}
  ],
  "stopOnError": false
}`

func testPlan(t *testing.T) runPlan {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return runPlan{
		Config:  config.Default(),
		Formats: []report.Format{report.FormatJSON, report.FormatXML},
		OutDir:  t.TempDir(),
		Logger:  logging.Discard(),
		Bus:     bus,
	}
}

func loadWait(t *testing.T) (string, *schema.Scenario) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wait.json")
	if err := os.WriteFile(path, []byte(waitScenario), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := schema.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return path, sc
}

func TestRunScenario_WritesResultAndReports(t *testing.T) {
	plan := testPlan(t)
	path, sc := loadWait(t)

	o := runScenario(context.Background(), plan, path, sc)
	if o.Err != nil {
		t.Fatal(o.Err)
	}
	if o.Result.Summary.Passed != 1 || o.Result.Summary.Failed != 1 {
		t.Errorf("summary = %+v", o.Result.Summary)
	}
	if len(o.Written) != 3 {
		t.Fatalf("written = %v", o.Written)
	}
	if !strings.HasSuffix(o.Written[0], ".result.json") {
		t.Errorf("first file = %s", o.Written[0])
	}
	loaded, err := runtime.LoadResult(o.Written[0])
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != o.Result.RunID {
		t.Errorf("run id = %q, want %q", loaded.RunID, o.Result.RunID)
	}
	if !strings.HasPrefix(filepath.Base(o.Written[1]), "wait-twice-") {
		t.Errorf("report name = %s", o.Written[1])
	}
}

func TestRunScenario_NoReport(t *testing.T) {
	plan := testPlan(t)
	plan.NoReport = true
	path, sc := loadWait(t)

	o := runScenario(context.Background(), plan, path, sc)
	if o.Report == nil {
		t.Fatal("report model is built even without files")
	}
	if len(o.Written) != 0 {
		t.Errorf("written = %v", o.Written)
	}
	entries, _ := os.ReadDir(plan.OutDir)
	if len(entries) != 0 {
		t.Errorf("out dir has %d entries", len(entries))
	}
}

func TestPrintOutcome(t *testing.T) {
	plan := testPlan(t)
	plan.NoReport = true
	path, sc := loadWait(t)
	o := runScenario(context.Background(), plan, path, sc)

	var buf bytes.Buffer
	printOutcome(&buf, o)
	out := buf.String()
	for _, want := range []string{"Wait Twice", "first", "gated", "never passes", "FAILED", "1 passed, 1 failed of 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	e := events.Event{Type: events.StepError, Step: 1, Name: "cancel", Message: "timed out after 1s"}
	if got := formatEvent(e); !strings.Contains(got, "[2] cancel: timed out after 1s") {
		t.Errorf("formatEvent = %q", got)
	}
	e = events.Event{Type: events.ScenarioStart, Step: events.NoStep, Name: "pay", RunID: "r1"}
	if got := formatEvent(e); got != "▶ pay (r1)" {
		t.Errorf("formatEvent = %q", got)
	}
}

func TestRunScenario_ReplaysSavedResult(t *testing.T) {
	plan := testPlan(t)
	path, sc := loadWait(t)
	first := runScenario(context.Background(), plan, path, sc)
	if first.Err != nil {
		t.Fatal(first.Err)
	}

	plan.Replay = first.Written[0]
	plan.NoReport = true
	_, again := loadWait(t)
	second := runScenario(context.Background(), plan, path, again)
	if second.Err != nil {
		t.Fatal(second.Err)
	}
	if second.Result.Summary.Passed != 1 || second.Result.Summary.Failed != 1 {
		t.Errorf("replayed summary = %+v", second.Result.Summary)
	}
	if !second.Result.Steps[1].Skipped {
		t.Error("gated step should replay as skipped")
	}
}
