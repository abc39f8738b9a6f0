package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

func testScenario() *schema.Scenario {
	return &schema.Scenario{
		Info: schema.Info{Name: "payment"},
		Requests: []schema.Step{
			{Name: "approve {{AMOUNT}}"},
			{Name: "wait", Type: schema.StepSleep},
			{Name: "cancel"},
		},
	}
}

func TestModel_InitFromScenario(t *testing.T) {
	m := NewModel(testScenario(), nil, nil)
	steps := m.Steps()
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].Type != "process" || steps[1].Type != "sleep" {
		t.Errorf("types = %s, %s", steps[0].Type, steps[1].Type)
	}
	for _, s := range steps {
		if s.Status != StatusPending {
			t.Errorf("%s status = %s", s.Name, s.Status)
		}
	}
}

func TestModel_TracksStepStatus(t *testing.T) {
	m := NewModel(testScenario(), nil, nil)
	m.apply(events.Event{Type: events.StepStart, Step: 0, Name: "approve 1000"})
	if m.steps[0].Status != StatusRunning || m.steps[0].Name != "approve 1000" {
		t.Errorf("after start: %+v", m.steps[0])
	}
	m.apply(events.Event{Type: events.Stdout, Step: 0, Message: "RESULT=0000"})
	m.apply(events.Event{Type: events.StepEnd, Step: 0, Data: map[string]any{"duration": int64(120), "skipped": false}})
	m.apply(events.Event{Type: events.StepComplete, Step: 0, Data: map[string]any{"passed": true, "tests": 2}})
	if m.steps[0].Status != StatusPassed || m.steps[0].Duration.Milliseconds() != 120 || m.steps[0].Tests != 2 {
		t.Errorf("after complete: %+v", m.steps[0])
	}

	m.apply(events.Event{Type: events.StepStart, Step: 1})
	m.apply(events.Event{Type: events.StepEnd, Step: 1, Data: map[string]any{"duration": float64(0), "skipped": true}})
	m.apply(events.Event{Type: events.StepComplete, Step: 1, Data: map[string]any{"passed": true, "tests": 0}})
	if m.steps[1].Status != StatusSkipped {
		t.Errorf("skipped step = %+v", m.steps[1])
	}

	m.apply(events.Event{Type: events.StepStart, Step: 2})
	m.apply(events.Event{Type: events.StepError, Step: 2, Message: "timed out after 1s"})
	if m.steps[2].Status != StatusFailed || m.steps[2].Error != "timed out after 1s" {
		t.Errorf("errored step = %+v", m.steps[2])
	}

	m.apply(events.Event{Type: events.StepStart, Step: 9})
	m.apply(events.Event{Type: events.Log, Step: events.NoStep, Level: "WARN", Message: "extractor failed"})
	m.apply(events.Event{Type: events.Log, Step: events.NoStep, Level: "INFO", Message: "quiet"})
	if len(m.logs) != 1 {
		t.Errorf("logs = %v", m.logs)
	}
}

func TestModel_QuitsAfterDoneAndDrained(t *testing.T) {
	ch := make(chan events.Event)
	close(ch)
	m := NewModel(testScenario(), ch, nil)

	next, cmd := m.Update(doneMsg{Result: &runtime.ScenarioResult{Success: true, Summary: runtime.Summary{Total: 3, Passed: 3}}})
	if cmd != nil {
		t.Error("must keep running until the event stream is drained")
	}
	next, cmd = next.Update(eventsClosedMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(next.View(), "3 passed, 0 failed of 3") {
		t.Errorf("view = %s", next.View())
	}
}

func TestModel_QuitCancelsRun(t *testing.T) {
	cancelled := false
	m := NewModel(testScenario(), nil, func() { cancelled = true })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !cancelled || cmd == nil {
		t.Errorf("cancelled=%v cmd=%v", cancelled, cmd)
	}
}

func TestModel_ViewShowsOutputAndError(t *testing.T) {
	m := NewModel(testScenario(), nil, nil)
	m.apply(events.Event{Type: events.StepStart, Step: 0, Name: "approve"})
	m.apply(events.Event{Type: events.Stdout, Step: 0, Message: "RESULT=0000\n"})
	view := m.View()
	for _, want := range []string{"clirun: payment", "approve", "RESULT=0000", "running"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	next, _ := m.Update(doneMsg{Err: errors.New("context canceled")})
	if !strings.Contains(next.View(), "stopped: context canceled") {
		t.Errorf("view = %s", next.View())
	}
}
