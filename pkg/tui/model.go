package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Step display states.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

const maxLogLines = 5

// StepView is what the list shows for one step.
type StepView struct {
	Name     string
	Type     string
	Status   string
	Duration time.Duration
	Tests    int
	Output   string
	Error    string
	skipped  bool
}

// Model is the Bubble Tea model of a running scenario.
type Model struct {
	title    string
	steps    []StepView
	selected int
	current  int
	spinner  spinner.Model
	events   <-chan events.Event
	logs     []string
	width    int

	finished bool
	drained  bool
	success  bool
	summary  string
	err      error
	cancel   context.CancelFunc
}

type eventMsg struct{ Event events.Event }

type eventsClosedMsg struct{}

type doneMsg struct {
	Result *runtime.ScenarioResult
	Err    error
}

// NewModel lists the steps of sc and follows evs. cancel, when set, is
// called if the user quits before the run ends.
func NewModel(sc *schema.Scenario, evs <-chan events.Event, cancel context.CancelFunc) Model {
	steps := make([]StepView, 0, len(sc.Requests))
	for _, s := range sc.Requests {
		typ := string(s.Type)
		if typ == "" {
			typ = "process"
		}
		steps = append(steps, StepView{Name: s.Name, Type: typ, Status: StatusPending})
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		title:   sc.Info.Name,
		steps:   steps,
		current: -1,
		spinner: sp,
		events:  evs,
		cancel:  cancel,
	}
}

// Init starts the spinner and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m Model) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.cancel != nil && !m.finished {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.steps)-1 {
				m.selected++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(msg.Event)
		return m, m.listen()

	case eventsClosedMsg:
		m.drained = true
		if m.finished {
			return m, tea.Quit
		}

	case doneMsg:
		m.finished = true
		m.err = msg.Err
		if msg.Result != nil {
			m.success = msg.Result.Success
			s := msg.Result.Summary
			m.summary = fmt.Sprintf("%d passed, %d failed of %d in %s",
				s.Passed, s.Failed, s.Total, s.Duration.Truncate(time.Millisecond))
		}
		if m.drained || m.events == nil {
			return m, tea.Quit
		}
	}
	return m, nil
}

// apply folds one engine event into the step list.
func (m *Model) apply(ev events.Event) {
	if ev.Type == events.Log {
		if ev.Level == "WARN" || ev.Level == "ERROR" {
			m.logs = append(m.logs, ev.Level+" "+ev.Message)
			if len(m.logs) > maxLogLines {
				m.logs = m.logs[len(m.logs)-maxLogLines:]
			}
		}
		return
	}
	if ev.Step < 0 || ev.Step >= len(m.steps) {
		return
	}
	s := &m.steps[ev.Step]
	switch ev.Type {
	case events.StepStart:
		s.Status = StatusRunning
		if ev.Name != "" {
			s.Name = ev.Name
		}
		m.current = ev.Step
		m.selected = ev.Step
	case events.Stdout:
		s.Output = ev.Message
	case events.Stderr:
		s.Output = strings.TrimRight(s.Output+"\n"+ev.Message, "\n")
	case events.StepEnd:
		s.Duration = time.Duration(number(ev.Data["duration"])) * time.Millisecond
		s.skipped, _ = ev.Data["skipped"].(bool)
	case events.StepComplete:
		s.Tests = int(number(ev.Data["tests"]))
		passed, _ := ev.Data["passed"].(bool)
		switch {
		case !passed:
			s.Status = StatusFailed
		case s.skipped:
			s.Status = StatusSkipped
		default:
			s.Status = StatusPassed
		}
	case events.StepError:
		s.Status = StatusFailed
		s.Error = ev.Message
	}
}

// number reads an event data value that may have passed through JSON.
func number(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

// Steps returns the current step views.
func (m Model) Steps() []StepView {
	return m.steps
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("clirun: " + m.title))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, s := range m.steps {
		nameWidth = max(nameWidth, runewidth.StringWidth(s.Name))
	}
	nameWidth = min(nameWidth, 40)

	for i, s := range m.steps {
		cursor := "  "
		if i == m.selected {
			cursor = selectedStyle.Render(GlyphCurrent + " ")
		}
		name := runewidth.FillRight(runewidth.Truncate(s.Name, nameWidth, "…"), nameWidth)
		line := fmt.Sprintf("%s %s  %-7s", m.glyph(s), name, s.Type)
		if s.Duration > 0 || s.Status == StatusPassed || s.Status == StatusFailed {
			line += fmt.Sprintf("  %6s", s.Duration.Truncate(time.Millisecond))
		}
		if s.Tests > 0 {
			line += fmt.Sprintf("  %d tests", s.Tests)
		}
		b.WriteString(cursor + styleFor(s.Status).Render(line) + "\n")
	}

	if m.selected >= 0 && m.selected < len(m.steps) {
		if s := m.steps[m.selected]; s.Output != "" || s.Error != "" {
			var body strings.Builder
			body.WriteString(panelTitle.Render(s.Name))
			if s.Output != "" {
				body.WriteString("\n" + strings.TrimRight(s.Output, "\n"))
			}
			if s.Error != "" {
				body.WriteString("\n" + errorStyle.Render(s.Error))
			}
			box := panelBorder
			if m.width > 4 {
				box = box.Width(m.width - 4)
			}
			b.WriteString("\n" + box.Render(body.String()) + "\n")
		}
	}

	for _, l := range m.logs {
		b.WriteString(dimStyle.Render("  "+l) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.finished && m.err != nil:
		b.WriteString(errorStyle.Render("  " + GlyphFailed + " stopped: " + m.err.Error()))
	case m.finished && m.success:
		b.WriteString(summaryPassedStyle.Render("  " + GlyphPassed + " " + m.summary))
	case m.finished:
		b.WriteString(summaryFailedStyle.Render("  " + GlyphFailed + " " + m.summary))
	default:
		b.WriteString(dimStyle.Render("  running…"))
	}
	b.WriteString("\n\n  ")
	for i, k := range keys.bindings() {
		if i > 0 {
			b.WriteString("  ")
		}
		h := k.Help()
		b.WriteString(keyStyle.Render(h.Key) + " " + keyDescStyle.Render(h.Desc))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) glyph(s StepView) string {
	switch s.Status {
	case StatusRunning:
		return m.spinner.View()
	case StatusPassed:
		return GlyphPassed
	case StatusFailed:
		return GlyphFailed
	case StatusSkipped:
		return GlyphSkipped
	}
	return GlyphPending
}

func styleFor(status string) lipgloss.Style {
	switch status {
	case StatusRunning:
		return stepCurrent
	case StatusPassed:
		return stepPassed
	case StatusFailed:
		return stepFailed
	case StatusSkipped:
		return stepSkipped
	}
	return stepNormal
}
