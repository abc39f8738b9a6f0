// Package runtime drives a scenario: steps run one after another against a
// variable scope owned by the run, and every outcome is recorded as data.
package runtime

import (
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
	"github.com/ormasoftchile/clirun/pkg/vars"
)

// State is the scenario-level lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// StepState is the lifecycle of one step.
type StepState string

const (
	StepPending    StepState = "pending"
	StepRunning    StepState = "running"
	StepExtracting StepState = "extracting"
	StepTesting    StepState = "testing"
	StepCompleted  StepState = "completed"
	StepErrored    StepState = "errored"
)

// TestResult is the outcome of one test of a step.
type TestResult struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Assertion   string `json:"assertion,omitempty"`
	Script      string `json:"script,omitempty"`
	Passed      bool   `json:"passed"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Error       string `json:"error,omitempty"`
}

// StepResult is the recorded outcome of one step.
type StepResult struct {
	Step          int               `json:"step"`
	Name          string            `json:"name"`
	Type          schema.StepType   `json:"type,omitempty"`
	Command       string            `json:"command"`
	CommandString string            `json:"commandString"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	Response      *response.Raw     `json:"response"`
	Extracted     map[string]string `json:"extracted"`
	Tests         []TestResult      `json:"tests"`
	Passed        bool              `json:"passed"`
	State         StepState         `json:"state"`
	Skipped       bool              `json:"skipped,omitempty"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	EndedAt       time.Time         `json:"endedAt"`
}

// Errored reports whether the step could not complete.
func (s *StepResult) Errored() bool {
	return s.State == StepErrored
}

// Summary counts attempted steps.
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// ScenarioResult is the terminal record of a run.
type ScenarioResult struct {
	RunID     string        `json:"runId"`
	Source    string        `json:"source,omitempty"`
	Info      schema.Info   `json:"info"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Steps     []*StepResult `json:"steps"`
	Summary   Summary       `json:"summary"`
	Success   bool          `json:"success"`
	Variables []vars.Pair   `json:"variables"`
	Error     string        `json:"error,omitempty"`
}
