// Package events carries run progress from the engine to observers (trace
// writer, TUI, MCP) without the engine depending on any of them.
package events

import "time"

// Type names a lifecycle event.
type Type string

const (
	ScenarioStart Type = "scenario-start"
	StepStart     Type = "step-start"
	Stdout        Type = "stdout"
	Stderr        Type = "stderr"
	StepEnd       Type = "step-end"
	StepComplete  Type = "step-complete"
	StepError     Type = "step-error"
	ScenarioEnd   Type = "scenario-end"
	Log           Type = "log"
)

// NoStep is the Step index of scenario-level events.
const NoStep = -1

// Event is a single progress notification.
type Event struct {
	Type     Type           `json:"type"`
	Time     time.Time      `json:"time"`
	RunID    string         `json:"run_id,omitempty"`
	Scenario string         `json:"scenario,omitempty"`
	Step     int            `json:"step"`
	Name     string         `json:"name,omitempty"`
	Message  string         `json:"message,omitempty"`
	Level    string         `json:"level,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Filter selects events for a subscription.
type Filter func(Event) bool

// Handler processes a delivered event.
type Handler func(Event)

// ByType accepts events of any of the given types.
func ByType(types ...Type) Filter {
	set := make(map[Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(e Event) bool { return set[e.Type] }
}

// ByRun accepts events of one run.
func ByRun(runID string) Filter {
	return func(e Event) bool { return e.RunID == runID }
}

// All combines filters; every one must accept.
func All(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}
