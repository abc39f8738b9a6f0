// Package schema defines the Go struct types for the scenario document and
// provides strict JSON/YAML parsing.
package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is the top-level document consumed by the execution engine.
type Scenario struct {
	Info        Info       `yaml:"info"                  json:"info"                  jsonschema:"required"`
	Variables   []Variable `yaml:"variables,omitempty"   json:"variables,omitempty"`
	Requests    []Step     `yaml:"requests"              json:"requests"              jsonschema:"required,minItems=1"`
	StopOnError *bool      `yaml:"stopOnError,omitempty" json:"stopOnError,omitempty"`
}

// StopsOnError reports whether a step error terminates the run. An unset
// stopOnError defaults to true.
func (s *Scenario) StopsOnError() bool {
	return s.StopOnError == nil || *s.StopOnError
}

// SetVariable replaces the seed value of key, or appends a new variable.
func (s *Scenario) SetVariable(key, value string) {
	for i := range s.Variables {
		if s.Variables[i].Key == key {
			s.Variables[i].Value = value
			return
		}
	}
	s.Variables = append(s.Variables, Variable{Key: key, Value: value})
}

// Info names and describes a scenario.
type Info struct {
	Name        string `yaml:"name"                  json:"name"                  jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// StepType selects how a step is executed.
type StepType string

const (
	StepProcess StepType = ""
	StepCrypto  StepType = "crypto"
	StepHTTP    StepType = "http"
	StepSleep   StepType = "sleep"
)

// Step is a single request of a scenario.
type Step struct {
	Name       string            `yaml:"name"                 json:"name"                 jsonschema:"required"`
	Type       StepType          `yaml:"type,omitempty"       json:"type,omitempty"`
	Command    string            `yaml:"command,omitempty"    json:"command,omitempty"`
	Arguments  Arguments         `yaml:"arguments,omitempty"  json:"arguments,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"    json:"headers,omitempty"`
	Body       string            `yaml:"body,omitempty"       json:"body,omitempty"`
	Timeout    string            `yaml:"timeout,omitempty"    json:"timeout,omitempty"    jsonschema:"pattern=^[0-9]+(ms|s|m|h)$"`
	Extractors []Extractor       `yaml:"extractors,omitempty" json:"extractors,omitempty"`
	Tests      []TestSpec        `yaml:"tests,omitempty"      json:"tests,omitempty"`
}

// Extractor copies one value out of a step response into the scope.
// Pattern is a plain key, a regular expression or a `js:` expression.
type Extractor struct {
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Pattern  string `yaml:"pattern"        json:"pattern"        jsonschema:"required"`
	Variable string `yaml:"variable"       json:"variable"       jsonschema:"required"`
}

// TestSpec is a per-step check. Description is documentation only and is
// surfaced as tooltip text in reports.
type TestSpec struct {
	Name        string `yaml:"name"                  json:"name"                  jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Assertion   string `yaml:"assertion,omitempty"   json:"assertion,omitempty"`
	Script      string `yaml:"script,omitempty"      json:"script,omitempty"`
}

// LoadFile reads a scenario document. Files ending in .json are decoded as
// JSON, everything else as YAML. Unknown fields are rejected either way.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f)
	}
	return Load(f)
}

// Load parses a YAML scenario with strict unknown-field rejection.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &sc, nil
}

// LoadJSON parses a JSON scenario with strict unknown-field rejection.
func LoadJSON(r io.Reader) (*Scenario, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &sc, nil
}
