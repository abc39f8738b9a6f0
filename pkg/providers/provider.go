// Package providers performs the external work behind each step type: the
// client process, the cipher helper, raw HTTP posts and conditional sleeps.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// ErrTimeout marks a blocking operation that was cancelled because it ran
// past its deadline.
var ErrTimeout = errors.New("timed out")

// TimeoutError reports how long an operation was allowed to run.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.After)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts process execution so tests can substitute it.
// Implementations: RealExecutor.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error)
}

// Request is a step with every placeholder already resolved.
type Request struct {
	Name      string
	Type      schema.StepType
	Command   string
	Arguments schema.Arguments
	Headers   map[string]string
	Body      string
	// Timeout overrides the provider default when non-zero.
	Timeout time.Duration
	// Scope is a snapshot of the run variables at dispatch time.
	Scope map[string]string
}

// Result is what a provider hands back to the engine.
type Result struct {
	Response      *response.Raw
	CommandString string
	Skipped       bool
}

// Provider executes one step type. A returned error means the step could
// not complete (spawn failure, timeout); a non-zero exit code or an HTTP
// error status is not an error.
type Provider interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Set maps step types to their providers.
type Set map[schema.StepType]Provider

// For returns the provider registered for t.
func (s Set) For(t schema.StepType) (Provider, error) {
	p, ok := s[t]
	if !ok || p == nil {
		name := string(t)
		if name == "" {
			name = "process"
		}
		return nil, fmt.Errorf("no provider for step type %q", name)
	}
	return p, nil
}

func pick(override, fallback time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return fallback
}
