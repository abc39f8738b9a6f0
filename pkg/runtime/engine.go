package runtime

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/clirun/pkg/assertions"
	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/expression"
	"github.com/ormasoftchile/clirun/pkg/extract"
	"github.com/ormasoftchile/clirun/pkg/providers"
	"github.com/ormasoftchile/clirun/pkg/resolve"
	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
	"github.com/ormasoftchile/clirun/pkg/vars"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxxxxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// InvalidScenarioError is returned by New for a document that fails
// validation. Nothing has run when it is returned.
type InvalidScenarioError struct {
	Errors []*schema.ValidationError
}

func (e *InvalidScenarioError) Error() string {
	var msgs []string
	for _, ve := range e.Errors {
		if ve.Severity == "error" {
			msgs = append(msgs, ve.Error())
		}
	}
	return "invalid scenario: " + strings.Join(msgs, "; ")
}

// ErrAlreadyRun is returned when Run is called on an engine twice.
var ErrAlreadyRun = errors.New("engine has already run")

// Options configures an Engine.
type Options struct {
	Providers providers.Set
	Logger    *slog.Logger
	// Bus receives lifecycle events and, through the logger, log records.
	Bus    *events.Bus
	RunID  string
	Source string
}

// Engine executes one scenario once. Each engine owns its variable scope,
// so independent engines may run concurrently.
type Engine struct {
	Scenario  *schema.Scenario
	RunID     string
	Scope     *vars.Scope
	Providers providers.Set
	Bus       *events.Bus
	Logger    *slog.Logger
	Source    string

	resolver *resolve.Resolver
	mu       sync.Mutex
	state    State
}

// New validates sc and prepares an engine. A document with validation
// errors is refused.
func New(sc *schema.Scenario, opts Options) (*Engine, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if errs := schema.Validate(sc); schema.HasErrors(errs) {
		return nil, &InvalidScenarioError{Errors: errs}
	}
	runID := opts.RunID
	if runID == "" {
		runID = GenerateRunID()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Bus != nil {
		logger = slog.New(events.NewLogHandler(logger.Handler(), opts.Bus, runID))
	}
	logger = logger.With("run", runID)

	scope := vars.New()
	return &Engine{
		Scenario:  sc,
		RunID:     runID,
		Scope:     scope,
		Providers: opts.Providers,
		Bus:       opts.Bus,
		Logger:    logger,
		Source:    opts.Source,
		resolver:  resolve.New(scope, logger),
		state:     StateIdle,
	}, nil
}

// Resolver exposes the placeholder resolver bound to the run scope.
func (e *Engine) Resolver() *resolve.Resolver {
	return e.resolver
}

// State returns the scenario-level state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) publish(ev events.Event) {
	if e.Bus == nil {
		return
	}
	ev.RunID = e.RunID
	ev.Scenario = e.Scenario.Info.Name
	e.Bus.Publish(ev)
}

// Run executes every step in order. Step failures are recorded in the
// result and never returned. The error is non-nil only when ctx ends the
// run early; the partial result is still returned.
func (e *Engine) Run(ctx context.Context) (*ScenarioResult, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	e.state = StateRunning
	e.mu.Unlock()

	sc := e.Scenario
	result := &ScenarioResult{
		RunID:     e.RunID,
		Source:    e.Source,
		Info:      sc.Info,
		StartTime: time.Now(),
		Steps:     []*StepResult{},
		Summary:   Summary{Total: len(sc.Requests)},
	}
	for _, v := range sc.Variables {
		e.Scope.Set(v.Key, e.resolver.Resolve(v.Value, nil))
	}

	e.Logger.Info("scenario started", "scenario", sc.Info.Name, "steps", len(sc.Requests))
	e.publish(events.Event{Type: events.ScenarioStart, Step: events.NoStep, Name: sc.Info.Name,
		Data: map[string]any{"total": len(sc.Requests)}})

	var runErr error
	for i, step := range sc.Requests {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		sr := e.runStep(ctx, i, step)
		result.Steps = append(result.Steps, sr)
		if sr.Response != nil {
			result.Summary.Duration += sr.Response.Duration
		}
		if sr.Passed {
			result.Summary.Passed++
		} else {
			result.Summary.Failed++
		}
		if sr.Errored() {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			if sc.StopsOnError() {
				e.Logger.Warn("stopping after step error", "step", i, "err", sr.Error)
				break
			}
		}
	}

	result.EndTime = time.Now()
	result.Success = result.Summary.Failed == 0 && runErr == nil
	result.Variables = e.Scope.Pairs()
	if runErr != nil {
		result.Error = runErr.Error()
	}
	e.setState(StateCompleted)

	e.Logger.Info("scenario finished", "success", result.Success,
		"passed", result.Summary.Passed, "failed", result.Summary.Failed)
	e.publish(events.Event{Type: events.ScenarioEnd, Step: events.NoStep, Name: sc.Info.Name,
		Data: map[string]any{
			"success":  result.Success,
			"total":    result.Summary.Total,
			"passed":   result.Summary.Passed,
			"failed":   result.Summary.Failed,
			"duration": result.Summary.Duration.Milliseconds(),
		}})
	return result, runErr
}

// request resolves every placeholder of step against the current scope.
func (e *Engine) request(name string, step schema.Step) *providers.Request {
	req := &providers.Request{
		Name:    name,
		Type:    step.Type,
		Command: e.resolver.Resolve(step.Command, nil),
		Body:    e.resolver.Resolve(step.Body, nil),
	}
	step.Arguments.Each(func(k, v string) {
		req.Arguments.Set(k, e.resolver.Resolve(v, nil))
	})
	if len(step.Headers) > 0 {
		req.Headers = make(map[string]string, len(step.Headers))
		for k, v := range step.Headers {
			req.Headers[k] = e.resolver.Resolve(v, nil)
		}
	}
	if step.Timeout != "" {
		if d, err := time.ParseDuration(step.Timeout); err == nil {
			req.Timeout = d
		}
	}
	req.Scope = e.Scope.Snapshot()
	return req
}

func (e *Engine) runStep(ctx context.Context, index int, step schema.Step) *StepResult {
	name := e.resolver.Resolve(step.Name, nil)
	sr := &StepResult{
		Step:      index,
		Name:      name,
		Type:      step.Type,
		Extracted: map[string]string{},
		Tests:     []TestResult{},
		State:     StepRunning,
		StartedAt: time.Now(),
	}
	req := e.request(name, step)
	sr.Command = req.Command
	if step.Type == schema.StepHTTP {
		sr.Headers = req.Headers
		sr.Body = providers.Body(req)
	}
	log := e.Logger.With("step", index, "name", name)

	e.publish(events.Event{Type: events.StepStart, Step: index, Name: name,
		Data: map[string]any{"type": stepTypeName(step.Type), "command": req.Command}})

	res, err := e.dispatch(ctx, req)
	if res != nil {
		sr.CommandString = res.CommandString
	}
	if err != nil {
		return e.fail(sr, err, log)
	}
	raw := res.Response
	if raw == nil {
		raw = response.New(0, "", "", 0)
	}
	sr.Response = raw
	sr.Skipped = res.Skipped

	if raw.Stdout != "" {
		e.publish(events.Event{Type: events.Stdout, Step: index, Name: name, Message: raw.Stdout})
	}
	if raw.Stderr != "" {
		e.publish(events.Event{Type: events.Stderr, Step: index, Name: name, Message: raw.Stderr})
	}
	e.publish(events.Event{Type: events.StepEnd, Step: index, Name: name,
		Data: map[string]any{"exitCode": raw.ExitCode, "duration": raw.DurationMs(), "skipped": res.Skipped}})
	if res.Skipped {
		log.Info("step skipped", "command", sr.CommandString)
	}

	sr.State = StepExtracting
	sr.Extracted = extract.Apply(raw, step.Extractors, e.Scope, log)

	sr.State = StepTesting
	values := e.Scope.Snapshot()
	maps.Copy(values, sr.Extracted)
	sr.Passed = true
	for _, ts := range step.Tests {
		tr := e.runTest(ts, values, sr.Extracted)
		if !tr.Passed {
			sr.Passed = false
		}
		sr.Tests = append(sr.Tests, tr)
	}

	sr.State = StepCompleted
	sr.EndedAt = time.Now()
	log.Debug("step completed", "passed", sr.Passed, "tests", len(sr.Tests))
	e.publish(events.Event{Type: events.StepComplete, Step: index, Name: name,
		Data: map[string]any{"passed": sr.Passed, "tests": len(sr.Tests), "extracted": len(sr.Extracted)}})
	return sr
}

func (e *Engine) dispatch(ctx context.Context, req *providers.Request) (*providers.Result, error) {
	p, err := e.Providers.For(req.Type)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, req)
}

func (e *Engine) fail(sr *StepResult, err error, log *slog.Logger) *StepResult {
	sr.State = StepErrored
	sr.Passed = false
	sr.Tests = []TestResult{}
	sr.Error = err.Error()
	sr.EndedAt = time.Now()
	sr.Response = response.New(-1, "", err.Error(), sr.EndedAt.Sub(sr.StartedAt))
	attrs := []any{"err", err}
	if errors.Is(err, providers.ErrTimeout) {
		attrs = append(attrs, "timeout", true)
	}
	log.Error("step failed", attrs...)
	e.publish(events.Event{Type: events.StepError, Step: sr.Step, Name: sr.Name, Message: sr.Error,
		Data: map[string]any{"timeout": errors.Is(err, providers.ErrTimeout)}})
	return sr
}

// runTest evaluates one test over the flat variable map. Test names and
// descriptions may reference values the step just extracted.
func (e *Engine) runTest(ts schema.TestSpec, values, extracted map[string]string) TestResult {
	tr := TestResult{
		Name:        e.resolver.Resolve(ts.Name, extracted),
		Description: e.resolver.Resolve(ts.Description, extracted),
		Assertion:   ts.Assertion,
		Script:      ts.Script,
	}
	switch {
	case strings.TrimSpace(ts.Assertion) != "":
		r := assertions.EvaluateInline(ts.Assertion, values)
		tr.Passed = r.Passed
		tr.Expected = textOf(r.Expected)
		tr.Actual = textOf(r.Actual)
		if r.IsError() {
			tr.Error = r.Message
		}
	case strings.TrimSpace(ts.Script) != "":
		env := expression.Builtins()
		for k, v := range values {
			env[k] = v
		}
		ok, err := expression.EvalBool(expression.Strip(ts.Script), env)
		if err != nil {
			tr.Error = err.Error()
			return tr
		}
		tr.Passed = ok
		tr.Expected = "true"
		tr.Actual = fmt.Sprint(ok)
	default:
		tr.Error = "test has neither an assertion nor a script"
	}
	return tr
}

func textOf(v any) string {
	if v == nil {
		return ""
	}
	return expression.Format(v)
}

func stepTypeName(t schema.StepType) string {
	if t == schema.StepProcess {
		return "process"
	}
	return string(t)
}
