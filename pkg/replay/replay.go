// Package replay answers steps from a previously saved scenario result so
// extraction and tests can be rerun without the external client.
package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/ormasoftchile/clirun/pkg/providers"
	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Provider implements providers.Provider by matching each request against
// the recorded steps. Fail-closed: a request with no recording is an error.
type Provider struct {
	mu    sync.Mutex
	steps []*runtime.StepResult
	used  []bool
}

// New creates a Provider from a saved result.
func New(res *runtime.ScenarioResult) *Provider {
	return &Provider{
		steps: res.Steps,
		used:  make([]bool, len(res.Steps)),
	}
}

// Load reads a saved result file.
func Load(path string) (*Provider, error) {
	res, err := runtime.LoadResult(path)
	if err != nil {
		return nil, err
	}
	return New(res), nil
}

// Set registers p for every step type.
func (p *Provider) Set() providers.Set {
	return providers.Set{
		schema.StepProcess: p,
		schema.StepCrypto:  p,
		schema.StepHTTP:    p,
		schema.StepSleep:   p,
	}
}

// Execute returns the first unused recording with the same step name and
// type. Dynamic tokens make commands differ between runs, so the command
// string is not compared. A recorded step error is returned as an error.
func (p *Provider) Execute(ctx context.Context, req *providers.Request) (*providers.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sr := range p.steps {
		if p.used[i] || sr.Name != req.Name || sr.Type != req.Type {
			continue
		}
		p.used[i] = true
		res := &providers.Result{CommandString: sr.CommandString, Skipped: sr.Skipped}
		if sr.Errored() {
			return res, fmt.Errorf("replay: %s", sr.Error)
		}
		if sr.Response == nil {
			return nil, fmt.Errorf("replay: step %q has no recorded response", sr.Name)
		}
		raw := *sr.Response
		if raw.Parsed == nil {
			raw.Parsed = response.Parse(raw.Stdout)
		}
		res.Response = &raw
		return res, nil
	}
	return nil, fmt.Errorf("replay: no recorded response for step %q", req.Name)
}

// Unused returns the names of recordings that were never matched.
func (p *Provider) Unused() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for i, sr := range p.steps {
		if !p.used[i] {
			names = append(names, sr.Name)
		}
	}
	return names
}
