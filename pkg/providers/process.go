package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
)

// ProcessProvider runs the external client with one positional argument:
// the step arguments joined as key=value pairs separated by ';'.
type ProcessProvider struct {
	// Path is the client binary. When empty the step command is run instead.
	Path     string
	Executor CommandExecutor
	Timeout  time.Duration
	// Encoding names the charset of the client output (see response.Decode).
	Encoding string
}

// NewProcessProvider returns a provider that uses a RealExecutor.
func NewProcessProvider(path string, timeout time.Duration, encoding string) *ProcessProvider {
	return &ProcessProvider{Path: path, Executor: &RealExecutor{}, Timeout: timeout, Encoding: encoding}
}

// ArgumentString renders the single argument passed to the client.
func ArgumentString(req *Request) string {
	return req.Arguments.Join(";", nil)
}

func (p *ProcessProvider) binary(req *Request) (string, error) {
	if p.Path != "" {
		return p.Path, nil
	}
	if cmd := strings.TrimSpace(req.Command); cmd != "" {
		return cmd, nil
	}
	return "", fmt.Errorf("no client path configured and step %q has no command", req.Name)
}

// Execute spawns the client and waits for it, killing it on timeout.
func (p *ProcessProvider) Execute(ctx context.Context, req *Request) (*Result, error) {
	bin, err := p.binary(req)
	if err != nil {
		return nil, err
	}
	arg := ArgumentString(req)
	res := &Result{CommandString: bin + " " + arg}

	out, err := runWithTimeout(ctx, p.executor(), pick(req.Timeout, p.Timeout), bin, []string{arg})
	if err != nil {
		return res, err
	}
	stdout, err := response.Decode(response.TrimBOM(out.Stdout), p.Encoding)
	if err != nil {
		return res, fmt.Errorf("decode stdout: %w", err)
	}
	stderr, err := response.Decode(out.Stderr, p.Encoding)
	if err != nil {
		stderr = string(out.Stderr)
	}
	res.Response = response.New(out.ExitCode, stdout, stderr, out.Duration)
	return res, nil
}

func (p *ProcessProvider) executor() CommandExecutor {
	if p.Executor == nil {
		return &RealExecutor{}
	}
	return p.Executor
}
