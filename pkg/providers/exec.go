package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// RealExecutor runs commands via os/exec. Cancelling ctx kills the process;
// WaitDelay bounds how long pipes may stay open afterwards.
type RealExecutor struct {
	WaitDelay time.Duration
}

// Execute runs a command with the given arguments and environment.
func (r *RealExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	if len(env) > 0 {
		cmd.Env = env
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case isExecNotFound(err):
			return nil, fmt.Errorf("executable %q not found: %w", command, err)
		default:
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// isExecNotFound returns true when the error indicates the executable was not found.
func isExecNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

// runWithTimeout executes through ex under a deadline of d. Running past
// the deadline yields a *TimeoutError.
func runWithTimeout(ctx context.Context, ex CommandExecutor, d time.Duration, command string, args []string) (*CommandResult, error) {
	if d <= 0 {
		return ex.Execute(ctx, command, args, nil)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	res, err := ex.Execute(tctx, command, args, nil)
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &TimeoutError{After: d}
	}
	return res, err
}
