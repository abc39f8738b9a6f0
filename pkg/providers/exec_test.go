package providers

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestRealExecutor_ExitCodeIsNotAnError(t *testing.T) {
	h := &helperExecutor{}
	result, err := h.Execute(context.Background(), "fail", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if string(result.Stderr) != "boom\n" {
		t.Errorf("stderr = %q", result.Stderr)
	}
}

func TestRealExecutor_NotFound(t *testing.T) {
	r := &RealExecutor{}
	_, err := r.Execute(context.Background(), "/definitely/not/here/client", nil, nil)
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
}

func TestIsExecNotFound(t *testing.T) {
	if !isExecNotFound(exec.ErrNotFound) {
		t.Error("expected ErrNotFound to be detected")
	}
	err := &exec.Error{Name: "bogus", Err: exec.ErrNotFound}
	if !isExecNotFound(err) {
		t.Error("expected exec.Error wrapping ErrNotFound to be detected")
	}
}

func TestRunWithTimeout_KillsProcess(t *testing.T) {
	start := time.Now()
	_, err := runWithTimeout(context.Background(), &helperExecutor{}, 200*time.Millisecond, "slow", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if err.Error() != "timed out after 200ms" {
		t.Errorf("message = %q", err.Error())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("process was not killed promptly: %s", elapsed)
	}
}

func TestRunWithTimeout_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runWithTimeout(ctx, &helperExecutor{}, time.Minute, "slow", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func TestSet_For(t *testing.T) {
	s := Set{"sleep": &SleepProvider{}}
	if _, err := s.For("sleep"); err != nil {
		t.Errorf("For(sleep): %v", err)
	}
	_, err := s.For("")
	if err == nil || err.Error() != `no provider for step type "process"` {
		t.Errorf("For(\"\") error = %v", err)
	}
}
