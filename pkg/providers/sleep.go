package providers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// DefaultSleep is used when a sleep step has no duration argument.
const DefaultSleep = time.Second

// SleepProvider waits for arguments.duration. When arguments.when names a
// variable that is absent from the scope the wait is skipped.
type SleepProvider struct {
	Sleep func(ctx context.Context, d time.Duration) error
}

// Execute waits or skips. The parsed response carries "skipped" and
// "duration_ms".
func (p *SleepProvider) Execute(ctx context.Context, req *Request) (*Result, error) {
	d := DefaultSleep
	if s, ok := req.Arguments.Get("duration"); ok && strings.TrimSpace(s) != "" {
		parsed, err := schema.ParseSleepDuration(s)
		if err != nil {
			return nil, err
		}
		d = parsed
	}
	cmd := "sleep " + d.String()

	if when, ok := req.Arguments.Get("when"); ok && strings.TrimSpace(when) != "" {
		cmd += " when " + when
		if _, present := req.Scope[strings.TrimSpace(when)]; !present {
			raw := response.New(0, "", "", 0)
			raw.Parsed["skipped"] = "true"
			raw.Parsed["duration_ms"] = "0"
			return &Result{Response: raw, CommandString: cmd, Skipped: true}, nil
		}
	}

	start := time.Now()
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if err := sleep(ctx, d); err != nil {
		return &Result{CommandString: cmd}, err
	}
	raw := response.New(0, "", "", time.Since(start))
	raw.Parsed["skipped"] = "false"
	raw.Parsed["duration_ms"] = strconv.FormatInt(d.Milliseconds(), 10)
	return &Result{Response: raw, CommandString: cmd}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
