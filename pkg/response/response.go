// Package response parses the line-oriented key=value text printed by the
// external client and carries the raw outcome of a step.
package response

import (
	"regexp"
	"strings"
	"time"
)

// Raw is the captured outcome of one step invocation.
type Raw struct {
	ExitCode int               `json:"exitCode"`
	Stdout   string            `json:"stdout"`
	Stderr   string            `json:"stderr"`
	Duration time.Duration     `json:"duration"`
	Parsed   map[string]string `json:"parsed"`
}

// DurationMs returns the duration in whole milliseconds.
func (r *Raw) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Lookup returns the parsed value for key, case-insensitively.
func (r *Raw) Lookup(key string) (string, bool) {
	if r == nil || r.Parsed == nil {
		return "", false
	}
	v, ok := r.Parsed[strings.ToLower(key)]
	return v, ok
}

var lineRe = regexp.MustCompile(`^(\w+)=(.*)$`)

// Parse splits stdout into lines and collects key=value pairs. Keys are
// lower-cased; the value is everything after the first '='. A repeated key
// keeps its last value.
func Parse(stdout string) map[string]string {
	out := make(map[string]string)
	for _, line := range splitLines(stdout) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out[strings.ToLower(m[1])] = m[2]
	}
	return out
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// New builds a Raw response and parses stdout.
func New(exitCode int, stdout, stderr string, d time.Duration) *Raw {
	return &Raw{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: d,
		Parsed:   Parse(stdout),
	}
}
