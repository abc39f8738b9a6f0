// Package extract pulls named values out of a step response and writes them
// into the run's variable scope.
package extract

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/ormasoftchile/clirun/pkg/expression"
	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
	"github.com/ormasoftchile/clirun/pkg/vars"
)

// Mode is how a pattern is interpreted.
type Mode string

const (
	ModeExpression Mode = "expression"
	ModeKey        Mode = "key"
	ModeRegex      Mode = "regex"
)

// ModeOf classifies a pattern: a js: prefix is an expression, a pattern
// holding any of \ ( [ is a regular expression, anything else a key.
func ModeOf(pattern string) Mode {
	switch {
	case expression.HasPrefix(pattern):
		return ModeExpression
	case schema.IsRegexPattern(pattern):
		return ModeRegex
	default:
		return ModeKey
	}
}

// Apply runs extractors in declaration order. Each found value is written to
// scope immediately, so later extractors in the same list see it. Values
// that cannot be produced are logged and left out of the returned map.
func Apply(raw *response.Raw, list []schema.Extractor, scope *vars.Scope, logger *slog.Logger) map[string]string {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[string]string, len(list))
	for _, ex := range list {
		target := Target(ex)
		value, ok, err := Value(raw, ex.Pattern, scope.Snapshot())
		if err != nil {
			logger.Warn("extractor failed", "variable", target, "pattern", ex.Pattern, "err", err)
			continue
		}
		if !ok {
			logger.Debug("extractor found no value", "variable", target, "pattern", ex.Pattern)
			continue
		}
		scope.Set(target, value)
		out[target] = value
	}
	return out
}

// Target is the variable an extractor writes to.
func Target(ex schema.Extractor) string {
	if ex.Variable != "" {
		return ex.Variable
	}
	return ex.Name
}

// Value evaluates one pattern against raw. ok is false when the pattern
// produced nothing; err is set only for expression or regex failures.
func Value(raw *response.Raw, pattern string, scope map[string]string) (string, bool, error) {
	if raw == nil {
		raw = &response.Raw{}
	}
	switch ModeOf(pattern) {
	case ModeExpression:
		env := expression.Builtins()
		env["parsed"] = maps.Clone(raw.Parsed)
		env["stdout"] = raw.Stdout
		for k, v := range scope {
			env[k] = v
		}
		for k, v := range raw.Parsed {
			env[k] = v
		}
		result, err := expression.Eval(expression.Strip(pattern), env)
		if err != nil {
			return "", false, err
		}
		if result == nil {
			return "", false, nil
		}
		return expression.Format(result), true, nil
	case ModeRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", false, fmt.Errorf("compile %q: %w", pattern, err)
		}
		m := re.FindStringSubmatch(raw.Stdout)
		if len(m) < 2 {
			return "", false, nil
		}
		return m[1], true, nil
	default:
		v, ok := raw.Lookup(strings.TrimSpace(pattern))
		return v, ok, nil
	}
}
