// Package resolve substitutes {{...}} placeholders in scenario strings.
package resolve

import (
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ormasoftchile/clirun/pkg/expression"
	"github.com/ormasoftchile/clirun/pkg/vars"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Reserved dynamic token names.
const (
	DynTimestamp = "$timestamp"
	DynRandomInt = "$randomInt"
	DynRandomID  = "$randomId"
	DynDateTime  = "$dateTime"
	DynDate      = "$date"
	DynTime      = "$time"
	DynUUID      = "$uuid"
)

// Resolver resolves placeholders against a persistent scope.
type Resolver struct {
	Scope  *vars.Scope
	Logger *slog.Logger

	// Now and Env are replaceable for tests.
	Now func() time.Time
	Env func() []string
}

// New creates a resolver bound to scope.
func New(scope *vars.Scope, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Scope:  scope,
		Logger: logger,
		Now:    time.Now,
		Env:    os.Environ,
	}
}

// Resolve replaces every {{...}} token in text. extra takes precedence
// over the scope. Tokens that cannot be resolved are left verbatim.
func (r *Resolver) Resolve(text string, extra map[string]string) string {
	if !strings.Contains(text, openDelim) {
		return text
	}

	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := findClose(rest, start+len(openDelim))
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		token := rest[start : end+len(closeDelim)]
		content := rest[start+len(openDelim) : end]
		if value, ok := r.resolveToken(content, extra); ok {
			b.WriteString(value)
		} else {
			b.WriteString(token)
		}
		rest = rest[end+len(closeDelim):]
	}
	return b.String()
}

// ResolveAny resolves v when it is a string and returns every other value
// unchanged.
func (r *Resolver) ResolveAny(v any, extra map[string]string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return r.Resolve(s, extra)
}

// findClose returns the index of the first "}}" at or after from that is
// not preceded by a backslash.
func findClose(s string, from int) int {
	for i := from; i+1 < len(s); i++ {
		if s[i] == '}' && s[i+1] == '}' && (i == 0 || s[i-1] != '\\') {
			return i
		}
	}
	return -1
}

func (r *Resolver) resolveToken(content string, extra map[string]string) (string, bool) {
	if expression.HasPrefix(content) {
		code := expression.Strip(content)
		out, err := expression.Eval(code, r.ExpressionEnv(extra))
		if err != nil {
			r.Logger.Warn("placeholder expression failed", "expr", code, "err", err)
			return "", false
		}
		return expression.Format(out), true
	}

	name := strings.TrimSpace(content)
	if strings.HasPrefix(name, "$") {
		if v, ok := r.dynamic(name); ok {
			return v, true
		}
	}
	if v, ok := extra[name]; ok {
		return v, true
	}
	if r.Scope != nil {
		if v, ok := r.Scope.Get(name); ok {
			return v, true
		}
	}
	return "", false
}

func (r *Resolver) dynamic(name string) (string, bool) {
	now := r.Now()
	switch name {
	case DynTimestamp:
		return strconv.FormatInt(now.UnixMilli(), 10), true
	case DynRandomInt:
		return strconv.Itoa(rand.IntN(1000)), true
	case DynRandomID:
		return strconv.FormatInt(now.UnixMilli(), 10) + strconv.Itoa(100000+rand.IntN(900000)), true
	case DynDateTime:
		return now.Format("2006-01-02T15:04:05.000Z07:00"), true
	case DynDate:
		return now.Format("20060102"), true
	case DynTime:
		return now.Format("150405"), true
	case DynUUID:
		return uuid.NewString(), true
	}
	return "", false
}

// ExpressionEnv builds the evaluation environment for `js:` tokens. Later
// layers override earlier ones: helpers, dynamics, env, variables, scope
// entries, then extra.
func (r *Resolver) ExpressionEnv(extra map[string]string) map[string]any {
	now := r.Now()
	env := expression.Builtins()
	env["timestamp"] = now.UnixMilli()
	env["randomInt"] = rand.IntN(1000)
	env["date"] = now.Format("20060102")
	env["time"] = now.Format("150405")
	env["env"] = environMap(r.Env())

	var scope map[string]string
	if r.Scope != nil {
		scope = r.Scope.Snapshot()
	} else {
		scope = map[string]string{}
	}
	env["variables"] = scope
	for k, v := range scope {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}
