// Package expression evaluates the `js:` expressions scenario authors embed
// in placeholders, extractors and test scripts.
//
// Expressions are compiled with expr-lang against an explicit environment
// map. Nothing outside that map is reachable: no file system, no process
// spawning, no network. Identifiers that are not in the environment fail
// compilation.
package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/parser"
)

// Prefix marks a pattern or placeholder as an expression.
const Prefix = "js:"

// HasPrefix reports whether s carries the expression prefix.
func HasPrefix(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), Prefix)
}

// Strip removes the expression prefix and surrounding whitespace.
func Strip(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), Prefix))
}

// Eval compiles and runs code against env.
func Eval(code string, env map[string]any) (any, error) {
	program, err := expr.Compile(code, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", code, err)
	}
	return out, nil
}

// EvalBool runs code that must produce a boolean.
func EvalBool(code string, env map[string]any) (bool, error) {
	program, err := expr.Compile(code, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", code, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return bool (got %T)", code, out)
	}
	return b, nil
}

// Check parses code without an environment. Used by validation, where the
// variables available at run time are not yet known.
func Check(code string) error {
	if _, err := parser.Parse(code); err != nil {
		return fmt.Errorf("parse %q: %w", code, err)
	}
	return nil
}

// Builtins returns the helper functions every expression environment
// starts from.
func Builtins() map[string]any {
	return map[string]any{
		"parseInt":           parseInt,
		"parseFloat":         parseFloat,
		"Number":             toNumber,
		"String":             Format,
		"encodeURIComponent": encodeURIComponent,
		"decodeURIComponent": decodeURIComponent,
		"Math":               mathObject,
		"Date":               dateObject,
		"Array":              arrayObject,
		"Object":             objectObject,
	}
}

// Global objects. Each is a map of functions so `Math.floor(x)` compiles as
// a member call. Arguments are untyped because expr literals may arrive as
// int or float64.
var (
	mathObject = map[string]any{
		"floor":  func(v any) float64 { return math.Floor(toNumber(v)) },
		"ceil":   func(v any) float64 { return math.Ceil(toNumber(v)) },
		"round":  func(v any) float64 { return math.Floor(toNumber(v) + 0.5) },
		"trunc":  func(v any) float64 { return math.Trunc(toNumber(v)) },
		"abs":    func(v any) float64 { return math.Abs(toNumber(v)) },
		"sqrt":   func(v any) float64 { return math.Sqrt(toNumber(v)) },
		"pow":    func(x, y any) float64 { return math.Pow(toNumber(x), toNumber(y)) },
		"min":    mathMin,
		"max":    mathMax,
		"random": rand.Float64,
		"PI":     math.Pi,
	}
	dateObject = map[string]any{
		"now": func() int64 { return time.Now().UnixMilli() },
	}
	arrayObject = map[string]any{
		"isArray": isArray,
	}
	objectObject = map[string]any{
		"keys":   objectKeys,
		"values": objectValues,
	}
)

// mathMin returns Infinity with no arguments and NaN if any argument is
// not numeric.
func mathMin(vs ...any) float64 {
	out := math.Inf(1)
	for _, v := range vs {
		f := toNumber(v)
		if math.IsNaN(f) {
			return f
		}
		out = math.Min(out, f)
	}
	return out
}

func mathMax(vs ...any) float64 {
	out := math.Inf(-1)
	for _, v := range vs {
		f := toNumber(v)
		if math.IsNaN(f) {
			return f
		}
		out = math.Max(out, f)
	}
	return out
}

func isArray(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// objectKeys lists the keys of a map in sorted order. Non-maps have none.
func objectKeys(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return []any{}
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, Format(k.Interface()))
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// objectValues lists map values in key order.
func objectValues(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return []any{}
	}
	byKey := make(map[string]any, rv.Len())
	for _, k := range rv.MapKeys() {
		byKey[Format(k.Interface())] = rv.MapIndex(k).Interface()
	}
	keys := objectKeys(v)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = byKey[k.(string)]
	}
	return out
}

// Format renders an evaluation result as text. Integral floats print
// without a fractional part and NaN prints as "NaN".
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Format(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toNumber converts v the way a loosely typed script would: numeric
// strings parse, booleans become 0/1, anything else is NaN.
func toNumber(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// parseInt reads the leading integer of s ("12px" → 12).
func parseInt(v any) float64 {
	s := strings.TrimSpace(Format(v))
	end := 0
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return math.NaN()
	}
	return float64(n)
}

// parseFloat reads the longest numeric prefix of s.
func parseFloat(v any) float64 {
	s := strings.TrimSpace(Format(v))
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func decodeURIComponent(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
