package assertions

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Inline is a parsed per-test assertion of the form "field OP value",
// "field exists" or "field [not] contains text".
type Inline struct {
	Field string
	Op    string
	Value string
}

var (
	inlineExists   = regexp.MustCompile(`^(\w+)\s+(not\s+)?exists$`)
	inlineContains = regexp.MustCompile(`^(\w+)\s+(not\s+)?contains\s+(.+)$`)
	inlineCompare  = regexp.MustCompile(`^(\w+)\s*(==|!=|>=|<=|>|<)\s*(.+)$`)
)

// ParseInline parses a per-test assertion.
func ParseInline(text string) (*Inline, error) {
	src := strings.TrimSpace(text)
	if m := inlineExists.FindStringSubmatch(src); m != nil {
		op := "exists"
		if m[2] != "" {
			op = "not exists"
		}
		return &Inline{Field: m[1], Op: op}, nil
	}
	if m := inlineContains.FindStringSubmatch(src); m != nil {
		op := "contains"
		if m[2] != "" {
			op = "not contains"
		}
		return &Inline{Field: m[1], Op: op, Value: unquote(m[3])}, nil
	}
	if m := inlineCompare.FindStringSubmatch(src); m != nil {
		return &Inline{Field: m[1], Op: m[2], Value: unquote(m[3])}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, src)
}

func (in *Inline) String() string {
	if in.Op == "exists" || in.Op == "not exists" {
		return in.Field + " " + in.Op
	}
	return in.Field + " " + in.Op + " " + in.Value
}

// EvaluateInline parses and evaluates text over a flat variable map.
func EvaluateInline(text string, values map[string]string) *Result {
	in, err := ParseInline(text)
	if err != nil {
		return errorResult(text, err)
	}
	return in.Evaluate(values)
}

// Evaluate checks the assertion against values. Fields are matched
// exactly; an absent field compares as NaN in ordering operators.
func (in *Inline) Evaluate(values map[string]string) *Result {
	actual, present := values[in.Field]
	r := &Result{Type: in.Op, Expected: in.Value}
	if present {
		r.Actual = actual
	}

	switch in.Op {
	case "exists":
		r.Expected = nil
		r.Passed = present
	case "not exists":
		r.Expected = nil
		r.Passed = !present
	case "contains":
		r.Passed = present && strings.Contains(actual, in.Value)
	case "not contains":
		r.Passed = !strings.Contains(actual, in.Value)
	case "==":
		r.Passed = present && inlineEqual(actual, in.Value)
	case "!=":
		r.Passed = !present || !inlineEqual(actual, in.Value)
	case ">", "<", ">=", "<=":
		a := math.NaN()
		if present {
			a = inlineNumber(actual)
		}
		r.Passed = compareNumbers(inlineKinds[in.Op], a, inlineNumber(in.Value))
	default:
		r.Error = ErrUnknownPattern.Error()
		r.Message = fmt.Sprintf("unsupported operator %q", in.Op)
		return r
	}

	shown := "undefined"
	if present {
		shown = strconv.Quote(actual)
	}
	if r.Passed {
		r.Message = fmt.Sprintf("%s passed", in)
	} else {
		r.Message = fmt.Sprintf("%s failed: %s is %s", in, in.Field, shown)
	}
	return r
}

var inlineKinds = map[string]Kind{
	">":  KindGreater,
	"<":  KindLess,
	">=": KindGreaterOrEqual,
	"<=": KindLessOrEqual,
}

func inlineNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// inlineEqual compares numerically when both sides are numbers, so
// "0000" == 0, treats true/false case-insensitively and falls back to
// exact text otherwise.
func inlineEqual(actual, expected string) bool {
	a, b := inlineNumber(actual), inlineNumber(expected)
	if !math.IsNaN(a) && !math.IsNaN(b) {
		return a == b
	}
	if e := strings.ToLower(expected); e == "true" || e == "false" {
		return strings.ToLower(strings.TrimSpace(actual)) == e
	}
	return actual == expected
}
