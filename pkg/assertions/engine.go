package assertions

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Evaluate parses and evaluates assertion text. Text that matches no rule
// produces an error result.
func Evaluate(text string, ctx Context) *Result {
	a, err := Parse(text)
	if err != nil {
		return errorResult(text, err)
	}
	return a.Evaluate(ctx)
}

// Evaluate checks the assertion against ctx.
func (a *Assertion) Evaluate(ctx Context) *Result {
	actual := ctx.Lookup(a.Path)
	r := &Result{Type: a.Kind.String(), Actual: actual, Expected: a.Value}

	var pass, fail string
	switch a.Kind {
	case KindEqual:
		r.Passed = looseEqual(actual, a.Value)
		pass = fmt.Sprintf("%s equals %s", a.Path, display(a.Value))
		fail = fmt.Sprintf("expected %s to equal %s, got %s", a.Path, display(a.Value), display(actual))
	case KindNotEqual:
		r.Passed = !looseEqual(actual, a.Value)
		pass = fmt.Sprintf("%s does not equal %s", a.Path, display(a.Value))
		fail = fmt.Sprintf("expected %s to not equal %s", a.Path, display(a.Value))
	case KindExists:
		r.Expected = nil
		r.Passed = !isNullish(actual)
		pass = fmt.Sprintf("%s exists", a.Path)
		fail = fmt.Sprintf("expected %s to exist", a.Path)
	case KindNotExists:
		r.Expected = nil
		r.Passed = isNullish(actual)
		pass = fmt.Sprintf("%s does not exist", a.Path)
		fail = fmt.Sprintf("expected %s to not exist, got %s", a.Path, display(actual))
	case KindContains, KindNotContains:
		found := contains(actual, a.Value)
		r.Passed = found == (a.Kind == KindContains)
		if found {
			pass = fmt.Sprintf("%s contains %s", a.Path, display(a.Value))
			fail = fmt.Sprintf("expected %s to not contain %s", a.Path, display(a.Value))
		} else {
			pass = fmt.Sprintf("%s does not contain %s", a.Path, display(a.Value))
			fail = fmt.Sprintf("expected %s to contain %s, got %s", a.Path, display(a.Value), display(actual))
		}
	case KindGreater, KindLess, KindGreaterOrEqual, KindLessOrEqual:
		op := compareOps[a.Kind]
		r.Passed = compareNumbers(a.Kind, toNumber(actual), toNumber(a.Value))
		pass = fmt.Sprintf("%s %s %s", a.Path, op, display(a.Value))
		fail = fmt.Sprintf("expected %s %s %s, got %s", a.Path, op, display(a.Value), display(actual))
	case KindTypeIs:
		want := strings.ToLower(textOf(a.Value))
		got := typeName(actual)
		r.Passed = got == want || (want == "object" && got == "array")
		pass = fmt.Sprintf("%s is %s", a.Path, want)
		fail = fmt.Sprintf("expected %s to be %s, got %s", a.Path, want, got)
	case KindBoolean:
		want, _ := a.Value.(bool)
		r.Passed = truthValue(actual) == fmt.Sprint(want)
		pass = fmt.Sprintf("%s is %t", a.Path, want)
		fail = fmt.Sprintf("expected %s to be %t, got %s", a.Path, want, display(actual))
	case KindLength:
		n, ok := lengthOf(actual)
		r.Passed = ok && float64(n) == toNumber(a.Value)
		pass = fmt.Sprintf("%s has length %s", a.Path, display(a.Value))
		if ok {
			fail = fmt.Sprintf("expected %s to have length %s, got %d", a.Path, display(a.Value), n)
		} else {
			fail = fmt.Sprintf("expected %s to have a length, got %s", a.Path, display(actual))
		}
	case KindMatches:
		re, err := compileRegex(a.Value)
		if err != nil {
			r.Error = err.Error()
			r.Message = fmt.Sprintf("invalid regex: %v", err)
			return r
		}
		r.Passed = !isNullish(actual) && re.MatchString(textOf(actual))
		pass = fmt.Sprintf("%s matches %s", a.Path, display(a.Value))
		fail = fmt.Sprintf("expected %s to match %s, got %s", a.Path, display(a.Value), display(actual))
	case KindHasProperty:
		name := textOf(a.Value)
		r.Passed = !isUndefined(property(actual, name)) && isObject(actual)
		pass = fmt.Sprintf("%s has property %q", a.Path, name)
		fail = fmt.Sprintf("expected %s to have property %q", a.Path, name)
	default:
		r.Error = ErrUnknownPattern.Error()
		r.Message = fmt.Sprintf("unsupported assertion kind %d", a.Kind)
		return r
	}
	if r.Passed {
		r.Message = pass
	} else {
		r.Message = fail
	}
	return r
}

var compareOps = map[Kind]string{
	KindGreater:        ">",
	KindLess:           "<",
	KindGreaterOrEqual: ">=",
	KindLessOrEqual:    "<=",
}

// compareNumbers is false whenever either side is NaN.
func compareNumbers(kind Kind, a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch kind {
	case KindGreater:
		return a > b
	case KindLess:
		return a < b
	case KindGreaterOrEqual:
		return a >= b
	case KindLessOrEqual:
		return a <= b
	}
	return false
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	}
	if isNullish(haystack) {
		return false
	}
	return strings.Contains(textOf(haystack), textOf(needle))
}

func truthValue(v any) string {
	switch x := v.(type) {
	case bool:
		return fmt.Sprint(x)
	case string:
		return strings.ToLower(strings.TrimSpace(x))
	}
	return ""
}

func isObject(v any) bool {
	switch v.(type) {
	case map[string]any, map[string]string:
		return true
	}
	return false
}

func compileRegex(v any) (*regexp.Regexp, error) {
	var pattern, flags string
	switch x := v.(type) {
	case Regex:
		pattern, flags = x.Pattern, x.Flags
	default:
		pattern = textOf(v)
	}
	var prefix string
	for _, f := range flags {
		if strings.ContainsRune("ims", f) {
			prefix += string(f)
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	return regexp.Compile(pattern)
}
