package assertions

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ormasoftchile/clirun/pkg/expression"
)

type undefinedValue struct{}

func (undefinedValue) String() string { return "undefined" }

// Undefined is the value of a path that does not resolve.
var Undefined any = undefinedValue{}

func isUndefined(v any) bool {
	_, ok := v.(undefinedValue)
	return ok
}

func isNullish(v any) bool {
	return v == nil || isUndefined(v)
}

// toNumber converts v the way a loosely typed script would: booleans become
// 0 or 1, blank strings 0, unparsable values NaN.
func toNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case undefinedValue:
		return math.NaN()
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return math.NaN()
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// looseEqual compares two values with type coercion: "0" equals 0,
// "true" does not equal true but 1 does.
func looseEqual(a, b any) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if isNumeric(a) || isNumeric(b) || aBool || bBool {
		return toNumber(a) == toNumber(b)
	}
	return expression.Format(a) == expression.Format(b)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case undefinedValue:
		return "undefined"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string:
		return "array"
	case map[string]any, map[string]string:
		return "object"
	}
	if isNumeric(v) {
		return "number"
	}
	return "object"
}

func textOf(v any) string {
	switch x := v.(type) {
	case undefinedValue:
		return ""
	case Regex:
		return x.String()
	}
	return expression.Format(v)
}

// display renders a value for messages: strings quoted, everything else in
// script notation.
func display(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case undefinedValue:
		return "undefined"
	case Regex:
		return x.String()
	}
	return expression.Format(v)
}

func lengthOf(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case []any:
		return len(x), true
	case []string:
		return len(x), true
	}
	return 0, false
}

// Context is what paths resolve against: the flat variable scope and the
// structured response of the step under test.
type Context struct {
	Scope    map[string]string
	Response any
}

// Lookup resolves a path. An all-caps token is read straight from the
// scope. Otherwise the path is split on dots: a first segment found in the
// scope (and not literally "response") walks from that variable, anything
// else walks the response object. Missing links yield Undefined.
func (c Context) Lookup(path string) any {
	path = strings.TrimSpace(path)
	if capsToken.MatchString(path) {
		if v, ok := c.Scope[path]; ok {
			return v
		}
		return Undefined
	}
	segs := strings.Split(path, ".")
	if segs[0] != "response" {
		if v, ok := c.Scope[segs[0]]; ok {
			return walk(v, segs[1:])
		}
		return walk(c.Response, segs)
	}
	return walk(c.Response, segs[1:])
}

func walk(v any, segs []string) any {
	for _, s := range segs {
		v = property(v, s)
		if isUndefined(v) {
			return v
		}
	}
	return v
}

func property(v any, key string) any {
	switch x := v.(type) {
	case map[string]any:
		if p, ok := x[key]; ok {
			return p
		}
		if p, ok := x[strings.ToLower(key)]; ok {
			return p
		}
	case map[string]string:
		if p, ok := x[key]; ok {
			return p
		}
		if p, ok := x[strings.ToLower(key)]; ok {
			return p
		}
	case []any:
		if key == "length" {
			return float64(len(x))
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(x) {
			return x[i]
		}
	case []string:
		if key == "length" {
			return float64(len(x))
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(x) {
			return x[i]
		}
	case string:
		if key == "length" {
			return float64(utf8.RuneCountInString(x))
		}
	}
	return Undefined
}
