package assertions

import (
	"fmt"
	"strings"
)

// ParseObject builds an Assertion from the structured form
//
//	{expect: path, to: {equal: v}}
//
// where "to" holds exactly one of equal, not, exist, contain, be, match or
// have. Operand values are used as decoded, without text coercion.
func ParseObject(obj map[string]any) (*Assertion, error) {
	path, ok := obj["expect"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: object assertion needs a string \"expect\"", ErrUnknownPattern)
	}
	to, ok := obj["to"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: object assertion needs a \"to\" mapping", ErrUnknownPattern)
	}
	kind, value, err := objectClause(to, false)
	if err != nil {
		return nil, err
	}
	return &Assertion{Kind: kind, Path: path, Value: value, Raw: fmt.Sprintf("%v", obj)}, nil
}

// EvaluateObject parses and evaluates the structured form.
func EvaluateObject(obj map[string]any, ctx Context) *Result {
	a, err := ParseObject(obj)
	if err != nil {
		return errorResult("object assertion", err)
	}
	return a.Evaluate(ctx)
}

func objectClause(m map[string]any, negated bool) (Kind, any, error) {
	if len(m) != 1 {
		return 0, nil, fmt.Errorf("%w: expected exactly one clause, got %d", ErrUnknownPattern, len(m))
	}
	for key, v := range m {
		if rest, ok := strings.CutPrefix(key, "not."); ok {
			return objectClause(map[string]any{rest: v}, true)
		}
		switch key {
		case "not":
			inner, ok := v.(map[string]any)
			if !ok || negated {
				break
			}
			return objectClause(inner, true)
		case "equal", "eql":
			return pick(negated, KindNotEqual, KindEqual), v, nil
		case "exist":
			want, _ := v.(bool)
			if want != negated {
				return KindExists, nil, nil
			}
			return KindNotExists, nil, nil
		case "contain", "include":
			return pick(negated, KindNotContains, KindContains), v, nil
		case "match":
			if negated {
				break
			}
			return KindMatches, Regex{Pattern: fmt.Sprint(v)}, nil
		case "be":
			inner, ok := v.(map[string]any)
			if !ok || negated || len(inner) != 1 {
				break
			}
			return beClause(inner)
		case "have":
			inner, ok := v.(map[string]any)
			if !ok || negated || len(inner) != 1 {
				break
			}
			if n, ok := inner["length"]; ok {
				return KindLength, n, nil
			}
			if p, ok := inner["property"]; ok {
				return KindHasProperty, fmt.Sprint(p), nil
			}
		}
		return 0, nil, fmt.Errorf("%w: unsupported clause %q", ErrUnknownPattern, key)
	}
	return 0, nil, ErrUnknownPattern
}

func beClause(m map[string]any) (Kind, any, error) {
	for key, v := range m {
		switch key {
		case "above":
			return KindGreater, v, nil
		case "below":
			return KindLess, v, nil
		case "least":
			return KindGreaterOrEqual, v, nil
		case "most":
			return KindLessOrEqual, v, nil
		case "a", "an":
			return KindTypeIs, fmt.Sprint(v), nil
		}
		return 0, nil, fmt.Errorf("%w: unsupported clause \"be.%s\"", ErrUnknownPattern, key)
	}
	return 0, nil, ErrUnknownPattern
}

func pick(negated bool, ifNegated, otherwise Kind) Kind {
	if negated {
		return ifNegated
	}
	return otherwise
}
