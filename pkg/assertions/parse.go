package assertions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	capsToken     = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	numberLiteral = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
	regexLiteral  = regexp.MustCompile(`^/(.*)/([a-z]*)$`)
	expectCall    = regexp.MustCompile(`^expect\((.+?)\)\.to\.(.+)$`)
)

type rule struct {
	kind Kind
	re   *regexp.Regexp
}

// Rules are tried in order and the first match wins. Order is the
// precedence: the expect(...) form is tried before any infix rule, a
// comparison operator binds to the first token ("A==B contains c" is an
// equality), and "is true" or "is false" beats "is <type>". Negated rules
// sit before their positive forms.
var chainRules = []rule{
	{KindNotEqual, regexp.MustCompile(`^not\.(?:be\.)?(?:equal|eql)\((.*)\)$`)},
	{KindEqual, regexp.MustCompile(`^(?:be\.)?(?:equal|eql)\((.*)\)$`)},
	{KindNotExists, regexp.MustCompile(`^not\.exist$`)},
	{KindExists, regexp.MustCompile(`^exist$`)},
	{KindNotContains, regexp.MustCompile(`^not\.(?:contain|include)\((.*)\)$`)},
	{KindContains, regexp.MustCompile(`^(?:contain|include)\((.*)\)$`)},
	{KindGreater, regexp.MustCompile(`^be\.(?:above|greaterThan)\((.*)\)$`)},
	{KindLess, regexp.MustCompile(`^be\.(?:below|lessThan)\((.*)\)$`)},
	{KindGreaterOrEqual, regexp.MustCompile(`^be\.at\.least\((.*)\)$`)},
	{KindLessOrEqual, regexp.MustCompile(`^be\.at\.most\((.*)\)$`)},
	{KindBoolean, regexp.MustCompile(`^be\.(true|false)$`)},
	{KindTypeIs, regexp.MustCompile(`^be\.an?\((.*)\)$`)},
	{KindLength, regexp.MustCompile(`^have\.(?:length|lengthOf)\((.*)\)$`)},
	{KindMatches, regexp.MustCompile(`^match\((.*)\)$`)},
	{KindHasProperty, regexp.MustCompile(`^have\.property\((.*)\)$`)},
}

var infixRules = []rule{
	{KindLength, regexp.MustCompile(`^(\S+)\s+(?:length\s*(?:==|is)|has\s+length)\s*(\S+)$`)},
	{0, regexp.MustCompile(`^(\S+?)\s*(==|!=|>=|<=|>|<)\s*(.+)$`)},
	{KindNotExists, regexp.MustCompile(`^(\S+)\s+(?:does\s+not\s+exist|not\s+exists?)$`)},
	{KindExists, regexp.MustCompile(`^(\S+)\s+exists?$`)},
	{KindNotContains, regexp.MustCompile(`^(\S+)\s+(?:does\s+not\s+contain|not\s+contains?)\s+(.+)$`)},
	{KindContains, regexp.MustCompile(`^(\S+)\s+(?:contains?|includes?)\s+(.+)$`)},
	{KindBoolean, regexp.MustCompile(`^(\S+)\s+is\s+(true|false)$`)},
	{KindTypeIs, regexp.MustCompile(`^(\S+)\s+is\s+(?:an?\s+)?(\w+)$`)},
	{KindMatches, regexp.MustCompile(`^(\S+)\s+matches\s+(.+)$`)},
	{KindHasProperty, regexp.MustCompile(`^(\S+)\s+has\s+(?:property\s+)?(\S+)$`)},
}

var comparisonKinds = map[string]Kind{
	"==": KindEqual,
	"!=": KindNotEqual,
	">":  KindGreater,
	"<":  KindLess,
	">=": KindGreaterOrEqual,
	"<=": KindLessOrEqual,
}

// Parse turns assertion text into an Assertion. Both the chained form
// (expect(path).to.equal(value)) and the infix form (path == value) are
// accepted.
func Parse(text string) (*Assertion, error) {
	src := strings.TrimSpace(text)
	if src == "" {
		return nil, fmt.Errorf("%w: empty assertion", ErrUnknownPattern)
	}
	if m := expectCall.FindStringSubmatch(src); m != nil {
		return parseChain(src, unquote(m[1]), m[2])
	}
	for _, r := range infixRules {
		m := r.re.FindStringSubmatch(src)
		if m == nil {
			continue
		}
		a := &Assertion{Kind: r.kind, Path: m[1], Raw: src}
		switch {
		case r.kind == 0:
			a.Kind = comparisonKinds[m[2]]
			a.Value = Literal(m[3])
		case len(m) > 2:
			a.Value = operand(r.kind, m[2])
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, src)
}

func parseChain(src, path, tail string) (*Assertion, error) {
	for _, r := range chainRules {
		m := r.re.FindStringSubmatch(tail)
		if m == nil {
			continue
		}
		a := &Assertion{Kind: r.kind, Path: path, Raw: src}
		if len(m) > 1 {
			a.Value = operand(r.kind, m[1])
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, src)
}

func operand(kind Kind, raw string) any {
	switch kind {
	case KindBoolean:
		return raw == "true"
	case KindTypeIs, KindHasProperty:
		return unquote(raw)
	case KindMatches:
		raw = strings.TrimSpace(raw)
		if m := regexLiteral.FindStringSubmatch(raw); m != nil {
			return Regex{Pattern: m[1], Flags: m[2]}
		}
		return Regex{Pattern: unquote(raw)}
	}
	return Literal(raw)
}

// Literal coerces an operand written in assertion text: quoted text stays
// a string, true/false/null become their values and numeric text becomes a
// number. Anything else is a bare string.
func Literal(raw string) any {
	s := strings.TrimSpace(raw)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	case "undefined":
		return Undefined
	}
	if numberLiteral.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
