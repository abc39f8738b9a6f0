package assertions

// Kind tags an assertion variant.
type Kind int

const (
	KindEqual Kind = iota + 1
	KindNotEqual
	KindExists
	KindNotExists
	KindContains
	KindNotContains
	KindGreater
	KindLess
	KindGreaterOrEqual
	KindLessOrEqual
	KindTypeIs
	KindBoolean
	KindLength
	KindMatches
	KindHasProperty
)

var kindNames = map[Kind]string{
	KindEqual:          "equal",
	KindNotEqual:       "not_equal",
	KindExists:         "exists",
	KindNotExists:      "not_exists",
	KindContains:       "contains",
	KindNotContains:    "not_contains",
	KindGreater:        "greater_than",
	KindLess:           "less_than",
	KindGreaterOrEqual: "greater_or_equal",
	KindLessOrEqual:    "less_or_equal",
	KindTypeIs:         "type",
	KindBoolean:        "boolean",
	KindLength:         "length",
	KindMatches:        "matches",
	KindHasProperty:    "has_property",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Assertion is a parsed assertion. Value holds the coerced literal operand
// (nil for Exists/NotExists); Raw keeps the original source text.
type Assertion struct {
	Kind  Kind
	Path  string
	Value any
	Raw   string
}

// Regex is a literal written as /pattern/flags.
type Regex struct {
	Pattern string
	Flags   string
}

func (r Regex) String() string {
	return "/" + r.Pattern + "/" + r.Flags
}
