// Package assertions parses human-written assertions into a small AST and
// evaluates them against step output.
//
// Two surfaces exist. The rich engine (Parse, Evaluate, EvaluateObject)
// resolves dotted paths against the variable scope and a response object
// and is used for authoring and offline validation. The inline evaluator
// (ParseInline, EvaluateInline) works on a flat map of variables and is the
// one the execution engine runs for every test.
package assertions

import (
	"errors"
	"fmt"
)

// ErrUnknownPattern is returned when an assertion matches no grammar rule.
// It is reported as an error, never as a plain failure.
var ErrUnknownPattern = errors.New("unknown assertion pattern")

// Result is the outcome of evaluating a single assertion.
type Result struct {
	Type     string `json:"type"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
	Actual   any    `json:"actual,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IsError reports whether the assertion could not be evaluated at all, as
// opposed to being evaluated and failing.
func (r *Result) IsError() bool {
	return r.Error != ""
}

func errorResult(text string, err error) *Result {
	return &Result{
		Type:    "error",
		Passed:  false,
		Message: fmt.Sprintf("%s: %v", text, err),
		Error:   err.Error(),
	}
}
