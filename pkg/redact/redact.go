// Package redact masks sensitive text in response bodies before they are
// embedded in reports.
package redact

import (
	"fmt"
	"regexp"
)

// Rule is a regex pattern-replacement pair.
type Rule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Replace string `yaml:"replace" json:"replace"`
}

// Redactor applies compiled rules in order. A nil Redactor leaves text
// unchanged.
type Redactor struct {
	rules []compiled
}

type compiled struct {
	re      *regexp.Regexp
	replace string
}

// Compile compiles rules. An empty list yields a nil Redactor.
func Compile(rules []Rule) (*Redactor, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	r := &Redactor{}
	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact rule %d: %w", i, err)
		}
		r.rules = append(r.rules, compiled{re: re, replace: rule.Replace})
	}
	return r, nil
}

// Apply returns text with every rule applied. Replacements may use $1
// style group references.
func (r *Redactor) Apply(text string) string {
	if r == nil {
		return text
	}
	for _, c := range r.rules {
		text = c.re.ReplaceAllString(text, c.replace)
	}
	return text
}

// Len returns the number of rules.
func (r *Redactor) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}
