// Package vars holds the variable scope accumulated across the steps of a
// single scenario run.
package vars

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Scope is an ordered, mutable name → value mapping owned by exactly one
// run. Keys keep the position of their first assignment; later writes
// replace the value in place. Scope is not safe for concurrent use.
type Scope struct {
	m *orderedmap.OrderedMap[string, string]
}

// New creates an empty scope.
func New() *Scope {
	return &Scope{m: orderedmap.New[string, string]()}
}

// FromPairs creates a scope seeded with the given pairs in order.
func FromPairs(pairs ...Pair) *Scope {
	s := New()
	for _, p := range pairs {
		s.Set(p.Key, p.Value)
	}
	return s
}

// Pair is a single scope entry.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Set assigns name = value, overwriting any previous value.
func (s *Scope) Set(name, value string) {
	s.m.Set(name, value)
}

// Get returns the value for name and whether it is set.
func (s *Scope) Get(name string) (string, bool) {
	return s.m.Get(name)
}

// Has reports whether name is set (an empty value counts as set).
func (s *Scope) Has(name string) bool {
	_, ok := s.m.Get(name)
	return ok
}

// Len returns the number of entries.
func (s *Scope) Len() int {
	return s.m.Len()
}

// Keys returns entry names in insertion order.
func (s *Scope) Keys() []string {
	keys := make([]string, 0, s.m.Len())
	for p := s.m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Pairs returns a copy of all entries in insertion order.
func (s *Scope) Pairs() []Pair {
	out := make([]Pair, 0, s.m.Len())
	for p := s.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, Pair{Key: p.Key, Value: p.Value})
	}
	return out
}

// Snapshot returns an unordered copy of the scope.
func (s *Scope) Snapshot() map[string]string {
	out := make(map[string]string, s.m.Len())
	for p := s.m.Oldest(); p != nil; p = p.Next() {
		out[p.Key] = p.Value
	}
	return out
}

// Merge assigns every entry of values into the scope. Iteration order of a
// Go map is random, so callers needing a stable order should use Set.
func (s *Scope) Merge(values map[string]string) {
	for k, v := range values {
		s.m.Set(k, v)
	}
}
