package contracts

import (
	"slices"
	"sort"
)

// StringSet is an unordered set of strings. Serialise it through Sorted so
// output ordering never depends on map iteration.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s StringSet) Add(values ...string) {
	for _, v := range values {
		s[v] = struct{}{}
	}
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Intersect returns the values present in both s and other.
func (s StringSet) Intersect(other StringSet) StringSet {
	out := make(StringSet)
	for v := range s {
		if other.Has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s StringSet) Equal(other StringSet) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexicographic order. The result is never nil.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SortedUnique returns a de-duplicated, lexicographically sorted copy of values.
// The input slice is not modified.
func SortedUnique(values []string) []string {
	out := slices.Clone(values)
	if out == nil {
		out = []string{}
	}
	sort.Strings(out)
	return slices.Compact(out)
}
