// Package tags implements ordered tag sets, keyword autotagging, and
// namespace-derived tagging from page titles.
package tags

import (
	"sort"
	"strings"
)

// Set is an insertion-ordered collection of unique tag names.
// The zero value is ready to use.
type Set struct {
	order []string
	index map[string]struct{}
}

// NewSet returns a Set seeded with the given names, first-seen order
// preserved.
func NewSet(names ...string) *Set {
	s := &Set{}
	s.Add(names...)
	return s
}

// Add unions names into the set. Names already present keep their
// original position.
func (s *Set) Add(names ...string) {
	if s.index == nil {
		s.index = make(map[string]struct{}, len(names))
	}
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := s.index[n]; ok {
			continue
		}
		s.index[n] = struct{}{}
		s.order = append(s.order, n)
	}
}

// Remove deletes name from the set. No-op if absent.
func (s *Set) Remove(name string) {
	if _, ok := s.index[name]; !ok {
		return
	}
	delete(s.index, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Has reports whether name is present.
func (s *Set) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Any reports whether any tag satisfies pred, in insertion order.
func (s *Set) Any(pred func(string) bool) bool {
	for _, n := range s.order {
		if pred(n) {
			return true
		}
	}
	return false
}

// Slice returns a snapshot of the tags in insertion order.
func (s *Set) Slice() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tags.
func (s *Set) Len() int { return len(s.order) }

// Omit subtracts every name in omit from the set. Callers must apply
// this only after all additions for the current evaluation are done.
func (s *Set) Omit(omit []string) {
	for _, n := range omit {
		s.Remove(n)
	}
}

// Autotag scans text for each mapping key as a case-insensitive
// substring and returns the mapped tag values for every key that
// matches, in sorted key order. It never mutates state; the caller
// decides whether to add the result.
func Autotag(mapping map[string]string, text string) []string {
	if len(mapping) == 0 || text == "" {
		return nil
	}
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lower := strings.ToLower(text)
	var out []string
	for _, k := range keys {
		if strings.Contains(lower, strings.ToLower(k)) {
			out = append(out, mapping[k])
		}
	}
	return out
}

// NamespaceSeparator splits page titles into namespace segments.
const NamespaceSeparator = "/"

// SplitNamespace splits title on the namespace separator. All segments
// but the last are looked up in mapping; matches are returned as tags.
// The last segment becomes the display title. Titles without a
// separator are returned unchanged with no tags.
func SplitNamespace(title string, mapping map[string]string) (string, []string) {
	segments := strings.Split(title, NamespaceSeparator)
	if len(segments) < 2 {
		return title, nil
	}
	var matched []string
	for _, seg := range segments[:len(segments)-1] {
		if tag, ok := mapping[seg]; ok {
			matched = append(matched, tag)
		}
	}
	return segments[len(segments)-1], matched
}
