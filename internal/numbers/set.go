package numbers

import "slices"

// Set is a deduplicated set of integers. It has no ordering at rest.
// The zero value is not usable; use NewSet.
type Set struct {
	items map[int64]struct{}
}

// NewSet creates a set holding vals.
func NewSet(vals ...int64) *Set {
	s := &Set{items: make(map[int64]struct{}, len(vals))}
	s.AddAll(vals)
	return s
}

// Add inserts n and reports whether it was not already present.
func (s *Set) Add(n int64) bool {
	if _, ok := s.items[n]; ok {
		return false
	}
	s.items[n] = struct{}{}
	return true
}

// AddAll inserts every value and returns how many were new.
func (s *Set) AddAll(vals []int64) int {
	added := 0
	for _, n := range vals {
		if s.Add(n) {
			added++
		}
	}
	return added
}

func (s *Set) Has(n int64) bool {
	_, ok := s.items[n]
	return ok
}

func (s *Set) Len() int { return len(s.items) }

// Sorted returns the members ascending. The set is not modified.
func (s *Set) Sorted() []int64 {
	out := make([]int64, 0, len(s.items))
	for n := range s.items {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (s *Set) Clone() *Set {
	cp := &Set{items: make(map[int64]struct{}, len(s.items))}
	for n := range s.items {
		cp.items[n] = struct{}{}
	}
	return cp
}

// Equal reports whether both sets hold the same members.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for n := range s.items {
		if !o.Has(n) {
			return false
		}
	}
	return true
}
