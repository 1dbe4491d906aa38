package broadcast

import "slices"

// ValueSet is a grow-only set of integers. The zero value is ready to use.
type ValueSet struct {
	m map[int64]struct{}
}

func NewValueSet(vs ...int64) *ValueSet {
	s := &ValueSet{m: make(map[int64]struct{}, len(vs))}
	s.AddAll(vs)
	return s
}

// Add inserts v and reports whether it was new.
func (s *ValueSet) Add(v int64) bool {
	if s.m == nil {
		s.m = make(map[int64]struct{})
	}
	if _, ok := s.m[v]; ok {
		return false
	}
	s.m[v] = struct{}{}
	return true
}

// AddAll inserts every value and returns how many were new.
func (s *ValueSet) AddAll(vs []int64) int {
	added := 0
	for _, v := range vs {
		if s.Add(v) {
			added++
		}
	}
	return added
}

func (s *ValueSet) Has(v int64) bool {
	_, ok := s.m[v]
	return ok
}

func (s *ValueSet) Len() int { return len(s.m) }

// Sorted returns a fresh ascending slice, never nil.
func (s *ValueSet) Sorted() []int64 {
	out := make([]int64, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
