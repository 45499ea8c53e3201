package util

import "sort"

type Set[T comparable] struct {
	data map[T]struct{}
}

func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{
		data: make(map[T]struct{}, len(items)),
	}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s Set[T]) Length() int {
	return len(s.data)
}

func (s *Set[T]) Add(item T) {
	s.data[item] = struct{}{}
}

// List returns the items ordered by less.
func (s Set[T]) List(less func(a, b T) bool) []T {
	out := make([]T, 0, len(s.data))
	for v := range s.data {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Set[T]) Contains(item T) bool {
	_, found := s.data[item]
	return found
}

// Strings returns the sorted items of a string set.
func Strings(s *Set[string]) []string {
	return s.List(func(a, b string) bool { return a < b })
}
