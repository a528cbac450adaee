package internal

import (
	"cmp"
	"slices"
)

// Set is a set that remembers insertion order, so iterating it is
// deterministic. The zero value is not usable; call NewSet.
type Set[T comparable] struct {
	index map[T]int
	items []T
}

func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{index: make(map[T]int, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *Set[T]) Add(item T) bool {
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
	return true
}

func (s *Set[T]) Contains(item T) bool {
	_, ok := s.index[item]
	return ok
}

func (s *Set[T]) Len() int {
	return len(s.items)
}

// Values returns the items in insertion order. The slice is a copy.
func (s *Set[T]) Values() []T {
	return append(make([]T, 0, len(s.items)), s.items...)
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
