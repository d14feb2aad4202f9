package generic

// Set is a collection of unique items. Iteration order (ToSlice) is the order in which items were first added, so
// results built from a Set are deterministic.
type Set[T comparable] interface {
	Add(item T) bool
	AddAll(items ...T) int
	Count() int
	ToSlice() []T
}

func NewSet[T comparable](items ...T) Set[T] {
	s := &orderedSet[T]{index: make(map[T]struct{})}
	s.AddAll(items...)
	return s
}

type orderedSet[T comparable] struct {
	index map[T]struct{}
	items []T
}

func (s *orderedSet[T]) Add(item T) bool {
	if _, found := s.index[item]; found {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

// AddAll adds each item in turn, returning how many were not already present.
func (s *orderedSet[T]) AddAll(items ...T) int {
	added := 0
	for _, item := range items {
		if s.Add(item) {
			added++
		}
	}
	return added
}

func (s *orderedSet[T]) Count() int {
	return len(s.items)
}

func (s *orderedSet[T]) ToSlice() []T {
	slice := make([]T, len(s.items))
	copy(slice, s.items)
	return slice
}
