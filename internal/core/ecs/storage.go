package ecs

import "github.com/kamstrup/intmap"

// storage is the type-erased side of a component store.
type storage interface {
	name() string
	has(e Entity) bool
	remove(e Entity) bool
	len() int
	entities() []Entity
}

// store is a sparse set: dense arrays of owners and values plus a sparse
// entity -> dense index map. Removal swaps the last element into the hole.
type store[T any] struct {
	label  string
	sparse *intmap.Map[Entity, int]
	dense  []Entity
	values []*T
}

func newStore[T any](label string) *store[T] {
	return &store[T]{
		label:  label,
		sparse: intmap.New[Entity, int](64),
	}
}

func (s *store[T]) name() string { return s.label }

func (s *store[T]) has(e Entity) bool {
	return s.sparse.Has(e)
}

func (s *store[T]) get(e Entity) (*T, bool) {
	idx, ok := s.sparse.Get(e)
	if !ok {
		return nil, false
	}
	return s.values[idx], true
}

// put stores value for e and reports whether e was newly added.
func (s *store[T]) put(e Entity, value T) (*T, bool) {
	if idx, ok := s.sparse.Get(e); ok {
		*s.values[idx] = value
		return s.values[idx], false
	}
	ptr := new(T)
	*ptr = value
	s.sparse.Put(e, len(s.dense))
	s.dense = append(s.dense, e)
	s.values = append(s.values, ptr)
	return ptr, true
}

func (s *store[T]) remove(e Entity) bool {
	idx, ok := s.sparse.Get(e)
	if !ok {
		return false
	}
	last := len(s.dense) - 1
	if idx != last {
		moved := s.dense[last]
		s.dense[idx] = moved
		s.values[idx] = s.values[last]
		s.sparse.Put(moved, idx)
	}
	s.dense[last] = NullEntity
	s.values[last] = nil
	s.dense = s.dense[:last]
	s.values = s.values[:last]
	s.sparse.Del(e)
	return true
}

func (s *store[T]) len() int { return len(s.dense) }

func (s *store[T]) entities() []Entity {
	out := make([]Entity, len(s.dense))
	copy(out, s.dense)
	return out
}
