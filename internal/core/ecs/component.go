package ecs

import "sync/atomic"

// ComponentID represents a unique identifier for component types.
// Ids are process-wide so the same descriptor works against any World.
type ComponentID uint32

var lastComponentID atomic.Uint32

// ComponentType is the untyped view of a component descriptor used by
// queries and the world.
type ComponentType interface {
	ID() ComponentID
	Name() string
}

// Component is a typed component descriptor. Values live in per-world
// storage; the descriptor itself holds no data.
type Component[T any] struct {
	id   ComponentID
	name string
}

// NewComponent declares a component type. Declare each type once, usually as
// a package level variable.
func NewComponent[T any](name string) *Component[T] {
	return &Component[T]{
		id:   ComponentID(lastComponentID.Add(1)),
		name: name,
	}
}

func (c *Component[T]) ID() ComponentID { return c.id }
func (c *Component[T]) Name() string    { return c.name }

func (c *Component[T]) storage(w *World) *store[T] {
	if s, ok := w.stores.Get(c.id); ok {
		return s.(*store[T])
	}
	s := newStore[T](c.name)
	w.stores.Put(c.id, s)
	return s
}

// Add attaches value to the entity, replacing any previous value of this
// type, and returns a pointer to the stored copy. The pointer stays valid
// until the component is removed.
func (c *Component[T]) Add(w *World, e Entity, value T) *T {
	if !w.Alive(e) {
		return nil
	}
	s := c.storage(w)
	ptr, added := s.put(e, value)
	if added {
		w.componentAdded(e, c.id)
	}
	return ptr
}

// Get returns the entity's value of this type, if present.
func (c *Component[T]) Get(w *World, e Entity) (*T, bool) {
	s, ok := w.stores.Get(c.id)
	if !ok {
		return nil, false
	}
	return s.(*store[T]).get(e)
}

// Has reports whether the entity holds this component type.
func (c *Component[T]) Has(w *World, e Entity) bool {
	s, ok := w.stores.Get(c.id)
	return ok && s.has(e)
}

// Remove detaches the component. Queries requiring it drop the entity
// before Remove returns.
func (c *Component[T]) Remove(w *World, e Entity) bool {
	s, ok := w.stores.Get(c.id)
	if !ok || !s.remove(e) {
		return false
	}
	w.componentRemoved(e, c.id)
	return true
}

// Count returns how many entities in w hold this component.
func (c *Component[T]) Count(w *World) int {
	s, ok := w.stores.Get(c.id)
	if !ok {
		return 0
	}
	return s.len()
}

// Tag is the value type of marker components.
type Tag struct{}
