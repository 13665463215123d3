// Package ecs is the entity/component store and query engine.
//
// Entities are plain integers allocated in increasing order and never reused
// within a World, so sorting by Entity is sorting by creation order. Component
// values live in one sparse set per component type. Queries keep their
// membership up to date on every structural change.
package ecs

import (
	"slices"

	"github.com/kamstrup/intmap"
)

// Entity is an opaque identifier; it only exists as a key into component stores.
type Entity uint32

// NullEntity is never allocated.
const NullEntity Entity = 0

// World owns entities, their components and the queries over them.
// A World is not safe for concurrent use; it is driven by a single tick loop.
type World struct {
	last   Entity
	alive  *intmap.Set[Entity]
	stores *intmap.Map[ComponentID, storage]

	queries     []*Query
	byComponent *intmap.Map[ComponentID, []*Query]

	onRemove []func(Entity)
}

func NewWorld() *World {
	return &World{
		alive:       intmap.NewSet[Entity](256),
		stores:      intmap.New[ComponentID, storage](32),
		byComponent: intmap.New[ComponentID, []*Query](32),
	}
}

// CreateEntity allocates a fresh entity with no components.
func (w *World) CreateEntity() Entity {
	w.last++
	w.alive.Add(w.last)
	return w.last
}

// Alive reports whether e was created and not yet removed.
func (w *World) Alive(e Entity) bool {
	return e != NullEntity && w.alive.Has(e)
}

// RemoveEntity destroys e and every component attached to it. Removal hooks
// run after the components are gone. Removing an unknown entity is a no-op.
func (w *World) RemoveEntity(e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	w.stores.ForEach(func(id ComponentID, s storage) bool {
		if s.remove(e) {
			w.componentRemoved(e, id)
		}
		return true
	})
	w.alive.Del(e)
	for _, fn := range w.onRemove {
		fn(e)
	}
	return true
}

// OnRemove registers fn to run whenever an entity is removed.
func (w *World) OnRemove(fn func(Entity)) {
	w.onRemove = append(w.onRemove, fn)
}

// Entities lists live entities in creation order.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, w.alive.Len())
	for e := range w.alive.All() {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.alive.Len()
}

// ComponentNames lists the names of the component types attached to e.
func (w *World) ComponentNames(e Entity) []string {
	var names []string
	w.stores.ForEach(func(_ ComponentID, s storage) bool {
		if s.has(e) {
			names = append(names, s.name())
		}
		return true
	})
	slices.Sort(names)
	return names
}

func (w *World) hasAll(e Entity, ids []ComponentID) bool {
	for _, id := range ids {
		s, ok := w.stores.Get(id)
		if !ok || !s.has(e) {
			return false
		}
	}
	return true
}

func (w *World) componentAdded(e Entity, id ComponentID) {
	queries, _ := w.byComponent.Get(id)
	for _, q := range queries {
		if !q.members.Has(e) && w.hasAll(e, q.ids) {
			q.add(e)
		}
	}
}

func (w *World) componentRemoved(e Entity, id ComponentID) {
	queries, _ := w.byComponent.Get(id)
	for _, q := range queries {
		if q.members.Has(e) {
			q.remove(e)
		}
	}
}
