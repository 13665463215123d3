package ecs

import (
	"slices"

	"github.com/kamstrup/intmap"
)

// Query tracks the entities holding every one of its component types.
//
// Current returns a snapshot in creation order. Entered and Exited are edge
// triggered: each reports the net membership change since the previous call
// of that same method on this Query, so an entity that enters and leaves in
// between is reported by neither. The Entered baseline starts empty, so the
// first Entered call reports everything that matched at definition time.
// The Exited baseline is the membership at definition time.
type Query struct {
	world   *World
	ids     []ComponentID
	members *intmap.Set[Entity]

	ordered []Entity
	dirty   bool

	enter edge
	exit  edge
}

// DefineQuery builds a query over the conjunction of the given component
// types. Every call returns an independent Query with its own edge state.
func (w *World) DefineQuery(components ...ComponentType) *Query {
	ids := make([]ComponentID, 0, len(components))
	for _, c := range components {
		if !slices.Contains(ids, c.ID()) {
			ids = append(ids, c.ID())
		}
	}

	q := &Query{
		world:   w,
		ids:     ids,
		members: intmap.NewSet[Entity](64),
		enter:   newEdge(),
		exit:    newEdge(),
	}
	for _, id := range ids {
		queries, _ := w.byComponent.Get(id)
		w.byComponent.Put(id, append(queries, q))
	}
	w.queries = append(w.queries, q)

	if len(ids) == 0 {
		return q
	}
	for _, e := range w.seed(ids) {
		if w.hasAll(e, ids) {
			q.members.Add(e)
			q.enter.entered(e)
		}
	}
	q.dirty = true
	return q
}

// seed returns the candidates from the smallest store among ids.
func (w *World) seed(ids []ComponentID) []Entity {
	var smallest storage
	for _, id := range ids {
		s, ok := w.stores.Get(id)
		if !ok {
			return nil
		}
		if smallest == nil || s.len() < smallest.len() {
			smallest = s
		}
	}
	return smallest.entities()
}

// Current returns the matching entities in creation order. The slice is a
// copy and safe to keep while mutating the world.
func (q *Query) Current() []Entity {
	if q.dirty {
		q.ordered = q.ordered[:0]
		for e := range q.members.All() {
			q.ordered = append(q.ordered, e)
		}
		slices.Sort(q.ordered)
		q.dirty = false
	}
	return slices.Clone(q.ordered)
}

// Entered returns entities that joined since the last Entered call.
func (q *Query) Entered() []Entity {
	return q.enter.drain(true)
}

// Exited returns entities that left since the last Exited call.
func (q *Query) Exited() []Entity {
	return q.exit.drain(false)
}

// First returns the oldest matching entity, or NullEntity.
func (q *Query) First() Entity {
	current := q.Current()
	if len(current) == 0 {
		return NullEntity
	}
	return current[0]
}

func (q *Query) Len() int { return q.members.Len() }

func (q *Query) Contains(e Entity) bool { return q.members.Has(e) }

func (q *Query) add(e Entity) {
	q.members.Add(e)
	q.dirty = true
	q.enter.entered(e)
	q.exit.entered(e)
}

func (q *Query) remove(e Entity) {
	q.members.Del(e)
	q.dirty = true
	q.enter.exited(e)
	q.exit.exited(e)
}

// edge accumulates net membership changes relative to a baseline.
type edge struct {
	in  *intmap.Set[Entity]
	out *intmap.Set[Entity]
}

func newEdge() edge {
	return edge{in: intmap.NewSet[Entity](16), out: intmap.NewSet[Entity](16)}
}

func (t edge) entered(e Entity) {
	if !t.out.Del(e) {
		t.in.Add(e)
	}
}

func (t edge) exited(e Entity) {
	if !t.in.Del(e) {
		t.out.Add(e)
	}
}

func (t edge) drain(in bool) []Entity {
	src := t.out
	if in {
		src = t.in
	}
	out := make([]Entity, 0, src.Len())
	for e := range src.All() {
		out = append(out, e)
	}
	slices.Sort(out)
	t.in.Clear()
	t.out.Clear()
	return out
}
