// Package scene loads entities and their components from scene files and
// exports them back. Every component kind a scene may carry is described by
// a Loader registered under the key used in the file.
package scene

import (
	"errors"
	"fmt"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/observability/log"
)

var (
	ErrLoaderExists     = errors.New("scene loader already registered")
	ErrUnknownComponent = errors.New("unknown scene component")
)

// Loader converts one component kind between its scene form and the world.
// Serialize must be the exact inverse of Deserialize.
type Loader struct {
	Serialize   func(w *ecs.World, e ecs.Entity) (Props, bool, error)
	Deserialize func(w *ecs.World, e ecs.Entity, props Props) error

	// Update applies edited props to an entity that already has the
	// component. Deserialize is used when nil.
	Update func(w *ecs.World, e ecs.Entity, props Props) error
	// ShouldDeserialize can veto loading, e.g. for singletons already present.
	ShouldDeserialize func(w *ecs.World) bool
	// PrepareForExport runs right before Serialize on export.
	PrepareForExport func(w *ecs.World, e ecs.Entity)
}

// Registry holds the loaders in registration order, which is also the
// order components are written on export.
type Registry struct {
	logger  log.Log
	loaders map[string]Loader
	keys    []string
}

func NewRegistry(logger log.Log) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{
		logger:  logger.With(log.String("component", "scene")),
		loaders: make(map[string]Loader),
	}
}

func (r *Registry) Register(key string, l Loader) error {
	if _, ok := r.loaders[key]; ok {
		return fmt.Errorf("%w: %s", ErrLoaderExists, key)
	}
	if l.Serialize == nil || l.Deserialize == nil {
		return fmt.Errorf("scene loader %s: serialize and deserialize are required", key)
	}
	r.loaders[key] = l
	r.keys = append(r.keys, key)
	return nil
}

func (r *Registry) Loader(key string) (Loader, bool) {
	l, ok := r.loaders[key]
	return l, ok
}

func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Struct builds a loader for a component whose value maps one to one onto
// its props.
func Struct[T any](c *ecs.Component[T]) Loader {
	return Loader{
		Serialize: func(w *ecs.World, e ecs.Entity) (Props, bool, error) {
			v, ok := c.Get(w, e)
			if !ok {
				return nil, false, nil
			}
			props, err := EncodeProps(v)
			return props, err == nil, err
		},
		Deserialize: func(w *ecs.World, e ecs.Entity, props Props) error {
			var v T
			if err := props.Decode(&v); err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			c.Add(w, e, v)
			return nil
		},
	}
}

// Tag builds a loader for a marker component with no props.
func Tag(c *ecs.Component[ecs.Tag]) Loader {
	return Loader{
		Serialize: func(w *ecs.World, e ecs.Entity) (Props, bool, error) {
			if !c.Has(w, e) {
				return nil, false, nil
			}
			return Props{}, true, nil
		},
		Deserialize: func(w *ecs.World, e ecs.Entity, _ Props) error {
			c.Add(w, e, ecs.Tag{})
			return nil
		},
	}
}
