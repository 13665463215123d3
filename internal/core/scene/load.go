package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/observability/log"
)

// Load creates one entity per scene entity and deserializes its components.
// Unknown component keys are logged and skipped. Entities are returned in
// file order.
func (r *Registry) Load(w *ecs.World, f *File) ([]ecs.Entity, error) {
	entities := make([]ecs.Entity, 0, len(f.Entities))
	var errs []error
	for _, data := range f.Entities {
		id := data.UUID
		if id == "" {
			id = uuid.NewString()
		}
		e := w.CreateEntity()
		UUIDComponent.Add(w, e, UUID{Value: id})
		entities = append(entities, e)

		for _, c := range data.Components {
			l, ok := r.loaders[c.Name]
			if !ok {
				r.logger.Warn("unknown scene component skipped",
					log.String("entity", id),
					log.String("component", c.Name),
				)
				continue
			}
			if l.ShouldDeserialize != nil && !l.ShouldDeserialize(w) {
				continue
			}
			props := c.Props
			if props == nil {
				props = Props{}
			}
			if err := l.Deserialize(w, e, props); err != nil {
				errs = append(errs, fmt.Errorf("entity %s: %w", id, err))
			}
		}
	}
	return entities, errors.Join(errs...)
}

// Export writes every scene entity of w back into a File. Components are
// listed in loader registration order.
func (r *Registry) Export(w *ecs.World) (*File, error) {
	f := &File{Version: FileVersion}
	var errs []error
	for _, e := range w.Entities() {
		id, ok := UUIDComponent.Get(w, e)
		if !ok {
			continue
		}
		data := EntityData{UUID: id.Value}
		for _, key := range r.keys {
			l := r.loaders[key]
			if l.PrepareForExport != nil {
				l.PrepareForExport(w, e)
			}
			props, ok, err := l.Serialize(w, e)
			if err != nil {
				errs = append(errs, fmt.Errorf("entity %s: %s: %w", id.Value, key, err))
				continue
			}
			if ok {
				data.Components = append(data.Components, ComponentData{Name: key, Props: props})
			}
		}
		f.Entities = append(f.Entities, data)
	}
	return f, errors.Join(errs...)
}

// Apply updates one component of a loaded entity from edited props.
func (r *Registry) Apply(w *ecs.World, e ecs.Entity, key string, props Props) error {
	l, ok := r.loaders[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, key)
	}
	if l.Update != nil {
		return l.Update(w, e, props)
	}
	return l.Deserialize(w, e, props)
}

// Find returns the entity loaded under the scene uuid id.
func Find(w *ecs.World, id string) (ecs.Entity, bool) {
	for _, e := range w.Entities() {
		if u, ok := UUIDComponent.Get(w, e); ok && u.Value == id {
			return e, true
		}
	}
	return ecs.NullEntity, false
}
