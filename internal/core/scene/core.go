package scene

import (
	"errors"
	"fmt"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/spatial"
)

// RegisterCore registers the loaders every scene may use. Network objects
// read from a scene are bound in objects.
func RegisterCore(r *Registry, objects *network.Registry) error {
	return errors.Join(
		r.Register("name", Struct(NameComponent)),
		r.Register("transform", transformLoader()),
		r.Register("trigger-volume", Struct(TriggerVolumeComponent)),
		r.Register("network-object", networkObjectLoader(objects)),
	)
}

func transformLoader() Loader {
	l := Struct(spatial.TransformComponent)
	deserialize := l.Deserialize
	l.Update = func(w *ecs.World, e ecs.Entity, props Props) error {
		tr, ok := spatial.TransformComponent.Get(w, e)
		if !ok {
			return deserialize(w, e, props)
		}
		// fields missing from props keep their current value
		return props.Decode(tr)
	}
	return l
}

func networkObjectLoader(objects *network.Registry) Loader {
	l := Struct(network.NetworkObjectComponent)
	l.Deserialize = func(w *ecs.World, e ecs.Entity, props Props) error {
		var obj network.NetworkObject
		if err := props.Decode(&obj); err != nil {
			return fmt.Errorf("network-object: %w", err)
		}
		network.NetworkObjectComponent.Add(w, e, obj)
		if objects == nil {
			return nil
		}
		if err := objects.Register(obj.OwnerID, obj.NetworkID, e); err != nil {
			return fmt.Errorf("network-object %s: %w", obj, err)
		}
		return nil
	}
	return l
}
