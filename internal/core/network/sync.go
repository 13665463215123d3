package network

import (
	"github.com/kamstrup/intmap"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/spatial"
	"github.com/zeusync/netecs/internal/core/system"
)

// TransformSync publishes the transforms of objects the local process is
// authoritative for. Only changed transforms are sent.
type TransformSync struct {
	system.Base

	bus      *bus.Bus
	registry *Registry
	query    *ecs.Query
	sent     *intmap.Map[ecs.Entity, spatial.Transform]
}

func NewTransformSync(b *bus.Bus, registry *Registry) *TransformSync {
	return &TransformSync{
		Base:     system.NewBase("network.transform_sync", system.PhaseOutgoing),
		bus:      b,
		registry: registry,
		query: registry.World().DefineQuery(
			NetworkObjectComponent, AuthorityTag, spatial.TransformComponent,
		),
		sent: intmap.New[ecs.Entity, spatial.Transform](64),
	}
}

func (s *TransformSync) Update(system.Tick) error {
	for _, e := range s.query.Exited() {
		s.sent.Del(e)
	}
	world := s.registry.World()
	for _, e := range s.query.Current() {
		obj, ok := s.registry.Object(e)
		if !ok {
			continue
		}
		tr, _ := spatial.TransformComponent.Get(world, e)
		if last, ok := s.sent.Get(e); ok && last == *tr {
			continue
		}
		s.sent.Put(e, *tr)
		if err := SyncTransformAction.Dispatch(s.bus,
			SyncTransform{OwnerID: obj.OwnerID, NetworkID: obj.NetworkID, Transform: *tr},
			bus.Topics(bus.TopicWorld),
		); err != nil {
			return err
		}
	}
	return nil
}
