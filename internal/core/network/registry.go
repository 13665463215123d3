// Package network binds entities to network objects shared between peers
// and tracks which process holds write authority over each of them.
package network

import (
	"cmp"
	"slices"

	"github.com/kamstrup/intmap"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/observability/log"
)

// Registry maps (owner, network id) pairs to local entities.
// It is driven by the tick goroutine and is not safe for concurrent use.
type Registry struct {
	logger log.Log
	world  *ecs.World

	lastID   NetworkID
	objects  map[objectKey]ecs.Entity
	byEntity *intmap.Map[ecs.Entity, objectKey]
	peers    map[string]struct{}
}

func NewRegistry(world *ecs.World, logger log.Log) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	r := &Registry{
		logger:   logger.With(log.String("component", "network_registry")),
		world:    world,
		objects:  make(map[objectKey]ecs.Entity),
		byEntity: intmap.New[ecs.Entity, objectKey](64),
		peers:    make(map[string]struct{}),
	}
	world.OnRemove(r.forget)
	return r
}

func (r *Registry) World() *ecs.World { return r.world }

// CreateNetworkID allocates the next id of this session. Ids start at 1 and
// are never handed out twice.
func (r *Registry) CreateNetworkID() NetworkID {
	r.lastID++
	return r.lastID
}

// Register binds entity to (owner, id). A pair that is already bound is
// rejected with ErrDuplicateNetworkObject and the original binding is kept.
// The entity receives a NetworkObject component if it has none.
func (r *Registry) Register(owner string, id NetworkID, entity ecs.Entity) error {
	key := objectKey{owner: owner, id: id}
	if bound, ok := r.objects[key]; ok {
		r.logger.Warn("duplicate network object rejected",
			log.String("owner", owner),
			log.Uint32("network_id", uint32(id)),
			log.Uint32("bound_entity", uint32(bound)),
			log.Uint32("entity", uint32(entity)),
		)
		return ErrDuplicateNetworkObject
	}
	if !r.world.Alive(entity) {
		return ErrEntityNotAlive
	}
	if _, ok := r.byEntity.Get(entity); ok {
		return ErrEntityAlreadyBound
	}

	obj, ok := NetworkObjectComponent.Get(r.world, entity)
	if !ok {
		obj = NetworkObjectComponent.Add(r.world, entity, NetworkObject{})
	}
	obj.OwnerID = owner
	obj.NetworkID = id
	if obj.Authority == "" {
		obj.Authority = owner
	}

	r.objects[key] = entity
	r.byEntity.Put(entity, key)
	// ids bound from a scene file are never handed out again
	r.lastID = max(r.lastID, id)
	r.logger.Debug("network object registered",
		log.String("owner", owner),
		log.Uint32("network_id", uint32(id)),
		log.Uint32("entity", uint32(entity)),
	)
	return nil
}

// Spawn creates an entity for obj and registers it.
func (r *Registry) Spawn(obj NetworkObject) (ecs.Entity, error) {
	key := objectKey{owner: obj.OwnerID, id: obj.NetworkID}
	if _, ok := r.objects[key]; ok {
		return ecs.NullEntity, ErrDuplicateNetworkObject
	}
	entity := r.world.CreateEntity()
	NetworkObjectComponent.Add(r.world, entity, obj)
	if err := r.Register(obj.OwnerID, obj.NetworkID, entity); err != nil {
		r.world.RemoveEntity(entity)
		return ecs.NullEntity, err
	}
	return entity, nil
}

// Get returns the entity bound to (owner, id). Callers must check ok; there
// is no fallback entity.
func (r *Registry) Get(owner string, id NetworkID) (ecs.Entity, bool) {
	e, ok := r.objects[objectKey{owner: owner, id: id}]
	return e, ok
}

// Object returns the network object of a bound entity.
func (r *Registry) Object(entity ecs.Entity) (*NetworkObject, bool) {
	if !r.byEntity.Has(entity) {
		return nil, false
	}
	return NetworkObjectComponent.Get(r.world, entity)
}

// Destroy removes the binding and the entity.
func (r *Registry) Destroy(owner string, id NetworkID) bool {
	key := objectKey{owner: owner, id: id}
	entity, ok := r.objects[key]
	if !ok {
		return false
	}
	r.unbind(key, entity)
	r.world.RemoveEntity(entity)
	r.logger.Debug("network object destroyed",
		log.String("owner", owner),
		log.Uint32("network_id", uint32(id)),
		log.Uint32("entity", uint32(entity)),
	)
	return true
}

// OwnedBy lists the entities owned by peer in creation order.
func (r *Registry) OwnedBy(owner string) []ecs.Entity {
	var out []ecs.Entity
	for key, e := range r.objects {
		if key.owner == owner {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}

// Objects lists every bound entity in creation order.
func (r *Registry) Objects() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(r.objects))
	for _, e := range r.objects {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int { return len(r.objects) }

// AddPeer records a connected peer and reports whether it was new.
func (r *Registry) AddPeer(peer string) bool {
	if _, ok := r.peers[peer]; ok {
		return false
	}
	r.peers[peer] = struct{}{}
	return true
}

func (r *Registry) RemovePeer(peer string) bool {
	if _, ok := r.peers[peer]; !ok {
		return false
	}
	delete(r.peers, peer)
	return true
}

func (r *Registry) HasPeer(peer string) bool {
	_, ok := r.peers[peer]
	return ok
}

// Peers lists known peers sorted by id.
func (r *Registry) Peers() []string {
	out := make([]string, 0, len(r.peers))
	for p := range r.peers {
		out = append(out, p)
	}
	slices.SortFunc(out, cmp.Compare[string])
	return out
}

func (r *Registry) unbind(key objectKey, entity ecs.Entity) {
	delete(r.objects, key)
	r.byEntity.Del(entity)
}

// forget drops the binding of an entity removed behind the registry's back.
func (r *Registry) forget(entity ecs.Entity) {
	if key, ok := r.byEntity.Get(entity); ok {
		r.unbind(key, entity)
	}
}
