package network

import (
	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/spatial"
)

// GrantAuthority makes the local process the writer for entity.
func (r *Registry) GrantAuthority(entity ecs.Entity) bool {
	if !r.world.Alive(entity) {
		return false
	}
	AuthorityTag.Add(r.world, entity, ecs.Tag{})
	return true
}

func (r *Registry) RevokeAuthority(entity ecs.Entity) bool {
	return AuthorityTag.Remove(r.world, entity)
}

func (r *Registry) HasAuthority(entity ecs.Entity) bool {
	return AuthorityTag.Has(r.world, entity)
}

// SetAuthority records peer as the writer of entity on every process and
// toggles the local tag when peer is local.
func (r *Registry) SetAuthority(entity ecs.Entity, peer, local string) bool {
	obj, ok := r.Object(entity)
	if !ok {
		return false
	}
	obj.Authority = peer
	if peer == local {
		return r.GrantAuthority(entity)
	}
	r.RevokeAuthority(entity)
	return true
}

// ApplyTransform merges a transform update sent by from. Authoritative
// copies are the source of truth and are never overwritten, and updates
// from anyone but the recorded authority are rejected. Both cases return
// ErrNotAuthoritative and leave the entity untouched.
func (r *Registry) ApplyTransform(entity ecs.Entity, update spatial.Transform, from string) error {
	if !r.world.Alive(entity) {
		return ErrEntityNotAlive
	}
	if r.HasAuthority(entity) {
		return ErrNotAuthoritative
	}
	if obj, ok := r.Object(entity); ok && obj.Authority != "" && obj.Authority != from {
		return ErrNotAuthoritative
	}
	spatial.TransformComponent.Add(r.world, entity, update)
	return nil
}
