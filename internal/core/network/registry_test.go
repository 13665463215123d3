package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/spatial"
)

func TestCreateNetworkIDIsUnique(t *testing.T) {
	r := NewRegistry(ecs.NewWorld(), nil)
	seen := map[NetworkID]bool{}
	last := NetworkID(0)
	for range 1000 {
		id := r.CreateNetworkID()
		require.False(t, seen[id], "id %d handed out twice", id)
		require.Greater(t, id, last)
		seen[id] = true
		last = id
	}
}

func TestCreateNetworkIDSkipsRegistered(t *testing.T) {
	w := ecs.NewWorld()
	r := NewRegistry(w, nil)
	require.NoError(t, r.Register("host", 40, w.CreateEntity()))
	assert.Equal(t, NetworkID(41), r.CreateNetworkID())
}

func TestRegisterDuplicateKeepsOriginal(t *testing.T) {
	w := ecs.NewWorld()
	r := NewRegistry(w, nil)
	first := w.CreateEntity()
	second := w.CreateEntity()

	require.NoError(t, r.Register("host", 7, first))
	assert.ErrorIs(t, r.Register("host", 7, second), ErrDuplicateNetworkObject)
	assert.ErrorIs(t, r.Register("host", 7, second), ErrDuplicateNetworkObject)

	got, ok := r.Get("host", 7)
	require.True(t, ok)
	assert.Equal(t, first, got)
	assert.False(t, NetworkObjectComponent.Has(w, second))

	// same id under another owner is a different object
	require.NoError(t, r.Register("peer-a", 7, second))
	assert.Equal(t, 2, r.Len())
}

func TestRegisterValidatesEntity(t *testing.T) {
	w := ecs.NewWorld()
	r := NewRegistry(w, nil)
	e := w.CreateEntity()

	assert.ErrorIs(t, r.Register("host", 1, ecs.Entity(99)), ErrEntityNotAlive)
	require.NoError(t, r.Register("host", 1, e))
	assert.ErrorIs(t, r.Register("host", 2, e), ErrEntityAlreadyBound)
}

func TestGetMissing(t *testing.T) {
	r := NewRegistry(ecs.NewWorld(), nil)
	e, ok := r.Get("nobody", 1)
	assert.False(t, ok)
	assert.Equal(t, ecs.NullEntity, e)
}

func TestDestroyRemovesEntity(t *testing.T) {
	w := ecs.NewWorld()
	r := NewRegistry(w, nil)
	e, err := r.Spawn(NetworkObject{OwnerID: "host", NetworkID: 3, Prefab: "crate"})
	require.NoError(t, err)

	obj, ok := r.Object(e)
	require.True(t, ok)
	assert.Equal(t, "host", obj.Authority)

	assert.True(t, r.Destroy("host", 3))
	assert.False(t, w.Alive(e))
	assert.False(t, r.Destroy("host", 3))
	_, ok = r.Get("host", 3)
	assert.False(t, ok)
}

func TestRemovingEntityDropsBinding(t *testing.T) {
	w := ecs.NewWorld()
	r := NewRegistry(w, nil)
	e, err := r.Spawn(NetworkObject{OwnerID: "host", NetworkID: 1})
	require.NoError(t, err)

	w.RemoveEntity(e)
	_, ok := r.Get("host", 1)
	assert.False(t, ok)

	// the pair can be bound again afterwards
	_, err = r.Spawn(NetworkObject{OwnerID: "host", NetworkID: 1})
	assert.NoError(t, err)
}

func TestOwnedBy(t *testing.T) {
	r := NewRegistry(ecs.NewWorld(), nil)
	a, _ := r.Spawn(NetworkObject{OwnerID: "peer-a", NetworkID: 2})
	_, _ = r.Spawn(NetworkObject{OwnerID: "peer-b", NetworkID: 1})
	c, _ := r.Spawn(NetworkObject{OwnerID: "peer-a", NetworkID: 1})

	assert.Equal(t, []ecs.Entity{a, c}, r.OwnedBy("peer-a"))
	assert.Empty(t, r.OwnedBy("peer-c"))
	assert.Len(t, r.Objects(), 3)
}

func TestAuthorityGuardsTransforms(t *testing.T) {
	w := ecs.NewWorld()
	r := NewRegistry(w, nil)
	e, err := r.Spawn(NetworkObject{OwnerID: "peer-a", NetworkID: 1})
	require.NoError(t, err)
	spatial.TransformComponent.Add(w, e, spatial.NewTransform(spatial.Zero))

	update := spatial.NewTransform(spatial.V(1, 2, 3))

	// non-authoritative copy takes the authority's write
	require.NoError(t, r.ApplyTransform(e, update, "peer-a"))
	tr, _ := spatial.TransformComponent.Get(w, e)
	assert.Equal(t, update.Position, tr.Position)

	// writes from anyone else are ignored
	assert.ErrorIs(t, r.ApplyTransform(e, spatial.NewTransform(spatial.Zero), "peer-b"), ErrNotAuthoritative)
	assert.Equal(t, update.Position, tr.Position)

	// the authoritative copy is never overwritten
	require.True(t, r.GrantAuthority(e))
	assert.ErrorIs(t, r.ApplyTransform(e, spatial.NewTransform(spatial.Zero), "peer-a"), ErrNotAuthoritative)
	assert.Equal(t, update.Position, tr.Position)

	assert.True(t, r.RevokeAuthority(e))
	assert.False(t, r.HasAuthority(e))
	assert.ErrorIs(t, r.ApplyTransform(ecs.Entity(42), update, "peer-a"), ErrEntityNotAlive)
}

func TestPeers(t *testing.T) {
	r := NewRegistry(ecs.NewWorld(), nil)
	assert.True(t, r.AddPeer("b"))
	assert.True(t, r.AddPeer("a"))
	assert.False(t, r.AddPeer("a"))
	assert.Equal(t, []string{"a", "b"}, r.Peers())
	assert.True(t, r.RemovePeer("a"))
	assert.False(t, r.HasPeer("a"))
}

func TestDigestTracksReplicatedState(t *testing.T) {
	build := func(x float64) *Registry {
		w := ecs.NewWorld()
		r := NewRegistry(w, nil)
		// local-only entities do not count
		w.CreateEntity()
		e, _ := r.Spawn(NetworkObject{OwnerID: "host", NetworkID: 1, Prefab: "ball"})
		spatial.TransformComponent.Add(w, e, spatial.NewTransform(spatial.V(x, 0, 0)))
		_, _ = r.Spawn(NetworkObject{OwnerID: "peer-a", NetworkID: 1})
		return r
	}

	assert.Equal(t, build(1).Digest(), build(1).Digest())
	assert.NotEqual(t, build(1).Digest(), build(2).Digest())
}
