package network

import (
	"errors"
	"fmt"

	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/spatial"
)

// Session describes the local process within the peer topology.
type Session interface {
	PeerID() string
	HostID() string
	IsHost() bool
}

// Receptors mirrors the network actions into the registry. The same set is
// installed on the host and on every peer so that all of them reach the same
// state from the same ordered action stream.
type Receptors struct {
	logger   log.Log
	bus      *bus.Bus
	registry *Registry
	session  Session

	handles []bus.ReceptorHandle
	claimed map[string]struct{}
}

// Install registers the network receptors on b.
func Install(b *bus.Bus, registry *Registry, session Session, logger log.Log) *Receptors {
	if logger == nil {
		logger = log.Nop()
	}
	r := &Receptors{
		logger:   logger.With(log.String("component", "network_receptors")),
		bus:      b,
		registry: registry,
		session:  session,
		claimed:  make(map[string]struct{}),
	}
	r.handles = append(r.handles,
		SpawnObjectAction.On(b, r.spawnObject),
		DestroyObjectAction.On(b, r.destroyObject),
		CreatePeerAction.On(b, r.createPeer),
		DestroyPeerAction.On(b, r.destroyPeer),
		RequestAuthorityAction.On(b, r.requestAuthority),
		TransferAuthorityAction.On(b, r.transferAuthority),
		SyncTransformAction.On(b, r.syncTransform),
	)
	return r
}

// Uninstall removes every receptor registered by Install.
func (r *Receptors) Uninstall() {
	for _, h := range r.handles {
		r.bus.RemoveReceptor(h)
	}
	r.handles = nil
}

// ClaimPrefab excludes objects of prefab from the generic late-joiner
// replay. Gameplay code that spawns such objects with its own actions
// replays them itself.
func (r *Receptors) ClaimPrefab(prefab string) {
	r.claimed[prefab] = struct{}{}
}

// RequestAuthorityFor asks the host to make the local peer the writer of
// (owner, id).
func RequestAuthorityFor(b *bus.Bus, session Session, owner string, id NetworkID) error {
	return RequestAuthorityAction.Dispatch(b,
		RequestAuthority{OwnerID: owner, NetworkID: id},
		bus.To(session.HostID()),
		bus.Topics(bus.TopicWorld),
	)
}

func (r *Receptors) spawnObject(a bus.Action, p SpawnObject) error {
	owner := a.From
	authority := ""
	if a.From == r.session.HostID() {
		if p.OwnerID != "" {
			owner = p.OwnerID
		}
		authority = p.Authority
	}

	if _, ok := r.registry.Get(owner, p.NetworkID); ok {
		// the spawner binds its own object before announcing it
		return nil
	}

	entity, err := r.registry.Spawn(NetworkObject{
		OwnerID:    owner,
		NetworkID:  p.NetworkID,
		Prefab:     p.Prefab,
		Parameters: p.Parameters,
		Authority:  authority,
	})
	if err != nil {
		return err
	}
	if p.Transform != nil {
		spatial.TransformComponent.Add(r.registry.World(), entity, *p.Transform)
	}
	obj, _ := r.registry.Object(entity)
	if obj.Authority == r.session.PeerID() {
		r.registry.GrantAuthority(entity)
	}
	return nil
}

// destroyObject honors an explicit owner only from the host; a peer may
// destroy nothing but its own objects.
func (r *Receptors) destroyObject(a bus.Action, p DestroyObject) error {
	owner := a.From
	if p.OwnerID != "" && p.OwnerID != a.From {
		if a.From != r.session.HostID() {
			return fmt.Errorf("%w: %s cannot destroy %s/%d", ErrNotAuthoritative, a.From, p.OwnerID, p.NetworkID)
		}
		owner = p.OwnerID
	}
	if !r.registry.Destroy(owner, p.NetworkID) {
		r.logger.Debug("destroy for unknown network object",
			log.String("owner", owner),
			log.Uint32("network_id", uint32(p.NetworkID)),
		)
	}
	return nil
}

func (r *Receptors) createPeer(a bus.Action, p CreatePeer) error {
	if a.From != r.session.HostID() {
		return fmt.Errorf("%w: createPeer from %s", ErrNotHost, a.From)
	}
	if !r.registry.AddPeer(p.PeerID) {
		return nil
	}
	r.logger.Info("peer joined", log.String("peer", p.PeerID), log.String("name", p.Name))

	if !r.session.IsHost() || p.PeerID == r.session.PeerID() {
		return nil
	}
	return r.replayTo(p.PeerID)
}

// replayTo sends a late joiner the peers and objects it missed.
func (r *Receptors) replayTo(peer string) error {
	var errs []error
	for _, other := range r.registry.Peers() {
		if other == peer {
			continue
		}
		errs = append(errs, CreatePeerAction.Dispatch(r.bus,
			CreatePeer{PeerID: other},
			bus.To(peer), bus.Topics(bus.TopicWorld),
		))
	}
	world := r.registry.World()
	for _, e := range r.registry.Objects() {
		obj, ok := r.registry.Object(e)
		if !ok {
			continue
		}
		if _, claimed := r.claimed[obj.Prefab]; claimed {
			continue
		}
		payload := SpawnObject{
			NetworkID:  obj.NetworkID,
			Prefab:     obj.Prefab,
			Parameters: obj.Parameters,
			OwnerID:    obj.OwnerID,
			Authority:  obj.Authority,
		}
		if tr, ok := spatial.TransformComponent.Get(world, e); ok {
			snapshot := *tr
			payload.Transform = &snapshot
		}
		errs = append(errs, SpawnObjectAction.Dispatch(r.bus, payload,
			bus.To(peer), bus.Topics(bus.TopicWorld),
		))
	}
	return errors.Join(errs...)
}

func (r *Receptors) destroyPeer(a bus.Action, p DestroyPeer) error {
	if a.From != r.session.HostID() {
		return fmt.Errorf("%w: destroyPeer from %s", ErrNotHost, a.From)
	}
	r.registry.RemovePeer(p.PeerID)
	for _, e := range r.registry.OwnedBy(p.PeerID) {
		if obj, ok := r.registry.Object(e); ok {
			r.registry.Destroy(obj.OwnerID, obj.NetworkID)
		}
	}
	// authority held by the departed peer falls back to the owner
	for _, e := range r.registry.Objects() {
		if obj, ok := r.registry.Object(e); ok && obj.Authority == p.PeerID {
			r.registry.SetAuthority(e, obj.OwnerID, r.session.PeerID())
		}
	}
	r.logger.Info("peer left", log.String("peer", p.PeerID))
	return nil
}

func (r *Receptors) requestAuthority(a bus.Action, p RequestAuthority) error {
	if !r.session.IsHost() {
		return nil
	}
	if _, ok := r.registry.Get(p.OwnerID, p.NetworkID); !ok {
		return fmt.Errorf("%w: %s/%d", ErrUnknownNetworkObject, p.OwnerID, p.NetworkID)
	}
	return TransferAuthorityAction.Dispatch(r.bus,
		TransferAuthority{OwnerID: p.OwnerID, NetworkID: p.NetworkID, NewAuthority: a.From},
		bus.Topics(bus.TopicWorld),
	)
}

func (r *Receptors) transferAuthority(a bus.Action, p TransferAuthority) error {
	if a.From != r.session.HostID() {
		return fmt.Errorf("%w: transferAuthority from %s", ErrNotHost, a.From)
	}
	entity, ok := r.registry.Get(p.OwnerID, p.NetworkID)
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrUnknownNetworkObject, p.OwnerID, p.NetworkID)
	}
	r.registry.SetAuthority(entity, p.NewAuthority, r.session.PeerID())
	return nil
}

func (r *Receptors) syncTransform(a bus.Action, p SyncTransform) error {
	entity, ok := r.registry.Get(p.OwnerID, p.NetworkID)
	if !ok {
		return nil
	}
	if err := r.registry.ApplyTransform(entity, p.Transform, a.From); err != nil {
		if errors.Is(err, ErrNotAuthoritative) {
			r.logger.Debug("transform update ignored",
				log.String("from", a.From),
				log.String("owner", p.OwnerID),
				log.Uint32("network_id", uint32(p.NetworkID)),
			)
			return nil
		}
		return err
	}
	return nil
}
