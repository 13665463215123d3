package basketball

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/core/spatial"
	"github.com/zeusync/netecs/internal/core/system"
)

// ServerSystem handles peer requests on the host. It pulls them from action
// queues once per tick, after the incoming system applied the remote ones.
type ServerSystem struct {
	system.Base
	game *Game

	throws   *bus.Queue
	spawns   *bus.Queue
	switches *bus.Queue
	joins    *bus.Queue
}

func NewServerSystem(g *Game) *ServerSystem {
	return &ServerSystem{
		Base: system.NewBase("basketball.server", system.PhasePreUpdate),
		game: g,
	}
}

func (s *ServerSystem) Initialize(context.Context) error {
	b := s.game.eng.Bus
	s.throws = b.CreateQueue(ThrowAction.Matches)
	s.spawns = b.CreateQueue(SpawnNpcAction.Matches)
	s.switches = b.CreateQueue(SwitchAvatarAction.Matches)
	s.joins = b.CreateQueue(network.CreatePeerAction.Matches)
	return nil
}

func (s *ServerSystem) Shutdown(context.Context) error {
	for _, q := range []*bus.Queue{s.throws, s.spawns, s.switches, s.joins} {
		if q != nil {
			q.Close()
		}
	}
	return nil
}

func (s *ServerSystem) Update(system.Tick) error {
	throws, spawns, switches, joins := s.throws.Drain(), s.spawns.Drain(), s.switches.Drain(), s.joins.Drain()
	if !s.game.eng.IsHost() {
		return nil
	}

	var errs []error
	for _, a := range throws {
		errs = append(errs, s.game.throwBall(a))
	}
	for _, a := range spawns {
		p, err := SpawnNpcAction.Decode(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, s.game.spawnNpc(p))
	}
	for _, a := range switches {
		errs = append(errs, s.game.switchAvatar(a))
	}
	for _, a := range joins {
		p, err := network.CreatePeerAction.Decode(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, s.game.catchUp(p.PeerID))
	}
	return errors.Join(errs...)
}

// throwBall creates a host-owned ball in front of the requester's avatar
// flying towards the hoop.
func (g *Game) throwBall(a bus.Action) error {
	hoop, ok := g.Hoop()
	if !ok {
		return ErrMissingTarget
	}
	avatar, ok := g.AvatarOf(a.From)
	if !ok {
		return errUnknownPeer(a.From)
	}
	w := g.eng.World
	avatarTransform, _ := spatial.TransformComponent.Get(w, avatar)
	if avatarTransform == nil {
		avatarTransform = &spatial.Transform{Rotation: spatial.Identity}
	}
	height := DefaultAvatarHeight
	if av, ok := AvatarComponent.Get(w, avatar); ok {
		height = av.Height
	}

	id := g.eng.Network.CreateNetworkID()
	ball, err := g.eng.Network.Spawn(network.NetworkObject{
		OwnerID:   g.eng.PeerID(),
		NetworkID: id,
		Prefab:    PrefabBall,
	})
	if err != nil {
		return err
	}
	from := BallThrowPosition(*avatarTransform, height)
	BallTag.Add(w, ball, ecs.Tag{})
	g.eng.Network.GrantAuthority(ball)
	spatial.TransformComponent.Add(w, ball, spatial.NewTransform(from))
	BallShotComponent.Add(w, ball, BallShot{From: from, To: g.position(hoop)})

	g.logger.Debug("ball thrown",
		log.String("by", a.From),
		log.Uint32("network_id", uint32(id)),
	)
	return SpawnBallNetworkObjectAction.Dispatch(g.eng.Bus,
		SpawnBallNetworkObject{NetworkID: id, Position: from},
		bus.Topics(bus.TopicWorld),
	)
}

// spawnNpc creates a host-owned roaming NPC at a random spot.
func (g *Game) spawnNpc(p SpawnNpcRequest) error {
	id := g.eng.Network.CreateNetworkID()
	name := fmt.Sprintf("player%d", id)
	rng := g.eng.Rand()
	pos := spatial.V(
		(rng.Float64()*2-1)*NpcSpawnRadius,
		0,
		(rng.Float64()*2-1)*NpcSpawnRadius,
	)

	e, err := g.eng.Network.Spawn(network.NetworkObject{
		OwnerID:   g.eng.PeerID(),
		NetworkID: id,
		Prefab:    PrefabNpc,
	})
	if err != nil {
		return err
	}
	w := g.eng.World
	NpcComponent.Add(w, e, Npc{Name: name, AvatarDetails: p.AvatarDetails})
	scene.NameComponent.Add(w, e, scene.Name{Value: name})
	spatial.TransformComponent.Add(w, e, spatial.NewTransform(pos))
	spatial.VelocityComponent.Add(w, e, spatial.Velocity{})
	TimedRoamingComponent.Add(w, e, TimedRoaming{Interval: NpcRoamingInterval})
	g.eng.Network.GrantAuthority(e)

	return SpawnNpcNetworkObjectAction.Dispatch(g.eng.Bus,
		SpawnNpcNetworkObject{NetworkID: id, AvatarDetails: p.AvatarDetails, Name: name, Position: pos},
		bus.Topics(bus.TopicWorld),
	)
}

// switchAvatar swaps the requester with a random host NPC: the NPC takes the
// requester's spot and look, the requester gets the NPC's.
func (g *Game) switchAvatar(a bus.Action) error {
	npcs := g.HostNpcs()
	if len(npcs) == 0 {
		return nil
	}
	next := npcs[g.eng.Rand().IntN(len(npcs))]

	avatar, ok := g.AvatarOf(a.From)
	if !ok {
		return errUnknownPeer(a.From)
	}
	w := g.eng.World
	av, _ := AvatarComponent.Get(w, avatar)
	npc, _ := NpcComponent.Get(w, next)
	obj, _ := network.NetworkObjectComponent.Get(w, next)

	userPosition := g.position(avatar)
	npcPosition := g.position(next)
	g.setPosition(next, userPosition)
	npcDetails := npc.AvatarDetails

	return errors.Join(
		ChangeNpcAvatarAction.Dispatch(g.eng.Bus,
			ChangeNpcAvatar{NetworkID: obj.NetworkID, AvatarDetails: av.Details},
			bus.Topics(bus.TopicWorld),
		),
		SwitchAvatarEntityAction.Dispatch(g.eng.Bus,
			SwitchAvatarEntity{AvatarDetail: npcDetails, TargetPosition: npcPosition},
			bus.To(a.From), bus.Topics(bus.TopicWorld),
		),
	)
}

// catchUp replays the live balls and NPCs to a peer that just joined.
func (g *Game) catchUp(peer string) error {
	if peer == g.eng.PeerID() {
		return nil
	}
	var errs []error
	for _, e := range g.Balls() {
		obj, ok := network.NetworkObjectComponent.Get(g.eng.World, e)
		if !ok || obj.OwnerID != g.eng.PeerID() {
			continue
		}
		vel, falling := spatial.VelocityComponent.Get(g.eng.World, e)
		errs = append(errs, SpawnBallNetworkObjectAction.Dispatch(g.eng.Bus,
			SpawnBallNetworkObject{
				NetworkID: obj.NetworkID,
				Position:  g.position(e),
				Falling:   falling && vel.Linear != spatial.Zero,
			},
			bus.To(peer), bus.Topics(bus.TopicWorld),
		))
	}
	for _, e := range g.HostNpcs() {
		obj, _ := network.NetworkObjectComponent.Get(g.eng.World, e)
		npc, _ := NpcComponent.Get(g.eng.World, e)
		errs = append(errs, SpawnNpcNetworkObjectAction.Dispatch(g.eng.Bus,
			SpawnNpcNetworkObject{
				NetworkID:     obj.NetworkID,
				AvatarDetails: npc.AvatarDetails,
				Name:          npc.Name,
				Position:      g.position(e),
			},
			bus.To(peer), bus.Topics(bus.TopicWorld),
		))
	}
	return errors.Join(errs...)
}
