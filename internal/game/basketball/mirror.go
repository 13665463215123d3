package basketball

import (
	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/core/spatial"
)

// The receptors below run on every process, host included. Objects the
// local process created before announcing them are left alone.

func (g *Game) avatarSpawned(a bus.Action, p network.SpawnObject) error {
	if p.Prefab != PrefabAvatar {
		return nil
	}
	owner := a.From
	if a.From == g.eng.HostID() && p.OwnerID != "" {
		owner = p.OwnerID
	}
	e, ok := g.eng.Network.Get(owner, p.NetworkID)
	if !ok || AvatarComponent.Has(g.eng.World, e) {
		return nil
	}
	AvatarComponent.Add(g.eng.World, e, avatarFromParameters(p.Parameters))
	return nil
}

func (g *Game) spawnBallReceptor(a bus.Action, p SpawnBallNetworkObject) error {
	if _, ok := g.eng.Network.Get(a.From, p.NetworkID); ok {
		return nil
	}
	e, err := g.eng.Network.Spawn(network.NetworkObject{
		OwnerID:   a.From,
		NetworkID: p.NetworkID,
		Prefab:    PrefabBall,
	})
	if err != nil {
		return err
	}
	BallTag.Add(g.eng.World, e, ecs.Tag{})
	spatial.TransformComponent.Add(g.eng.World, e, spatial.NewTransform(p.Position))
	if p.Falling {
		// FallSystem moves it only where the ball is authoritative
		spatial.VelocityComponent.Add(g.eng.World, e, spatial.Velocity{Linear: BallFallImpulse})
	}
	return nil
}

func (g *Game) spawnNpcReceptor(a bus.Action, p SpawnNpcNetworkObject) error {
	if _, ok := g.eng.Network.Get(a.From, p.NetworkID); ok {
		return nil
	}
	e, err := g.eng.Network.Spawn(network.NetworkObject{
		OwnerID:   a.From,
		NetworkID: p.NetworkID,
		Prefab:    PrefabNpc,
	})
	if err != nil {
		return err
	}
	w := g.eng.World
	NpcComponent.Add(w, e, Npc{Name: p.Name, AvatarDetails: p.AvatarDetails})
	scene.NameComponent.Add(w, e, scene.Name{Value: p.Name})
	spatial.TransformComponent.Add(w, e, spatial.NewTransform(p.Position))
	return nil
}

func (g *Game) changeNpcAvatarReceptor(a bus.Action, p ChangeNpcAvatar) error {
	e, ok := g.eng.Network.Get(a.From, p.NetworkID)
	if !ok {
		return nil
	}
	if npc, ok := NpcComponent.Get(g.eng.World, e); ok {
		npc.AvatarDetails = p.AvatarDetails
	}
	return nil
}

// switchAvatarReceptor runs on the requesting peer only: it moves the local
// avatar to the NPC's old spot and tells everyone about the new look.
func (g *Game) switchAvatarReceptor(_ bus.Action, p SwitchAvatarEntity) error {
	avatar, ok := g.AvatarOf(g.eng.PeerID())
	if !ok {
		return errUnknownPeer(g.eng.PeerID())
	}
	g.setPosition(avatar, p.TargetPosition)
	return AvatarDetailsAction.Dispatch(g.eng.Bus,
		AvatarDetailsChanged{AvatarDetail: p.AvatarDetail},
		bus.Topics(bus.TopicWorld),
	)
}

func (g *Game) avatarDetailsReceptor(a bus.Action, p AvatarDetailsChanged) error {
	avatar, ok := g.AvatarOf(a.From)
	if !ok {
		return nil
	}
	if av, ok := AvatarComponent.Get(g.eng.World, avatar); ok {
		av.Details = p.AvatarDetail
	}
	return nil
}
