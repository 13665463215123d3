// Package basketball is the demo game played on top of the networked ECS:
// peers ask the host to throw balls, spawn roaming NPCs and swap their
// avatar with an NPC; the host simulates and every peer mirrors the result.
package basketball

import (
	"errors"
	"fmt"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/core/spatial"
)

var (
	ErrMissingTarget = errors.New("no hoop entity to throw to")
	ErrMissingAvatar = errors.New("peer has no avatar")
)

// Game holds the queries and receptors shared by the basketball systems.
type Game struct {
	logger log.Log
	eng    *engine.Engine

	hoops   *ecs.Query
	avatars *ecs.Query
	balls   *ecs.Query
	npcs    *ecs.Query

	handles []bus.ReceptorHandle
}

// Install registers the mirror receptors on every process and the
// simulation systems. Host-only systems are added when the engine is the
// host; they still check IsHost every tick so a session change is honored.
func Install(eng *engine.Engine) (*Game, error) {
	w := eng.World
	g := &Game{
		logger:  eng.Logger().With(log.String("component", "basketball")),
		eng:     eng,
		hoops:   w.DefineQuery(scene.TriggerVolumeComponent, spatial.TransformComponent),
		avatars: w.DefineQuery(AvatarComponent, network.NetworkObjectComponent),
		balls:   w.DefineQuery(BallTag, network.NetworkObjectComponent),
		npcs:    w.DefineQuery(NpcComponent, network.NetworkObjectComponent),
	}

	eng.Receptors.ClaimPrefab(PrefabBall)
	eng.Receptors.ClaimPrefab(PrefabNpc)

	b := eng.Bus
	g.handles = append(g.handles,
		network.SpawnObjectAction.On(b, g.avatarSpawned),
		SpawnBallNetworkObjectAction.On(b, g.spawnBallReceptor),
		SpawnNpcNetworkObjectAction.On(b, g.spawnNpcReceptor),
		ChangeNpcAvatarAction.On(b, g.changeNpcAvatarReceptor),
		SwitchAvatarEntityAction.On(b, g.switchAvatarReceptor),
		AvatarDetailsAction.On(b, g.avatarDetailsReceptor),
	)

	if err := errors.Join(
		eng.AddSystem(NewServerSystem(g)),
		eng.AddSystem(NewFlightSystem(g)),
		eng.AddSystem(NewFallSystem(g)),
		eng.AddSystem(NewRoamingSystem(g)),
	); err != nil {
		return nil, err
	}
	return g, nil
}

// Uninstall removes the receptors registered by Install.
func (g *Game) Uninstall() {
	for _, h := range g.handles {
		g.eng.Bus.RemoveReceptor(h)
	}
	g.handles = nil
}

// Hoop returns the first trigger volume, the throw target.
func (g *Game) Hoop() (ecs.Entity, bool) {
	e := g.hoops.First()
	return e, e != ecs.NullEntity
}

// AvatarOf returns the avatar entity owned by peer.
func (g *Game) AvatarOf(peer string) (ecs.Entity, bool) {
	for _, e := range g.avatars.Current() {
		if obj, ok := network.NetworkObjectComponent.Get(g.eng.World, e); ok && obj.OwnerID == peer {
			return e, true
		}
	}
	return ecs.NullEntity, false
}

// Balls lists the ball entities in creation order.
func (g *Game) Balls() []ecs.Entity { return g.balls.Current() }

// Npcs lists the NPC entities in creation order.
func (g *Game) Npcs() []ecs.Entity { return g.npcs.Current() }

// HostNpcs lists the NPCs owned by the host.
func (g *Game) HostNpcs() []ecs.Entity {
	var out []ecs.Entity
	for _, e := range g.npcs.Current() {
		if obj, ok := network.NetworkObjectComponent.Get(g.eng.World, e); ok && obj.OwnerID == g.eng.HostID() {
			out = append(out, e)
		}
	}
	return out
}

func (g *Game) position(e ecs.Entity) spatial.Vec3 {
	if tr, ok := spatial.TransformComponent.Get(g.eng.World, e); ok {
		return tr.Position
	}
	return spatial.Zero
}

func (g *Game) setPosition(e ecs.Entity, pos spatial.Vec3) {
	if tr, ok := spatial.TransformComponent.Get(g.eng.World, e); ok {
		tr.Position = pos
		return
	}
	spatial.TransformComponent.Add(g.eng.World, e, spatial.NewTransform(pos))
}

func avatarFromParameters(params map[string]any) Avatar {
	a := Avatar{Height: DefaultAvatarHeight}
	if v, ok := params["avatarURL"].(string); ok {
		a.Details.AvatarURL = v
	}
	if v, ok := params["thumbnailURL"].(string); ok {
		a.Details.ThumbnailURL = v
	}
	if v, ok := params["height"].(float64); ok && v > 0 {
		a.Height = v
	}
	return a
}

func errUnknownPeer(peer string) error {
	return fmt.Errorf("%w: %s", ErrMissingAvatar, peer)
}
