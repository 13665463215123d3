package basketball

import (
	"errors"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/spatial"
	"github.com/zeusync/netecs/internal/core/system"
)

// FlightSystem moves thrown balls along their arc. A ball that reaches the
// hoop is replaced by a falling ball and its network object is destroyed.
type FlightSystem struct {
	system.Base
	game  *Game
	query *ecs.Query
}

func NewFlightSystem(g *Game) *FlightSystem {
	return &FlightSystem{
		Base:  system.NewBase("basketball.flight", system.PhaseUpdate),
		game:  g,
		query: g.eng.World.DefineQuery(BallShotComponent, spatial.TransformComponent, network.AuthorityTag),
	}
}

func (s *FlightSystem) Update(tick system.Tick) error {
	g := s.game
	w := g.eng.World
	var errs []error
	for _, e := range s.query.Current() {
		shot, _ := BallShotComponent.Get(w, e)
		tr, _ := spatial.TransformComponent.Get(w, e)
		shot.Progress += tick.DeltaSeconds / BallFlyDuration
		if shot.Progress < 1 {
			tr.Position = ThrowTrajectory(shot.From, shot.To, shot.Progress, BallFlyArcHeight)
			continue
		}
		errs = append(errs, g.dropBall(e, tr.Position))
	}
	return errors.Join(errs...)
}

func (g *Game) dropBall(flying ecs.Entity, at spatial.Vec3) error {
	w := g.eng.World
	obj, ok := network.NetworkObjectComponent.Get(w, flying)
	if !ok {
		return nil
	}
	flyingID := obj.NetworkID

	id := g.eng.Network.CreateNetworkID()
	ball, err := g.eng.Network.Spawn(network.NetworkObject{
		OwnerID:   g.eng.PeerID(),
		NetworkID: id,
		Prefab:    PrefabBall,
	})
	if err != nil {
		return err
	}
	BallTag.Add(w, ball, ecs.Tag{})
	spatial.TransformComponent.Add(w, ball, spatial.NewTransform(at))
	spatial.VelocityComponent.Add(w, ball, spatial.Velocity{Linear: BallFallImpulse})
	g.eng.Network.GrantAuthority(ball)

	return errors.Join(
		SpawnBallNetworkObjectAction.Dispatch(g.eng.Bus,
			SpawnBallNetworkObject{NetworkID: id, Position: at, Falling: true},
			bus.Topics(bus.TopicWorld),
		),
		network.DestroyObjectAction.Dispatch(g.eng.Bus,
			network.DestroyObject{NetworkID: flyingID},
			bus.Topics(bus.TopicWorld),
		),
	)
}

// FallSystem drops released balls under gravity until they rest on the
// ground plane.
type FallSystem struct {
	system.Base
	game  *Game
	query *ecs.Query
}

func NewFallSystem(g *Game) *FallSystem {
	return &FallSystem{
		Base: system.NewBase("basketball.fall", system.PhaseUpdate),
		game: g,
		query: g.eng.World.DefineQuery(
			BallTag, spatial.VelocityComponent, spatial.TransformComponent, network.AuthorityTag,
		),
	}
}

func (s *FallSystem) Update(tick system.Tick) error {
	w := s.game.eng.World
	dt := tick.DeltaSeconds
	for _, e := range s.query.Current() {
		vel, _ := spatial.VelocityComponent.Get(w, e)
		tr, _ := spatial.TransformComponent.Get(w, e)
		if vel.Linear == spatial.Zero && tr.Position.Y <= 0 {
			continue
		}
		vel.Linear.Y += Gravity * dt
		tr.Position = tr.Position.Add(vel.Linear.Scale(dt))
		if tr.Position.Y <= 0 {
			tr.Position.Y = 0
			vel.Linear = spatial.Zero
		}
	}
	return nil
}

// RoamingSystem walks host NPCs in a random direction that changes every
// roaming interval.
type RoamingSystem struct {
	system.Base
	game  *Game
	query *ecs.Query
}

func NewRoamingSystem(g *Game) *RoamingSystem {
	return &RoamingSystem{
		Base: system.NewBase("basketball.roaming", system.PhaseUpdate),
		game: g,
		query: g.eng.World.DefineQuery(
			TimedRoamingComponent, NpcComponent, spatial.TransformComponent,
			spatial.VelocityComponent, network.AuthorityTag,
		),
	}
}

func (s *RoamingSystem) Update(tick system.Tick) error {
	w := s.game.eng.World
	rng := s.game.eng.Rand()
	dt := tick.DeltaSeconds
	for _, e := range s.query.Current() {
		roaming, _ := TimedRoamingComponent.Get(w, e)
		tr, _ := spatial.TransformComponent.Get(w, e)
		vel, _ := spatial.VelocityComponent.Get(w, e)

		roaming.Timer -= dt
		tr.Position = tr.Position.Add(vel.Linear.Scale(dt))
		if roaming.Timer > 0 {
			continue
		}
		roaming.Timer = roaming.Interval

		dir := RandomDirection(rng.Float64()*2-1, rng.Float64()*2-1)
		tr.Rotation = spatial.FromUnitVectors(Forward, dir)
		if rng.Float64() < 0.5 {
			vel.Linear = dir.Scale(NpcWalkSpeed)
		} else {
			vel.Linear = spatial.Zero
		}
	}
	return nil
}
