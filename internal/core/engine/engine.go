// Package engine is the explicit per-process context every system receives
// at construction: world, action bus, network registry, session identity,
// clock and random source.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/system"
)

var (
	ErrNotInitialized     = errors.New("engine not initialized")
	ErrAlreadyInitialized = errors.New("engine already initialized")
)

// Options configure a new Engine.
type Options struct {
	PeerID string
	HostID string
	// Seed makes the random source reproducible; zero picks a random seed.
	Seed uint64
}

type Engine struct {
	logger log.Log

	World     *ecs.World
	Bus       *bus.Bus
	Network   *network.Registry
	Receptors *network.Receptors
	Systems   *system.Manager

	peerID string
	hostID string
	rng    *rand.Rand

	tick        uint64
	delta       float64
	elapsed     time.Duration
	initialized bool
}

var _ network.Session = (*Engine)(nil)

// New wires an engine. The incoming action system is registered first and
// the network receptors are installed; gameplay systems are added with
// AddSystem before Init.
func New(opts Options, logger log.Log) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	world := ecs.NewWorld()
	e := &Engine{
		logger:  logger.With(log.String("component", "engine")),
		World:   world,
		Bus:     bus.New(logger, opts.PeerID),
		Network: network.NewRegistry(world, logger),
		Systems: system.NewManager(logger),
		peerID:  opts.PeerID,
		hostID:  opts.HostID,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	e.Receptors = network.Install(e.Bus, e.Network, e, logger)

	_ = e.Systems.RegisterSystem(NewIncomingActionSystem(e.Bus))
	_ = e.Systems.RegisterSystem(network.NewTransformSync(e.Bus, e.Network))
	return e
}

func (e *Engine) Logger() log.Log { return e.logger }

func (e *Engine) PeerID() string { return e.peerID }
func (e *Engine) HostID() string { return e.hostID }
func (e *Engine) IsHost() bool   { return e.peerID != "" && e.peerID == e.hostID }

// SetSession records the identity assigned by the host. Peers learn it from
// the welcome message after connecting.
func (e *Engine) SetSession(peerID, hostID string) {
	e.peerID = peerID
	e.hostID = hostID
	e.Bus.SetPeer(peerID)
	e.logger.Info("session assigned", log.String("peer", peerID), log.String("host", hostID))
}

func (e *Engine) Rand() *rand.Rand { return e.rng }

func (e *Engine) DeltaSeconds() float64 { return e.delta }

func (e *Engine) Elapsed() time.Duration { return e.elapsed }

func (e *Engine) TickNumber() uint64 { return e.tick }

// AddSystem registers a gameplay system.
func (e *Engine) AddSystem(s system.System) error {
	return e.Systems.RegisterSystem(s)
}

// Init initializes every registered system. The host also registers itself
// as the first peer of the session.
func (e *Engine) Init(ctx context.Context) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if err := e.Systems.InitializeAll(ctx); err != nil {
		return err
	}
	e.initialized = true
	if e.IsHost() {
		if err := network.CreatePeerAction.Dispatch(e.Bus, network.CreatePeer{PeerID: e.peerID, Name: "host"}); err != nil {
			return err
		}
	}
	e.logger.Info("engine initialized",
		log.String("peer", e.peerID),
		log.Bool("host", e.IsHost()),
		log.Strings("systems", e.Systems.GetExecutionOrder()),
	)
	return nil
}

// Step advances the engine by dt seconds and runs one tick of every system.
func (e *Engine) Step(dt float64) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	e.tick++
	e.delta = dt
	e.elapsed += time.Duration(dt * float64(time.Second))
	return e.Systems.Update(system.Tick{
		Number:       e.tick,
		DeltaSeconds: dt,
		Elapsed:      e.elapsed,
	})
}

// Shutdown stops every system and drops the action log.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.initialized {
		return nil
	}
	e.initialized = false
	err := e.Systems.ShutdownAll(ctx)
	e.Receptors.Uninstall()
	e.Bus.Compact()
	e.logger.Info("engine shut down", log.Uint64("ticks", e.tick))
	return err
}
