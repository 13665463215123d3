package engine

import (
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/system"
)

// IncomingActionSystem makes the remote actions buffered since the previous
// tick visible on the bus. It runs before every other system so that a tick
// observes a stable set of applied actions.
type IncomingActionSystem struct {
	system.Base
	bus *bus.Bus
}

func NewIncomingActionSystem(b *bus.Bus) *IncomingActionSystem {
	return &IncomingActionSystem{
		Base: system.NewBase("incoming_actions", system.PhaseIncoming),
		bus:  b,
	}
}

func (s *IncomingActionSystem) Update(system.Tick) error {
	return s.bus.ApplyIncoming()
}
