package system

import (
	"context"
	"time"
)

// System represents a game logic processor run once per tick.
// Systems receive their collaborators at construction and the tick context
// on every Update; none of them reaches for global state.
type System interface {
	// Identity

	Name() string
	Phase() ExecutionPhase

	// Lifecycle

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error

	// Execution

	Update(tick Tick) error
}

// Tick is the per-frame context handed to every system.
type Tick struct {
	Number       uint64
	DeltaSeconds float64
	Elapsed      time.Duration
}

// ExecutionPhase defines when a system runs. Within a phase systems run in
// registration order.
type ExecutionPhase uint8

const (
	// PhaseIncoming applies remote actions before anything else looks at the bus.
	PhaseIncoming ExecutionPhase = iota
	PhasePreUpdate
	PhaseUpdate
	PhasePostUpdate
	// PhaseOutgoing publishes authoritative state for the transport.
	PhaseOutgoing
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhaseIncoming:
		return "incoming"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutgoing:
		return "outgoing"
	default:
		return "unknown"
	}
}

// Base provides no-op lifecycle hooks for embedding.
type Base struct {
	name  string
	phase ExecutionPhase
}

func NewBase(name string, phase ExecutionPhase) Base {
	return Base{name: name, phase: phase}
}

func (b Base) Name() string                     { return b.name }
func (b Base) Phase() ExecutionPhase            { return b.phase }
func (b Base) Initialize(context.Context) error { return nil }
func (b Base) Shutdown(context.Context) error   { return nil }

type funcSystem struct {
	Base
	fn func(Tick) error
}

func (f funcSystem) Update(tick Tick) error { return f.fn(tick) }

// Func wraps a plain update function into a System.
func Func(name string, phase ExecutionPhase, fn func(Tick) error) System {
	return funcSystem{Base: NewBase(name, phase), fn: fn}
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

// ManagerMetrics provides system manager statistics
type ManagerMetrics struct {
	RegisteredSystems uint32
	EnabledSystems    uint32
	Ticks             uint64
	TotalUpdateTime   time.Duration
	AverageUpdateTime time.Duration
	LastUpdateTime    time.Time
}
