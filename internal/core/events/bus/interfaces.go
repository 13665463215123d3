package bus

// Receptor is a dispatch-table entry invoked for every applied action of the
// type it was registered for. Receptors run synchronously in the tick
// goroutine, in registration order. A returned error is collected and joined
// with the errors of the other receptors; it never stops delivery.
type Receptor func(action Action) error

// Predicate selects the actions an action queue yields.
type Predicate func(action Action) bool

// Observer is notified about dispatches and deliveries. Implementations can
// export metrics, tracing, or logs. Observers should return quickly.
type Observer interface {
	// OnDispatch is called before receptors run. Remote is true for actions
	// that arrived through Receive.
	OnDispatch(action Action, remote bool)
	// OnDelivered is called after all receptors of the action returned.
	OnDelivered(action Action, receptors int, err error, durationMicros int64)
}

// Metrics represents a minimal set of counters.
type Metrics struct {
	Dispatched     uint64
	Received       uint64
	Applied        uint64
	Skipped        uint64
	ReceptorErrors uint64
	Compacted      uint64
	Retained       uint64
	Queues         uint64
	Outgoing       uint64
}

// ReceptorHandle identifies a registered receptor.
type ReceptorHandle struct {
	id         string
	actionType string
}

func (h ReceptorHandle) ID() string         { return h.id }
func (h ReceptorHandle) ActionType() string { return h.actionType }
