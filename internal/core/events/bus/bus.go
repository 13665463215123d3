package bus

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/zeusync/netecs/internal/core/observability/log"
)

type receptorEntry struct {
	id string
	fn Receptor
}

type pendingAction struct {
	action Action
	remote bool
}

// Bus is the ordered action log of one process.
//
// Dispatch, ApplyIncoming, CreateQueue, Queue.Drain and Compact belong to the
// tick goroutine. Receive, Submit, TakeOutgoing, AddObserver and GetMetrics
// may be called from any goroutine.
type Bus struct {
	logger log.Log
	peer   string

	log  []Action
	base uint64 // seq of log[0]
	next uint64 // seq of the next applied action

	receptors map[string][]receptorEntry
	queues    map[*Queue]struct{}

	dispatching bool
	pending     []pendingAction

	mu        sync.Mutex
	incoming  []pendingAction
	outgoing  []Action
	metrics   Metrics
	observers map[Observer]struct{}
}

// New creates a bus for the given local peer id. The peer may be set later
// with SetPeer once the session assigns one.
func New(logger log.Log, peer string) *Bus {
	if logger == nil {
		logger = log.Nop()
	}
	return &Bus{
		logger:    logger.With(log.String("component", "bus")),
		peer:      peer,
		base:      1,
		next:      1,
		receptors: make(map[string][]receptorEntry),
		queues:    make(map[*Queue]struct{}),
		observers: make(map[Observer]struct{}),
	}
}

func (b *Bus) Peer() string { return b.peer }

func (b *Bus) SetPeer(peer string) { b.peer = peer }

// Dispatch appends the action to the log and runs its receptors. From, To
// and ID are filled in when empty. With topics, or when the action already
// carries some, it is also queued for the transport.
//
// A Dispatch issued from inside a receptor is applied after the current
// action finishes, and its receptor errors are returned by the outer call.
func (b *Bus) Dispatch(action Action, topics ...string) error {
	if action.Type == "" {
		return ErrInvalidAction
	}
	action = action.clone()
	action.Topics = append(action.Topics, topics...)
	if action.From == "" {
		action.From = b.peer
	}
	if action.To == "" {
		action.To = ToAll
	}
	if action.ID == (ulid.ULID{}) {
		action.ID = ulid.Make()
	}

	b.mu.Lock()
	b.metrics.Dispatched++
	if len(action.Topics) > 0 {
		b.outgoing = append(b.outgoing, action)
		b.metrics.Outgoing++
	}
	b.mu.Unlock()

	return b.enqueue(action, false)
}

// Receive buffers actions that arrived from the network. They become visible
// on the next ApplyIncoming.
func (b *Bus) Receive(actions ...Action) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range actions {
		b.incoming = append(b.incoming, pendingAction{action: a.clone(), remote: true})
	}
	b.metrics.Received += uint64(len(actions))
}

// Submit buffers actions authored on behalf of the local peer by another
// goroutine. ApplyIncoming dispatches them in arrival order, interleaved with
// received actions, so they reach the transport in log order.
func (b *Bus) Submit(actions ...Action) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range actions {
		b.incoming = append(b.incoming, pendingAction{action: a.clone()})
	}
}

// ApplyIncoming applies every buffered remote or submitted action in arrival
// order.
func (b *Bus) ApplyIncoming() error {
	b.mu.Lock()
	incoming := b.incoming
	b.incoming = nil
	b.mu.Unlock()

	var errs []error
	for _, p := range incoming {
		a := p.action
		if !p.remote {
			errs = append(errs, b.Dispatch(a))
			continue
		}
		if a.Type == "" {
			errs = append(errs, fmt.Errorf("%w: from %q", ErrInvalidAction, a.From))
			continue
		}
		if a.To == "" {
			a.To = ToAll
		}
		if err := b.enqueue(a, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingIncoming returns the number of buffered received and submitted
// actions.
func (b *Bus) PendingIncoming() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.incoming)
}

// TakeOutgoing hands the actions dispatched with topics since the previous
// call over to the transport.
func (b *Bus) TakeOutgoing() []Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.outgoing
	b.outgoing = nil
	return out
}

// AddReceptor appends fn to the dispatch table entry of actionType.
func (b *Bus) AddReceptor(actionType string, fn Receptor) ReceptorHandle {
	h := ReceptorHandle{id: uuid.NewString(), actionType: actionType}
	b.receptors[actionType] = append(b.receptors[actionType], receptorEntry{id: h.id, fn: fn})
	return h
}

// RemoveReceptor unregisters a receptor. Unknown handles are ignored.
func (b *Bus) RemoveReceptor(h ReceptorHandle) bool {
	entries := b.receptors[h.actionType]
	i := slices.IndexFunc(entries, func(e receptorEntry) bool { return e.id == h.id })
	if i < 0 {
		return false
	}
	b.receptors[h.actionType] = slices.Delete(slices.Clone(entries), i, i+1)
	return true
}

// CreateQueue returns a cursor starting at the oldest retained action.
func (b *Bus) CreateQueue(pred Predicate) *Queue {
	q := &Queue{bus: b, pred: pred, cursor: b.base}
	b.queues[q] = struct{}{}
	b.mu.Lock()
	b.metrics.Queues = uint64(len(b.queues))
	b.mu.Unlock()
	return q
}

// Compact drops the actions every live queue has already consumed and
// returns how many were dropped. Without queues the whole log is dropped.
func (b *Bus) Compact() int {
	oldest := b.next
	for q := range b.queues {
		oldest = min(oldest, q.cursor)
	}
	drop := int(oldest - b.base)
	if drop <= 0 {
		return 0
	}
	n := copy(b.log, b.log[drop:])
	clear(b.log[n:])
	b.log = b.log[:n]
	b.base = oldest

	b.mu.Lock()
	b.metrics.Compacted += uint64(drop)
	b.metrics.Retained = uint64(len(b.log))
	b.mu.Unlock()
	return drop
}

// Log returns a copy of the retained actions in dispatch order.
func (b *Bus) Log() []Action {
	return slices.Clone(b.log)
}

func (b *Bus) AddObserver(obs Observer) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *Bus) RemoveObserver(obs Observer) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *Bus) GetMetrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

func (b *Bus) enqueue(action Action, remote bool) error {
	b.pending = append(b.pending, pendingAction{action: action, remote: remote})
	if b.dispatching {
		return nil
	}
	b.dispatching = true
	defer func() { b.dispatching = false }()

	var errs []error
	for len(b.pending) > 0 {
		p := b.pending[0]
		b.pending = b.pending[1:]
		if err := b.apply(p.action, p.remote); err != nil {
			errs = append(errs, err)
		}
	}
	b.pending = nil
	return errors.Join(errs...)
}

func (b *Bus) apply(action Action, remote bool) error {
	if !action.Addressed(b.peer) {
		b.mu.Lock()
		b.metrics.Skipped++
		b.mu.Unlock()
		return nil
	}

	start := time.Now()
	action.Seq = b.next
	b.next++
	b.log = append(b.log, action)

	b.mu.Lock()
	observers := make([]Observer, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.Unlock()

	for _, obs := range observers {
		obs.OnDispatch(action, remote)
	}

	entries := b.receptors[action.Type]
	var errs []error
	for _, entry := range entries {
		if err := entry.fn(action); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", action.Type, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		b.logger.Warn("receptor failed",
			log.String("type", action.Type),
			log.String("from", action.From),
			log.Uint64("seq", action.Seq),
			log.Error(err),
		)
	}

	b.mu.Lock()
	b.metrics.Applied++
	b.metrics.Retained = uint64(len(b.log))
	if err != nil {
		b.metrics.ReceptorErrors++
	}
	b.mu.Unlock()

	dur := time.Since(start).Microseconds()
	for _, obs := range observers {
		obs.OnDelivered(action, len(entries), err, dur)
	}
	return err
}
