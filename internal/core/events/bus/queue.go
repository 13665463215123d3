package bus

// Queue is a per-consumer cursor into the action log. Each Drain yields the
// matching actions applied since the previous Drain, in dispatch order.
type Queue struct {
	bus    *Bus
	pred   Predicate
	cursor uint64
	closed bool
}

// Drain returns the unseen matching actions and advances past them. A nil
// predicate matches everything. A closed queue drains nothing.
func (q *Queue) Drain() []Action {
	if q.closed {
		return nil
	}
	b := q.bus
	start := max(q.cursor, b.base) - b.base

	var out []Action
	for _, a := range b.log[start:] {
		if q.pred == nil || q.pred(a) {
			out = append(out, a)
		}
	}
	q.cursor = b.next
	return out
}

// Close releases the cursor so compaction no longer waits for it.
func (q *Queue) Close() {
	if q.closed {
		return
	}
	q.closed = true
	delete(q.bus.queues, q)
	q.bus.mu.Lock()
	q.bus.metrics.Queues = uint64(len(q.bus.queues))
	q.bus.mu.Unlock()
}
