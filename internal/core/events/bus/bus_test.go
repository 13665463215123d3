package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterPayload struct {
	Key   string `json:"key"`
	Delta int    `json:"delta"`
}

var (
	addCounter   = Define[counterPayload]("test.addCounter")
	resetCounter = Define[struct{}]("test.resetCounter")
)

type testObserver struct {
	dispatched int
	delivered  int
	remote     int
	lastErr    error
}

func (o *testObserver) OnDispatch(_ Action, remote bool) {
	o.dispatched++
	if remote {
		o.remote++
	}
}

func (o *testObserver) OnDelivered(_ Action, receptors int, err error, _ int64) {
	o.delivered += receptors
	o.lastErr = err
}

func mustNew[P any](t *testing.T, d Definition[P], p P, opts ...Option) Action {
	t.Helper()
	a, err := d.New(p, opts...)
	require.NoError(t, err)
	return a
}

func counterState(b *Bus) map[string]int {
	state := map[string]int{}
	addCounter.On(b, func(_ Action, p counterPayload) error {
		state[p.Key] += p.Delta
		return nil
	})
	b.AddReceptor(resetCounter.Type(), func(a Action) error {
		clear(state)
		return nil
	})
	return state
}

func TestDispatchFillsEnvelope(t *testing.T) {
	b := New(nil, "peer-a")
	q := b.CreateQueue(nil)

	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "x", Delta: 1}))

	got := q.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, "peer-a", got[0].From)
	assert.Equal(t, ToAll, got[0].To)
	assert.NotZero(t, got[0].ID)
	assert.EqualValues(t, 1, got[0].Seq)

	p, err := addCounter.Decode(got[0])
	require.NoError(t, err)
	assert.Equal(t, counterPayload{Key: "x", Delta: 1}, p)
}

func TestDispatchRejectsEmptyType(t *testing.T) {
	b := New(nil, "peer-a")
	assert.ErrorIs(t, b.Dispatch(Action{}), ErrInvalidAction)
}

func TestDecodeTypeMismatch(t *testing.T) {
	a := mustNew(t, addCounter, counterPayload{})
	_, err := resetCounter.Decode(a)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	a.Payload = []byte("{")
	_, err = addCounter.Decode(a)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestQueueDrainTwice(t *testing.T) {
	b := New(nil, "peer-a")
	q := b.CreateQueue(addCounter.Matches)

	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "a"}))
	require.NoError(t, resetCounter.Dispatch(b, struct{}{}))
	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "b"}))

	first := q.Drain()
	require.Len(t, first, 2)
	assert.Less(t, first[0].Seq, first[1].Seq)
	assert.Empty(t, q.Drain())
}

func TestNewQueueSeesRetainedHistory(t *testing.T) {
	b := New(nil, "peer-a")
	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "early"}))

	q := b.CreateQueue(addCounter.Matches)
	require.Len(t, q.Drain(), 1)
}

func TestReceptorsRunInRegistrationOrder(t *testing.T) {
	b := New(nil, "peer-a")
	var order []string
	b.AddReceptor(addCounter.Type(), func(Action) error { order = append(order, "first"); return nil })
	h := b.AddReceptor(addCounter.Type(), func(Action) error { order = append(order, "second"); return nil })
	b.AddReceptor(addCounter.Type(), func(Action) error { order = append(order, "third"); return nil })

	require.NoError(t, addCounter.Dispatch(b, counterPayload{}))
	assert.Equal(t, []string{"first", "second", "third"}, order)

	assert.True(t, b.RemoveReceptor(h))
	assert.False(t, b.RemoveReceptor(h))
	order = nil
	require.NoError(t, addCounter.Dispatch(b, counterPayload{}))
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestReentrantDispatchIsQueued(t *testing.T) {
	b := New(nil, "peer-a")
	var order []string
	addCounter.On(b, func(_ Action, p counterPayload) error {
		order = append(order, "add:"+p.Key)
		if p.Key == "outer" {
			require.NoError(t, resetCounter.Dispatch(b, struct{}{}))
			order = append(order, "add:outer:done")
		}
		return nil
	})
	b.AddReceptor(resetCounter.Type(), func(Action) error {
		order = append(order, "reset")
		return nil
	})

	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "outer"}))
	assert.Equal(t, []string{"add:outer", "add:outer:done", "reset"}, order)

	log := b.Log()
	require.Len(t, log, 2)
	assert.Equal(t, addCounter.Type(), log[0].Type)
	assert.Equal(t, resetCounter.Type(), log[1].Type)
}

func TestReceptorErrorsAreJoined(t *testing.T) {
	b := New(nil, "peer-a")
	errA := errors.New("a")
	errB := errors.New("b")
	obs := &testObserver{}
	b.AddObserver(obs)
	b.AddReceptor(addCounter.Type(), func(Action) error { return errA })
	b.AddReceptor(addCounter.Type(), func(Action) error { return errB })
	ran := false
	b.AddReceptor(addCounter.Type(), func(Action) error { ran = true; return nil })

	err := addCounter.Dispatch(b, counterPayload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran)
	assert.Equal(t, 3, obs.delivered)
	assert.ErrorIs(t, obs.lastErr, errA)
	assert.EqualValues(t, 1, b.GetMetrics().ReceptorErrors)
}

func TestDeterministicReplay(t *testing.T) {
	source := New(nil, "peer-a")
	stream := []Action{
		mustNew(t, addCounter, counterPayload{Key: "x", Delta: 2}),
		mustNew(t, addCounter, counterPayload{Key: "y", Delta: 5}),
		mustNew(t, resetCounter, struct{}{}),
		mustNew(t, addCounter, counterPayload{Key: "x", Delta: -1}),
		mustNew(t, addCounter, counterPayload{Key: "z", Delta: 3}),
		mustNew(t, addCounter, counterPayload{Key: "x", Delta: 4}),
	}
	for _, a := range stream {
		require.NoError(t, source.Dispatch(a, TopicWorld))
	}
	wire := source.TakeOutgoing()
	require.Len(t, wire, len(stream))

	left := New(nil, "peer-b")
	right := New(nil, "peer-c")
	leftState := counterState(left)
	rightState := counterState(right)

	left.Receive(wire...)
	require.NoError(t, left.ApplyIncoming())
	for _, a := range wire {
		right.Receive(a)
	}
	require.NoError(t, right.ApplyIncoming())

	assert.Equal(t, map[string]int{"x": 3, "z": 3}, leftState)
	assert.Equal(t, leftState, rightState)
	assert.Equal(t, left.Log()[3].ID, right.Log()[3].ID)
}

func TestIncomingIsBufferedUntilApplied(t *testing.T) {
	b := New(nil, "peer-b")
	obs := &testObserver{}
	b.AddObserver(obs)
	state := counterState(b)

	b.Receive(mustNew(t, addCounter, counterPayload{Key: "k", Delta: 1}, From("peer-a")))
	assert.Empty(t, state)
	assert.Equal(t, 1, b.PendingIncoming())

	require.NoError(t, b.ApplyIncoming())
	assert.Equal(t, 1, state["k"])
	assert.Zero(t, b.PendingIncoming())
	assert.Equal(t, 1, obs.remote)
	assert.Empty(t, b.TakeOutgoing(), "remote actions are not forwarded again")

	b.Receive(Action{From: "peer-a"})
	assert.ErrorIs(t, b.ApplyIncoming(), ErrInvalidAction)
}

func TestSubmittedActionsAreDispatchedInOrder(t *testing.T) {
	b := New(nil, "host")
	obs := &testObserver{}
	b.AddObserver(obs)
	state := counterState(b)

	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "k", Delta: 1}, Topics(TopicWorld)))
	b.Receive(mustNew(t, addCounter, counterPayload{Key: "k", Delta: 2}, From("peer-a")))
	b.Submit(mustNew(t, addCounter, counterPayload{Key: "k", Delta: 4}, Topics(TopicWorld)))
	assert.Equal(t, 2, b.PendingIncoming())
	assert.Equal(t, 1, state["k"])

	require.NoError(t, b.ApplyIncoming())
	assert.Equal(t, 7, state["k"])
	assert.Equal(t, 1, obs.remote)

	logged := b.Log()
	require.Len(t, logged, 3)
	assert.Equal(t, "host", logged[2].From)

	out := b.TakeOutgoing()
	require.Len(t, out, 2, "submitted actions are forwarded, received ones are not")
	assert.Equal(t, logged[0].ID, out[0].ID)
	assert.Equal(t, logged[2].ID, out[1].ID)
}

func TestLocalOnlyWithoutTopics(t *testing.T) {
	b := New(nil, "peer-a")
	require.NoError(t, addCounter.Dispatch(b, counterPayload{}))
	require.NoError(t, addCounter.Dispatch(b, counterPayload{}, Topics(TopicWorld)))
	require.NoError(t, b.Dispatch(mustNew(t, resetCounter, struct{}{}), TopicWorld))

	out := b.TakeOutgoing()
	require.Len(t, out, 2)
	assert.Equal(t, []string{TopicWorld}, out[0].Topics)
	assert.Empty(t, b.TakeOutgoing())
}

func TestActionsForOtherPeersAreNotApplied(t *testing.T) {
	b := New(nil, "host")
	state := counterState(b)

	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "k", Delta: 1}, To("peer-a"), Topics(TopicWorld)))
	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "k", Delta: 1}, To("host")))

	assert.Equal(t, 1, state["k"])
	assert.Len(t, b.TakeOutgoing(), 1)
	assert.EqualValues(t, 1, b.GetMetrics().Skipped)
}

func TestCompactKeepsUnconsumedActions(t *testing.T) {
	b := New(nil, "peer-a")
	slow := b.CreateQueue(nil)
	fast := b.CreateQueue(nil)

	for range 4 {
		require.NoError(t, addCounter.Dispatch(b, counterPayload{}))
	}
	require.Len(t, fast.Drain(), 4)
	assert.Zero(t, b.Compact())

	require.Len(t, slow.Drain(), 4)
	require.NoError(t, addCounter.Dispatch(b, counterPayload{Key: "late"}))
	assert.Equal(t, 4, b.Compact())
	assert.Len(t, b.Log(), 1)

	got := slow.Drain()
	require.Len(t, got, 1)
	assert.EqualValues(t, 5, got[0].Seq)

	fast.Close()
	slow.Close()
	assert.Empty(t, fast.Drain())
	assert.Equal(t, 1, b.Compact())

	m := b.GetMetrics()
	assert.EqualValues(t, 5, m.Compacted)
	assert.Zero(t, m.Retained)
	assert.Zero(t, m.Queues)
}
