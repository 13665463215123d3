package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
	"github.com/zeusync/netecs/internal/core/protocol/websocket"
	"github.com/zeusync/netecs/internal/node"
)

type note struct {
	Text string `json:"text"`
}

var noteAction = bus.Define[note]("test.note")

type inbox struct {
	mu      sync.Mutex
	actions []bus.Action
	hub     *Hub
}

func (i *inbox) Receive(actions ...bus.Action) {
	i.mu.Lock()
	i.actions = append(i.actions, actions...)
	i.mu.Unlock()
}

// Submit records the actions and publishes them at once, as a host tick
// would.
func (i *inbox) Submit(actions ...bus.Action) {
	i.Receive(actions...)
	if i.hub != nil {
		_ = i.hub.Publish(context.Background(), actions)
	}
}

func (i *inbox) ofType(actionType string) []bus.Action {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []bus.Action
	for _, a := range i.actions {
		if a.Type == actionType {
			out = append(out, a)
		}
	}
	return out
}

type harness struct {
	hub   *Hub
	inbox *inbox
	url   string
}

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()
	in := &inbox{}
	hub, err := NewHub(config, in, log.Nop())
	require.NoError(t, err)
	in.hub = hub
	return &harness{hub: hub, inbox: in, url: serve(t, hub)}
}

// serve runs hub behind an httptest websocket endpoint and returns its url.
func serve(t *testing.T, hub *Hub) string {
	t.Helper()
	ln := websocket.NewListener(protocol.DefaultConfig(), log.Nop())
	srv := httptest.NewServer(ln)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		_ = hub.Close()
		_ = ln.Close()
		srv.Close()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (h *harness) dial(t *testing.T, token string) (protocol.Connection, protocol.Envelope) {
	t.Helper()
	ctx := testCtx(t)
	conn, err := websocket.NewDialer(protocol.DefaultConfig()).Dial(ctx, h.url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.Send(ctx, protocol.Envelope{Kind: protocol.KindHello, Token: token, Name: "tester"}))
	env, err := conn.Receive(ctx)
	require.NoError(t, err)
	return conn, env
}

// join connects a peer and waits until the hub has registered it.
func (h *harness) join(t *testing.T) (protocol.Connection, string) {
	t.Helper()
	conn, welcome := h.dial(t, "")
	require.Equal(t, protocol.KindWelcome, welcome.Kind)
	require.Eventually(t, func() bool {
		for _, p := range h.hub.Sessions() {
			if p.ID == welcome.Peer {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	return conn, welcome.Peer
}

// readUntil reads envelopes until an action of actionType arrives and
// returns every action seen on the way.
func readUntil(t *testing.T, conn protocol.Connection, actionType string) []bus.Action {
	t.Helper()
	ctx := testCtx(t)
	var seen []bus.Action
	for {
		env, err := conn.Receive(ctx)
		require.NoError(t, err)
		seen = append(seen, env.Actions...)
		for _, a := range env.Actions {
			if a.Type == actionType {
				return seen
			}
		}
	}
}

func send(t *testing.T, conn protocol.Connection, def bus.Definition[note], text string, opts ...bus.Option) {
	t.Helper()
	a, err := def.New(note{Text: text}, opts...)
	require.NoError(t, err)
	require.NoError(t, conn.Send(testCtx(t), protocol.Actions(a)))
}

func TestWelcomeAndJoinAnnouncement(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	conn, welcome := h.dial(t, "")

	assert.Equal(t, protocol.KindWelcome, welcome.Kind)
	assert.NotEmpty(t, welcome.Peer)
	assert.Equal(t, "host", welcome.Host)

	seen := readUntil(t, conn, network.CreatePeerAction.Type())
	created, err := network.CreatePeerAction.Decode(seen[len(seen)-1])
	require.NoError(t, err)
	assert.Equal(t, welcome.Peer, created.PeerID)
	assert.Equal(t, "tester", created.Name)

	joins := h.inbox.ofType(network.CreatePeerAction.Type())
	require.Len(t, joins, 1)
	assert.Equal(t, "host", joins[0].From)
}

func TestJoinFollowsEarlierHostActions(t *testing.T) {
	hostBus := bus.New(nil, "host")
	hub, err := NewHub(DefaultConfig(), hostBus, log.Nop())
	require.NoError(t, err)
	h := &harness{hub: hub, url: serve(t, hub)}

	require.NoError(t, noteAction.Dispatch(hostBus, note{Text: "before"}, bus.Topics(bus.TopicWorld)))
	conn, welcome := h.dial(t, "")
	require.Equal(t, protocol.KindWelcome, welcome.Kind)
	require.Eventually(t, func() bool { return hostBus.PendingIncoming() == 1 }, 2*time.Second, 10*time.Millisecond)

	// one host tick: apply the join, then flush
	require.NoError(t, hostBus.ApplyIncoming())
	require.NoError(t, hub.Publish(testCtx(t), hostBus.TakeOutgoing()))

	seen := readUntil(t, conn, network.CreatePeerAction.Type())
	require.Len(t, seen, 2)
	assert.Equal(t, noteAction.Type(), seen[0].Type)
	assert.Equal(t, network.CreatePeerAction.Type(), seen[1].Type)
	assert.Equal(t, "host", seen[1].From)

	logged := hostBus.Log()
	require.Len(t, logged, 2)
	assert.Equal(t, seen[0].ID, logged[0].ID)
	assert.Equal(t, seen[1].ID, logged[1].ID)
}

func TestRejectsWrongToken(t *testing.T) {
	config := DefaultConfig()
	config.Token = "secret"
	h := newHarness(t, config)

	_, env := h.dial(t, "guess")
	assert.Equal(t, protocol.KindError, env.Kind)
	assert.Equal(t, protocol.ErrorCodeAuthenticationFailed, env.Code)
	assert.Empty(t, h.hub.Sessions())
	assert.Empty(t, h.inbox.ofType(network.CreatePeerAction.Type()))

	_, env = h.dial(t, "secret")
	assert.Equal(t, protocol.KindWelcome, env.Kind)
}

func TestRejectsMissingHello(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := testCtx(t)
	conn, err := websocket.NewDialer(protocol.DefaultConfig()).Dial(ctx, h.url)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send(ctx, protocol.Actions()))
	env, err := conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindError, env.Kind)
	assert.Equal(t, protocol.ErrorCodeProtocolViolation, env.Code)
}

func TestRelayToOthersWithoutEcho(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	a, idA := h.join(t)
	b, idB := h.join(t)

	send(t, a, noteAction, "hello")
	seen := readUntil(t, b, noteAction.Type())
	got := seen[len(seen)-1]
	assert.Equal(t, idA, got.From, "empty sender is filled with the session peer")

	// b answers; a must see the answer but never its own note
	send(t, b, noteAction, "reply")
	for _, action := range readUntil(t, a, noteAction.Type()) {
		if action.Type == noteAction.Type() {
			assert.Equal(t, idB, action.From)
		}
	}

	assert.Eventually(t, func() bool {
		return len(h.inbox.ofType(noteAction.Type())) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, h.hub.ActionCounts()[noteAction.Type()])
}

func TestDirectedActionSkipsHostAndOthers(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	a, _ := h.join(t)
	b, idB := h.join(t)
	c, _ := h.join(t)

	send(t, a, noteAction, "psst", bus.To(idB))
	send(t, a, noteAction, "everyone")

	seen := readUntil(t, b, noteAction.Type())
	first, err := noteAction.Decode(seen[len(seen)-1])
	require.NoError(t, err)
	assert.Equal(t, "psst", first.Text)

	for _, action := range readUntil(t, c, noteAction.Type()) {
		if action.Type == noteAction.Type() {
			p, err := noteAction.Decode(action)
			require.NoError(t, err)
			assert.Equal(t, "everyone", p.Text)
		}
	}

	require.Eventually(t, func() bool {
		return len(h.inbox.ofType(noteAction.Type())) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSpoofedSenderIsDropped(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	a, idA := h.join(t)
	b, _ := h.join(t)

	send(t, a, noteAction, "forged", bus.From("host"))
	send(t, a, noteAction, "honest", bus.From(idA))

	for _, action := range readUntil(t, b, noteAction.Type()) {
		if action.Type == noteAction.Type() {
			assert.Equal(t, idA, action.From)
		}
	}
	require.Eventually(t, func() bool {
		return len(h.inbox.ofType(noteAction.Type())) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, idA, h.inbox.ofType(noteAction.Type())[0].From)
}

func TestDisconnectDestroysPeer(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	a, idA := h.join(t)
	b, _ := h.join(t)

	require.NoError(t, a.Close())

	seen := readUntil(t, b, network.DestroyPeerAction.Type())
	left, err := network.DestroyPeerAction.Decode(seen[len(seen)-1])
	require.NoError(t, err)
	assert.Equal(t, idA, left.PeerID)

	require.Eventually(t, func() bool {
		return len(h.inbox.ofType(network.DestroyPeerAction.Type())) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, h.hub.Sessions(), 1)
}

func TestPublishRoutesHostActions(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	a, _ := h.join(t)
	b, idB := h.join(t)
	ctx := testCtx(t)

	direct, err := noteAction.New(note{Text: "for b"}, bus.From("host"), bus.To(idB))
	require.NoError(t, err)
	self, err := noteAction.New(note{Text: "for host"}, bus.From("host"), bus.To("host"))
	require.NoError(t, err)
	all, err := noteAction.New(note{Text: "for all"}, bus.From("host"), bus.To(bus.ToAll))
	require.NoError(t, err)
	require.NoError(t, h.hub.Publish(ctx, []bus.Action{direct, self, all}))

	var texts []string
	for _, action := range readUntil(t, a, noteAction.Type()) {
		if action.Type == noteAction.Type() {
			p, _ := noteAction.Decode(action)
			texts = append(texts, p.Text)
		}
	}
	assert.Equal(t, []string{"for all"}, texts)

	texts = nil
	env := readUntil(t, b, noteAction.Type())
	for _, action := range env {
		if action.Type == noteAction.Type() {
			p, _ := noteAction.Decode(action)
			texts = append(texts, p.Text)
		}
	}
	assert.Equal(t, []string{"for b", "for all"}, texts)
}

type fixedStatus node.Status

func (s fixedStatus) Status() node.Status { return node.Status(s) }

func TestStatusHandler(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, id := h.join(t)

	rec := httptest.NewRecorder()
	h.hub.StatusHandler(fixedStatus{Tick: 12, Host: "host", Digest: "00000000000000ff"}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report StatusReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.EqualValues(t, 12, report.Tick)
	assert.Equal(t, "00000000000000ff", report.Digest)
	require.Len(t, report.Sessions, 1)
	assert.Equal(t, id, report.Sessions[0].ID)

	rec = httptest.NewRecorder()
	h.hub.StatusHandler(fixedStatus{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewHubValidates(t *testing.T) {
	_, err := NewHub(Config{}, &inbox{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewHub(DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
