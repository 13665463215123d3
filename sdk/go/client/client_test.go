package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/protocol"
	"github.com/zeusync/netecs/internal/core/protocol/websocket"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/core/spatial"
	"github.com/zeusync/netecs/internal/game/basketball"
	"github.com/zeusync/netecs/internal/node"
	"github.com/zeusync/netecs/internal/server"
)

const dt = 1.0 / 30

type host struct {
	eng  *engine.Engine
	game *basketball.Game
	node *node.Node
	url  string
}

func startHost(t *testing.T, token string) *host {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	eng := engine.New(engine.Options{PeerID: "host", HostID: "host", Seed: 7}, nil)
	game, err := basketball.Install(eng)
	require.NoError(t, err)
	hoop := eng.World.CreateEntity()
	spatial.TransformComponent.Add(eng.World, hoop, spatial.NewTransform(spatial.V(0, 3, 8)))
	scene.TriggerVolumeComponent.Add(eng.World, hoop, scene.TriggerVolume{Size: spatial.V(1, 0.5, 1)})
	require.NoError(t, eng.Init(ctx))

	config := server.DefaultConfig()
	config.Token = token
	hub, err := server.NewHub(config, eng.Bus, nil)
	require.NoError(t, err)

	ln := websocket.NewListener(protocol.DefaultConfig(), nil)
	srv := httptest.NewServer(ln)
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		_ = hub.Close()
		_ = ln.Close()
		srv.Close()
		<-done
		_ = eng.Shutdown(context.Background())
	})
	return &host{
		eng:  eng,
		game: game,
		node: node.New(eng, hub, time.Second/30, nil),
		url:  "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

type peer struct {
	client *Client
	eng    *engine.Engine
	game   *basketball.Game
	node   *node.Node
}

func joinPeer(t *testing.T, h *host, name string) *peer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	config := DefaultConfig()
	config.URL = h.url
	config.Name = name
	c, err := New(config, nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(ctx))

	eng := engine.New(engine.Options{PeerID: c.PeerID(), HostID: c.HostID(), Seed: 7}, nil)
	game, err := basketball.Install(eng)
	require.NoError(t, err)
	require.NoError(t, eng.Init(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, eng.Bus) }()
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
		<-done
		_ = eng.Shutdown(context.Background())
	})
	return &peer{client: c, eng: eng, game: game, node: node.New(eng, c, time.Second/30, nil)}
}

// until ticks every node until cond holds.
func until(t *testing.T, cond func() bool, nodes ...*node.Node) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "condition not reached")
		for _, n := range nodes {
			require.NoError(t, n.Tick(context.Background(), dt))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestConnectAssignsSession(t *testing.T) {
	h := startHost(t, "")
	var events []EventType
	config := DefaultConfig()
	config.URL = h.url
	c, err := New(config, nil)
	require.NoError(t, err)
	c.OnEvent(EventTypeConnected, func(e Event) { events = append(events, e.Type) })
	c.OnEvent(EventTypeDisconnected, func(e Event) { events = append(events, e.Type) })

	require.NoError(t, c.Connect(context.Background()))
	assert.NotEmpty(t, c.PeerID())
	assert.Equal(t, "host", c.HostID())
	assert.True(t, c.IsConnected())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
	assert.Equal(t, []EventType{EventTypeConnected, EventTypeDisconnected}, events)
}

func TestConnectRejected(t *testing.T) {
	h := startHost(t, "secret")
	config := DefaultConfig()
	config.URL = h.url
	config.Token = "wrong"
	c, err := New(config, nil)
	require.NoError(t, err)

	var reported error
	c.OnEvent(EventTypeError, func(e Event) { reported = e.Error })

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, protocol.ErrAuthenticationFailed)
	assert.ErrorIs(t, reported, ErrRejected)
	assert.False(t, c.IsConnected())
}

func TestRequiresConnection(t *testing.T) {
	c, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Publish(context.Background(), []bus.Action{{Type: "x"}}), ErrNotConnected)
	assert.ErrorIs(t, c.Run(context.Background(), bus.New(nil, "")), ErrNotConnected)
	assert.Zero(t, c.Metrics())

	_, err = New(Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(Config{URL: "x", Transport: "carrier-pigeon"}, nil)
	assert.ErrorIs(t, err, protocol.ErrTransportNotSupported)
}

func TestSessionConverges(t *testing.T) {
	h := startHost(t, "")
	a := joinPeer(t, h, "ada")
	b := joinPeer(t, h, "bob")
	nodes := []*node.Node{h.node, a.node, b.node}

	until(t, func() bool {
		return len(h.eng.Network.Peers()) == 3 &&
			len(a.eng.Network.Peers()) == 3 &&
			len(b.eng.Network.Peers()) == 3
	}, nodes...)

	look := basketball.AvatarDetails{AvatarURL: "ada.glb"}
	require.NoError(t, basketball.SpawnAvatar(a.eng.Bus, a.eng.Network.CreateNetworkID(), look, 1.8, spatial.Zero))
	until(t, func() bool {
		_, onHost := h.game.AvatarOf(a.client.PeerID())
		_, onB := b.game.AvatarOf(a.client.PeerID())
		return onHost && onB
	}, nodes...)

	require.NoError(t, basketball.RequestThrow(a.eng.Bus, a.client.HostID()))
	until(t, func() bool {
		return len(a.game.Balls()) > 0 && len(b.game.Balls()) > 0
	}, nodes...)

	// the thrown ball lands and comes to rest, after which every process
	// holds the same replicated state
	until(t, func() bool {
		d := h.eng.Network.Digest()
		return h.node.Status().Tick > 150 &&
			a.eng.Network.Digest() == d &&
			b.eng.Network.Digest() == d
	}, nodes...)
	assert.Equal(t, len(h.game.Balls()), len(b.game.Balls()))
	assert.NotZero(t, a.client.Metrics().MessagesReceived)
}
