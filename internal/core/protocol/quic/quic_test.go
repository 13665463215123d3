package quic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

type ping struct {
	N int `json:"n"`
}

var pingAction = bus.Define[ping]("test.ping")

func TestLoopbackExchange(t *testing.T) {
	serverTLS, err := GenerateSelfSignedTLS()
	require.NoError(t, err)

	l, err := Listen("127.0.0.1:0", serverTLS, protocol.DefaultConfig(), log.Nop())
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := NewDialer(ClientTLS(true), protocol.DefaultConfig()).Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server, err := l.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()
	assert.Equal(t, protocol.TransportQUIC, server.Transport())

	// the stream becomes visible to the host with the first frame
	require.NoError(t, client.Send(ctx, protocol.Envelope{Kind: protocol.KindHello, Name: "ada"}))
	hello, err := server.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindHello, hello.Kind)
	assert.Equal(t, "ada", hello.Name)

	a, err := pingAction.New(ping{N: 2}, bus.From("host"))
	require.NoError(t, err)
	require.NoError(t, server.Send(ctx, protocol.Actions(a)))
	require.NoError(t, server.Send(ctx, protocol.Envelope{Kind: protocol.KindWelcome, Peer: "p", Host: "host"}))

	env, err := client.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, env.Actions, 1)
	p, err := pingAction.Decode(env.Actions[0])
	require.NoError(t, err)
	assert.Equal(t, 2, p.N)

	env, err = client.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p", env.Peer)

	assert.EqualValues(t, 2, server.Metrics().MessagesSent)
}

func TestAcceptAfterClose(t *testing.T) {
	serverTLS, err := GenerateSelfSignedTLS()
	require.NoError(t, err)
	l, err := Listen("127.0.0.1:0", serverTLS, protocol.DefaultConfig(), log.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Accept(context.Background())
	assert.ErrorIs(t, err, protocol.ErrTransportClosed)
}

func TestDialWithoutHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewDialer(ClientTLS(true), protocol.DefaultConfig()).Dial(ctx, "127.0.0.1:1")
	assert.ErrorIs(t, err, protocol.ErrDialFailed)
}
