package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
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

func serve(t *testing.T, config protocol.Config) (*Listener, string) {
	t.Helper()
	l := NewListener(config, log.Nop())
	srv := httptest.NewServer(l)
	t.Cleanup(func() {
		_ = l.Close()
		srv.Close()
	})
	return l, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestExchangeEnvelopes(t *testing.T) {
	l, url := serve(t, protocol.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewDialer(protocol.DefaultConfig()).Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	server, err := l.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()
	assert.Equal(t, protocol.TransportWebSocket, server.Transport())

	require.NoError(t, client.Send(ctx, protocol.Envelope{Kind: protocol.KindHello, Name: "ada", Token: "secret"}))
	hello, err := server.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", hello.Name)
	assert.Equal(t, "secret", hello.Token)

	a, err := pingAction.New(ping{N: 1}, bus.From("host"))
	require.NoError(t, err)
	require.NoError(t, server.Send(ctx, protocol.Actions(a)))

	env, err := client.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, env.Actions, 1)
	p, err := pingAction.Decode(env.Actions[0])
	require.NoError(t, err)
	assert.Equal(t, 1, p.N)

	assert.EqualValues(t, 1, server.Metrics().MessagesSent)
	assert.EqualValues(t, 1, server.Metrics().MessagesReceived)
}

func TestReceiveHonorsContext(t *testing.T) {
	l, url := serve(t, protocol.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewDialer(protocol.DefaultConfig()).Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()
	server, err := l.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()

	short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
	defer stop()
	_, err = server.Receive(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedPeerEndsReceive(t *testing.T) {
	l, url := serve(t, protocol.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewDialer(protocol.DefaultConfig()).Dial(ctx, url)
	require.NoError(t, err)
	server, err := l.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()

	require.NoError(t, client.Close())
	_, err = server.Receive(ctx)
	assert.ErrorIs(t, err, protocol.ErrConnectionClosed)

	assert.ErrorIs(t, client.Send(ctx, protocol.Envelope{Kind: protocol.KindHello}), protocol.ErrConnectionClosed)
}

func TestOversizedMessageIsRejected(t *testing.T) {
	config := protocol.DefaultConfig()
	config.MaxMessageSize = 64
	_, url := serve(t, config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewDialer(config).Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	err = client.Send(ctx, protocol.Envelope{Kind: protocol.KindHello, Name: strings.Repeat("x", 100)})
	assert.ErrorIs(t, err, protocol.ErrMessageTooLarge)
}

func TestAcceptAfterClose(t *testing.T) {
	l, _ := serve(t, protocol.DefaultConfig())
	require.NoError(t, l.Close())
	_, err := l.Accept(context.Background())
	assert.ErrorIs(t, err, protocol.ErrTransportClosed)
	assert.Nil(t, l.Addr())
}
