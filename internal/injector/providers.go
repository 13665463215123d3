package injector

import (
	"context"
	"errors"

	"github.com/google/wire"

	"github.com/zeusync/netecs/internal/app"
	"github.com/zeusync/netecs/internal/config"
	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol/quic"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/game/basketball"
	"github.com/zeusync/netecs/internal/node"
	"github.com/zeusync/netecs/internal/server"
	"github.com/zeusync/netecs/sdk/go/client"
)

// Session is the identity a peer is assigned by the host.
type Session struct {
	PeerID string
	HostID string
}

var CommonSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideGame,
	ProvideScenes,
)

var HostSet = wire.NewSet(
	CommonSet,
	ProvideHostEngine,
	ProvideHub,
	ProvideHostNode,
	wire.Struct(new(app.Host), "*"),
)

var PeerSet = wire.NewSet(
	CommonSet,
	ProvideClient,
	ProvideSession,
	ProvidePeerEngine,
	ProvidePeerNode,
	wire.Struct(new(app.Peer), "*"),
)

func ProvideLogger(c config.Config) *log.Logger {
	return log.NewWithOptions(c.LoggerOptions())
}

func ProvideHostEngine(c config.Config, logger log.Log) *engine.Engine {
	return engine.New(engine.Options{
		PeerID: c.Network.HostID,
		HostID: c.Network.HostID,
		Seed:   c.Engine.Seed,
	}, logger)
}

func ProvideGame(eng *engine.Engine) (*basketball.Game, error) {
	return basketball.Install(eng)
}

func ProvideScenes(eng *engine.Engine, logger log.Log) (*scene.Registry, error) {
	r := scene.NewRegistry(logger)
	if err := errors.Join(
		scene.RegisterCore(r, eng.Network),
		basketball.RegisterSceneComponents(r),
	); err != nil {
		return nil, err
	}
	return r, nil
}

func ProvideHub(c config.Config, eng *engine.Engine, logger log.Log) (*server.Hub, error) {
	hc := server.DefaultConfig()
	hc.HostID = c.Network.HostID
	hc.Token = c.Network.Token
	return server.NewHub(hc, eng.Bus, logger)
}

func ProvideHostNode(c config.Config, eng *engine.Engine, hub *server.Hub, logger log.Log) *node.Node {
	return node.New(eng, hub, c.TickInterval(), logger)
}

// ProvideClient builds the peer client. The cleanup closes it.
func ProvideClient(c config.Config, logger log.Log) (*client.Client, func(), error) {
	cc := client.DefaultConfig()
	cc.URL = c.Network.URL
	cc.Transport = c.Network.Transport
	cc.Token = c.Network.Token
	cc.Name = c.Game.Name
	cc.ConnectTimeout = c.Network.ConnectTimeout
	cc.Protocol = c.Network.Protocol
	cc.TLS = quic.ClientTLS(c.Network.Insecure)

	cl, err := client.New(cc, logger)
	if err != nil {
		return nil, nil, err
	}
	return cl, func() { _ = cl.Close() }, nil
}

// ProvideSession connects to the host; the engine of a peer cannot be built
// before the host has assigned its id.
func ProvideSession(ctx context.Context, cl *client.Client) (Session, error) {
	if err := cl.Connect(ctx); err != nil {
		return Session{}, err
	}
	return Session{PeerID: cl.PeerID(), HostID: cl.HostID()}, nil
}

func ProvidePeerEngine(c config.Config, s Session, logger log.Log) *engine.Engine {
	return engine.New(engine.Options{
		PeerID: s.PeerID,
		HostID: s.HostID,
		Seed:   c.Engine.Seed,
	}, logger)
}

func ProvidePeerNode(c config.Config, eng *engine.Engine, cl *client.Client, logger log.Log) *node.Node {
	return node.New(eng, cl, c.TickInterval(), logger)
}
