// Package app assembles the host and peer processes from their parts.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/netecs/internal/config"
	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol/quic"
	"github.com/zeusync/netecs/internal/core/protocol/websocket"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/core/spatial"
	"github.com/zeusync/netecs/internal/game/basketball"
	"github.com/zeusync/netecs/internal/node"
	"github.com/zeusync/netecs/internal/server"
	"github.com/zeusync/netecs/sdk/go/client"
)

var ErrHostGone = errors.New("host closed the session")

// Host is the authoritative process of a session.
type Host struct {
	Config config.Config
	Logger log.Log
	Engine *engine.Engine
	Game   *basketball.Game
	Scenes *scene.Registry
	Hub    *server.Hub
	Node   *node.Node
}

// Run loads the scene, serves peers and ticks the engine until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	if err := loadScene(h.Config, h.Scenes, h.Engine, h.Logger); err != nil {
		return err
	}
	if err := h.Engine.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := h.Engine.Shutdown(context.Background()); err != nil {
			h.Logger.Warn("engine shutdown", log.Error(err))
		}
	}()

	netCfg := h.Config.Network
	ws := websocket.NewListener(netCfg.Protocol, h.Logger)
	mux := http.NewServeMux()
	mux.Handle(netCfg.WebSocketPath, ws)
	mux.Handle(netCfg.StatusPath, h.Hub.StatusHandler(h.Node))
	httpServer := server.NewHTTPServer(netCfg.HTTPAddr, mux, h.Logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(ctx) })
	g.Go(func() error { return h.Hub.Serve(ctx, ws) })

	if netCfg.QUICAddr != "" {
		tlsConfig, err := hostTLS(netCfg)
		if err != nil {
			return err
		}
		ql, err := quic.Listen(netCfg.QUICAddr, tlsConfig, netCfg.Protocol, h.Logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return h.Hub.Serve(ctx, ql) })
		g.Go(func() error {
			<-ctx.Done()
			return ql.Close()
		})
	}

	g.Go(func() error { return h.Node.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		return errors.Join(ws.Close(), h.Hub.Close())
	})

	h.Logger.Info("host started",
		log.String("host", h.Engine.HostID()),
		log.String("http", netCfg.HTTPAddr),
		log.String("quic", netCfg.QUICAddr),
	)
	return g.Wait()
}

func hostTLS(c config.NetworkConfig) (*tls.Config, error) {
	if c.CertFile != "" {
		return quic.LoadTLS(c.CertFile, c.KeyFile)
	}
	return quic.GenerateSelfSignedTLS()
}

// Peer is a process that joined a host session.
type Peer struct {
	Config config.Config
	Logger log.Log
	Client *client.Client
	Engine *engine.Engine
	Game   *basketball.Game
	Scenes *scene.Registry
	Node   *node.Node
}

// Run spawns the local avatar and plays until ctx is done or the host goes
// away.
func (p *Peer) Run(ctx context.Context) error {
	if err := loadScene(p.Config, p.Scenes, p.Engine, p.Logger); err != nil {
		return err
	}
	game := p.Config.Game
	if game.Autoplay > 0 {
		look := basketball.AvatarDetails{AvatarURL: game.Avatar.URL, ThumbnailURL: game.Avatar.ThumbnailURL}
		if err := p.Engine.AddSystem(basketball.NewAutoplay(p.Engine, game.Autoplay, look)); err != nil {
			return err
		}
	}
	if err := p.Engine.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.Engine.Shutdown(context.Background()); err != nil {
			p.Logger.Warn("engine shutdown", log.Error(err))
		}
	}()

	look := basketball.AvatarDetails{AvatarURL: game.Avatar.URL, ThumbnailURL: game.Avatar.ThumbnailURL}
	if err := basketball.SpawnAvatar(p.Engine.Bus, p.Engine.Network.CreateNetworkID(), look, game.Avatar.Height, spawnPoint(p.Engine)); err != nil {
		return fmt.Errorf("spawn avatar: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.Client.Run(ctx, p.Engine.Bus)
		if err == nil && ctx.Err() == nil {
			return ErrHostGone
		}
		return err
	})
	g.Go(func() error { return p.Node.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		return p.Client.Close()
	})
	return g.Wait()
}

func spawnPoint(eng *engine.Engine) spatial.Vec3 {
	return basketball.RandomDirection(eng.Rand().Float64()*2-1, eng.Rand().Float64()*2-1).Scale(basketball.NpcSpawnRadius)
}

func loadScene(c config.Config, r *scene.Registry, eng *engine.Engine, logger log.Log) error {
	if c.Game.Scene == "" {
		return nil
	}
	f, err := scene.ReadFile(c.Game.Scene)
	if err != nil {
		return fmt.Errorf("read scene: %w", err)
	}
	entities, err := r.Load(eng.World, f)
	if err != nil {
		return fmt.Errorf("load scene %s: %w", c.Game.Scene, err)
	}
	logger.Info("scene loaded", log.String("path", c.Game.Scene), log.Int("entities", len(entities)))
	return nil
}
