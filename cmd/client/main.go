package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/netecs/internal/app"
	"github.com/zeusync/netecs/internal/config"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration")
	name := flag.String("name", "", "display name, overrides game.name")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
	}
	if *name != "" {
		cfg.Game.Name = *name
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	peer, cleanup, err := injector.InitializePeer(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error joining session:", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := peer.Run(ctx); err != nil {
		if errors.Is(err, app.ErrHostGone) {
			peer.Logger.Info("session ended by host")
			return
		}
		peer.Logger.Error("peer stopped", log.Error(err))
		cleanup()
		os.Exit(1)
	}
}
