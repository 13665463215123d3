package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/netecs/internal/config"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	host, err := injector.InitializeHost(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting host:", err)
		os.Exit(1)
	}
	if err := host.Run(ctx); err != nil {
		host.Logger.Error("host stopped", log.Error(err))
		os.Exit(1)
	}
}
