//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/netecs/internal/app"
	"github.com/zeusync/netecs/internal/config"
)

func InitializeHost(c config.Config) (*app.Host, error) {
	wire.Build(HostSet)
	return nil, nil
}

func InitializePeer(ctx context.Context, c config.Config) (*app.Peer, func(), error) {
	wire.Build(PeerSet)
	return nil, nil, nil
}
