package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/config"
)

func TestInitializeHost(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "silent"
	cfg.Network.HostID = "court-host"

	host, err := InitializeHost(cfg)
	require.NoError(t, err)
	assert.True(t, host.Engine.IsHost())
	assert.Equal(t, "court-host", host.Engine.HostID())
	assert.Contains(t, host.Scenes.Keys(), "ball-shot")
	assert.Empty(t, host.Hub.Sessions())
	assert.NotNil(t, host.Game)
}
