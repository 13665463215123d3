package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, time.Second/60, c.TickInterval())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	c, err := Decode(strings.NewReader(`
log:
  level: debug
  development: true
engine:
  tick_rate: 20
  seed: 7
network:
  token: secret
  transport: quic
  url: 127.0.0.1:7401
  insecure: true
  protocol:
    write_timeout: 2s
    max_message_size: 4096
game:
  scene: court.yaml
  autoplay: 1500ms
  avatar:
    url: ada.glb
`))
	require.NoError(t, err)

	assert.Equal(t, 20, c.Engine.TickRate)
	assert.EqualValues(t, 7, c.Engine.Seed)
	assert.Equal(t, "host", c.Network.HostID)
	assert.Equal(t, protocol.TransportQUIC, c.Network.Transport)
	assert.Equal(t, 2*time.Second, c.Network.Protocol.WriteTimeout)
	assert.EqualValues(t, 4096, c.Network.Protocol.MaxMessageSize)
	assert.Equal(t, 1500*time.Millisecond, c.Game.Autoplay)
	assert.Equal(t, "ada.glb", c.Game.Avatar.URL)
	// untouched nested defaults survive
	assert.Equal(t, 1.8, c.Game.Avatar.Height)
	assert.Equal(t, "/status", c.Network.StatusPath)

	opts := c.LoggerOptions()
	assert.Equal(t, log.LevelDebug, opts.Level)
	assert.True(t, opts.Development)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	_, err := Decode(strings.NewReader("engine:\n  tick_rate: 0\nnetwork:\n  transport: carrier-pigeon\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "tick_rate")
	assert.Contains(t, err.Error(), "carrier-pigeon")

	_, err = Decode(strings.NewReader("engine:\n  tick_rte: 30\n"))
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}
