package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/netecs/internal/config"
	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/scene"
	"github.com/zeusync/netecs/internal/core/spatial"
	"github.com/zeusync/netecs/internal/game/basketball"
)

func TestLoadExampleScene(t *testing.T) {
	cfg := config.Default()
	cfg.Game.Scene = filepath.Join("..", "..", "examples", "court.yaml")

	eng := engine.New(engine.Options{PeerID: "host", HostID: "host"}, nil)
	game, err := basketball.Install(eng)
	require.NoError(t, err)
	r := scene.NewRegistry(nil)
	require.NoError(t, scene.RegisterCore(r, eng.Network))
	require.NoError(t, basketball.RegisterSceneComponents(r))

	require.NoError(t, loadScene(cfg, r, eng, log.Nop()))

	hoop, ok := game.Hoop()
	require.True(t, ok)
	tr, ok := spatial.TransformComponent.Get(eng.World, hoop)
	require.True(t, ok)
	assert.Equal(t, spatial.V(0, 3, 8), tr.Position)
}

func TestLoadSceneMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Game.Scene = filepath.Join(t.TempDir(), "missing.yaml")
	eng := engine.New(engine.Options{}, nil)
	assert.Error(t, loadScene(cfg, scene.NewRegistry(nil), eng, log.Nop()))

	cfg.Game.Scene = ""
	assert.NoError(t, loadScene(cfg, scene.NewRegistry(nil), eng, log.Nop()))
}
