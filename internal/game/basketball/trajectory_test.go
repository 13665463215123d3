package basketball

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeusync/netecs/internal/core/spatial"
)

func TestThrowTrajectory(t *testing.T) {
	from := spatial.V(0, 1, 0)
	to := spatial.V(0, 3, 8)

	assert.Equal(t, from, ThrowTrajectory(from, to, 0, BallFlyArcHeight))
	assert.True(t, to.ApproxEqual(ThrowTrajectory(from, to, 1, BallFlyArcHeight), 1e-9))

	mid := ThrowTrajectory(from, to, 0.5, BallFlyArcHeight)
	assert.True(t, spatial.V(0, 2+BallFlyArcHeight, 4).ApproxEqual(mid, 1e-9), "got %v", mid)

	// out of range progress is clamped
	assert.Equal(t, from, ThrowTrajectory(from, to, -1, BallFlyArcHeight))
	assert.True(t, to.ApproxEqual(ThrowTrajectory(from, to, 3, BallFlyArcHeight), 1e-9))
}

func TestBallThrowPosition(t *testing.T) {
	player := spatial.NewTransform(spatial.V(1, 0, 1))
	got := BallThrowPosition(player, 2)
	assert.True(t, spatial.V(1, 1.6, 1+BallPlayerBounceDistance).ApproxEqual(got, 1e-9), "got %v", got)

	// facing backwards puts the ball behind the origin
	player.Rotation = spatial.FromUnitVectors(spatial.Forward, spatial.Forward.Scale(-1))
	got = BallThrowPosition(player, 2)
	assert.InDelta(t, 1-BallPlayerBounceDistance, got.Z, 1e-9)
}

func TestRandomDirection(t *testing.T) {
	dir := RandomDirection(3, 4)
	assert.InDelta(t, 1, dir.Length(), 1e-9)
	assert.Zero(t, dir.Y)
	assert.Equal(t, Forward, RandomDirection(0, 0))
	assert.False(t, math.IsNaN(dir.X))
}
