package basketball

import (
	"math"

	"github.com/zeusync/netecs/internal/core/spatial"
)

// ThrowTrajectory returns the ball position at progress along the scripted
// arc from from to to. Progress is clamped to [0,1]; the arc adds
// arc*sin(progress*pi) to the height of the straight line.
func ThrowTrajectory(from, to spatial.Vec3, progress, arc float64) spatial.Vec3 {
	p := min(max(progress, 0), 1)
	pos := from.Lerp(to, p)
	pos.Y += arc * math.Sin(p*math.Pi)
	return pos
}

// BallThrowPosition places a ball in front of a player, at 80% of its
// height, following the player's rotation.
func BallThrowPosition(player spatial.Transform, height float64) spatial.Vec3 {
	offset := spatial.V(0, height*0.8, BallPlayerBounceDistance)
	return player.Rotation.Rotate(offset).Add(player.Position)
}

// RandomDirection returns a horizontal unit vector from two uniform samples
// in [-1,1]. A degenerate sample falls back to Forward.
func RandomDirection(x, z float64) spatial.Vec3 {
	dir := spatial.V(x, 0, z).Normalize()
	if dir == spatial.Zero {
		return Forward
	}
	return dir
}
