package basketball

import "github.com/zeusync/netecs/internal/core/spatial"

const (
	BallPlayerBounceDistance = 0.35
	BallFlyArcHeight         = 3.0
	// BallFlyDuration is the flight time of a thrown ball in seconds.
	BallFlyDuration = 2.0

	NpcRoamingInterval = 5.0
	NpcWalkSpeed       = 1.0
	NpcSpawnRadius     = 3.0

	DefaultAvatarHeight = 1.8
	Gravity             = -9.81

	PrefabBall   = "basketball.ball"
	PrefabNpc    = "basketball.npc"
	PrefabAvatar = "avatar"
)

var (
	BallFallImpulse = spatial.V(0, -5, 0)
	Forward         = spatial.Forward
)
