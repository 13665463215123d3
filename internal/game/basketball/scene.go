package basketball

import (
	"errors"

	"github.com/zeusync/netecs/internal/core/scene"
)

// RegisterSceneComponents adds the basketball components that may appear in
// scene files.
func RegisterSceneComponents(r *scene.Registry) error {
	return errors.Join(
		r.Register(BallShotComponent.Name(), scene.Struct(BallShotComponent)),
		r.Register(TimedRoamingComponent.Name(), scene.Struct(TimedRoamingComponent)),
	)
}
