package spatial

import "github.com/zeusync/netecs/internal/core/ecs"

type Transform struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation"`
	Scale    Vec3 `json:"scale" yaml:"scale"`
}

// NewTransform places an unrotated, unit-scaled transform at pos.
func NewTransform(pos Vec3) Transform {
	return Transform{Position: pos, Rotation: Identity, Scale: V(1, 1, 1)}
}

type Velocity struct {
	Linear Vec3 `json:"linear" yaml:"linear"`
}

var (
	TransformComponent = ecs.NewComponent[Transform]("transform")
	VelocityComponent  = ecs.NewComponent[Velocity]("velocity")
)

// Integrate moves every entity with a velocity by v*dt.
func Integrate(w *ecs.World, q *ecs.Query, dt float64) {
	for _, e := range q.Current() {
		tr, ok := TransformComponent.Get(w, e)
		if !ok {
			continue
		}
		vel, ok := VelocityComponent.Get(w, e)
		if !ok {
			continue
		}
		tr.Position = tr.Position.Add(vel.Linear.Scale(dt))
	}
}
