package scene

import (
	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/spatial"
)

type Name struct {
	Value string `json:"name" yaml:"name"`
}

// TriggerVolume is a box around the entity's transform. Target names the
// entity or action the volume fires for.
type TriggerVolume struct {
	Target string       `json:"target,omitempty" yaml:"target,omitempty"`
	Size   spatial.Vec3 `json:"size" yaml:"size"`
}

// Contains reports whether p lies inside the volume placed at center.
func (v TriggerVolume) Contains(center, p spatial.Vec3) bool {
	d := p.Sub(center)
	return abs(d.X) <= v.Size.X/2 && abs(d.Y) <= v.Size.Y/2 && abs(d.Z) <= v.Size.Z/2
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// UUID identifies an entity inside its scene file.
type UUID struct {
	Value string
}

var (
	NameComponent          = ecs.NewComponent[Name]("name")
	TriggerVolumeComponent = ecs.NewComponent[TriggerVolume]("trigger-volume")
	UUIDComponent          = ecs.NewComponent[UUID]("scene.uuid")
)
