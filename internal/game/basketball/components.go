package basketball

import (
	"github.com/zeusync/netecs/internal/core/ecs"
	"github.com/zeusync/netecs/internal/core/spatial"
)

type AvatarDetails struct {
	AvatarURL    string `json:"avatarURL" yaml:"avatarURL"`
	ThumbnailURL string `json:"thumbnailURL" yaml:"thumbnailURL"`
}

// Avatar is the player-controlled body of a peer.
type Avatar struct {
	Height  float64       `json:"height" yaml:"height"`
	Details AvatarDetails `json:"details" yaml:"details"`
}

// BallShot describes a ball flying on the scripted arc towards a hoop.
type BallShot struct {
	From     spatial.Vec3 `json:"from" yaml:"from"`
	To       spatial.Vec3 `json:"to" yaml:"to"`
	Progress float64      `json:"progress" yaml:"progress"`
}

// TimedRoaming makes an NPC pick a new walking direction every Interval seconds.
type TimedRoaming struct {
	Timer    float64 `json:"timer" yaml:"timer"`
	Interval float64 `json:"interval" yaml:"interval"`
}

type Npc struct {
	Name          string        `json:"name" yaml:"name"`
	AvatarDetails AvatarDetails `json:"avatarDetails" yaml:"avatarDetails"`
}

var (
	AvatarComponent       = ecs.NewComponent[Avatar]("basketball.avatar")
	BallTag               = ecs.NewComponent[ecs.Tag]("basketball.ball")
	BallShotComponent     = ecs.NewComponent[BallShot]("ball-shot")
	TimedRoamingComponent = ecs.NewComponent[TimedRoaming]("timed-roaming")
	NpcComponent          = ecs.NewComponent[Npc]("basketball.npc")
)
