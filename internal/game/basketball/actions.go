package basketball

import (
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/spatial"
)

// Requests sent by peers to the host.

type ThrowRequest struct{}

type SpawnNpcRequest struct {
	AvatarDetails AvatarDetails `json:"avatarDetails"`
}

type SwitchAvatarRequest struct{}

// Announcements sent by the host.

type SpawnBallNetworkObject struct {
	NetworkID network.NetworkID `json:"networkId"`
	Position  spatial.Vec3      `json:"position"`
	// Falling marks a released ball that starts with the fall impulse.
	Falling bool `json:"falling,omitempty"`
}

type SpawnNpcNetworkObject struct {
	NetworkID     network.NetworkID `json:"networkId"`
	AvatarDetails AvatarDetails     `json:"avatarDetails"`
	Name          string            `json:"name"`
	Position      spatial.Vec3      `json:"position"`
}

type ChangeNpcAvatar struct {
	NetworkID     network.NetworkID `json:"networkId"`
	AvatarDetails AvatarDetails     `json:"avatarDetails"`
}

type SwitchAvatarEntity struct {
	AvatarDetail   AvatarDetails `json:"avatarDetail"`
	TargetPosition spatial.Vec3  `json:"targetPosition"`
}

// AvatarDetailsChanged is broadcast by a peer whose appearance changed.
type AvatarDetailsChanged struct {
	AvatarDetail AvatarDetails `json:"avatarDetail"`
}

var (
	ThrowAction        = bus.Define[ThrowRequest]("basketball.THROW")
	SpawnNpcAction     = bus.Define[SpawnNpcRequest]("basketball.SPAWN_NPC")
	SwitchAvatarAction = bus.Define[SwitchAvatarRequest]("basketball.SWITCH_AVATAR")

	SpawnBallNetworkObjectAction = bus.Define[SpawnBallNetworkObject]("basketball-s.spawnBallNetworkObject")
	SpawnNpcNetworkObjectAction  = bus.Define[SpawnNpcNetworkObject]("basketball-s.spawnNpcNetworkObject")
	ChangeNpcAvatarAction        = bus.Define[ChangeNpcAvatar]("basketball-s.changeNpcAvatar")
	SwitchAvatarEntityAction     = bus.Define[SwitchAvatarEntity]("basketball-s.switchAvatarEntity")

	AvatarDetailsAction = bus.Define[AvatarDetailsChanged]("basketball.avatarDetails")
)

func toHost(host string) []bus.Option {
	return []bus.Option{bus.To(host), bus.Topics(bus.TopicWorld)}
}

// RequestThrow asks the host to throw a ball from the local avatar.
func RequestThrow(b *bus.Bus, host string) error {
	return ThrowAction.Dispatch(b, ThrowRequest{}, toHost(host)...)
}

// RequestNpc asks the host to spawn a roaming NPC wearing details.
func RequestNpc(b *bus.Bus, host string, details AvatarDetails) error {
	return SpawnNpcAction.Dispatch(b, SpawnNpcRequest{AvatarDetails: details}, toHost(host)...)
}

// RequestSwitch asks the host to swap the local avatar with a random NPC.
func RequestSwitch(b *bus.Bus, host string) error {
	return SwitchAvatarAction.Dispatch(b, SwitchAvatarRequest{}, toHost(host)...)
}

// SpawnAvatar announces the local avatar to every peer.
func SpawnAvatar(b *bus.Bus, id network.NetworkID, details AvatarDetails, height float64, at spatial.Vec3) error {
	tr := spatial.NewTransform(at)
	return network.SpawnObjectAction.Dispatch(b, network.SpawnObject{
		NetworkID: id,
		Prefab:    PrefabAvatar,
		Parameters: map[string]any{
			"avatarURL":    details.AvatarURL,
			"thumbnailURL": details.ThumbnailURL,
			"height":       height,
		},
		Transform: &tr,
	}, bus.Topics(bus.TopicWorld))
}
