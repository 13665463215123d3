package network

import (
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/spatial"
)

type SpawnObject struct {
	NetworkID  NetworkID          `json:"networkId"`
	Prefab     string             `json:"prefab"`
	Parameters map[string]any     `json:"parameters,omitempty"`
	Transform  *spatial.Transform `json:"transform,omitempty"`
	// OwnerID and Authority are honored only when the host sends them,
	// which it does when replaying objects to a late joiner.
	OwnerID   string `json:"ownerId,omitempty"`
	Authority string `json:"authority,omitempty"`
}

type DestroyObject struct {
	OwnerID   string    `json:"ownerId,omitempty"`
	NetworkID NetworkID `json:"networkId"`
}

type CreatePeer struct {
	PeerID string `json:"peerId"`
	Name   string `json:"name,omitempty"`
}

type DestroyPeer struct {
	PeerID string `json:"peerId"`
}

type RequestAuthority struct {
	OwnerID   string    `json:"ownerId"`
	NetworkID NetworkID `json:"networkId"`
}

type TransferAuthority struct {
	OwnerID      string    `json:"ownerId"`
	NetworkID    NetworkID `json:"networkId"`
	NewAuthority string    `json:"newAuthority"`
}

type SyncTransform struct {
	OwnerID   string            `json:"ownerId"`
	NetworkID NetworkID         `json:"networkId"`
	Transform spatial.Transform `json:"transform"`
}

var (
	SpawnObjectAction       = bus.Define[SpawnObject]("network.spawnObject")
	DestroyObjectAction     = bus.Define[DestroyObject]("network.destroyObject")
	CreatePeerAction        = bus.Define[CreatePeer]("network.createPeer")
	DestroyPeerAction       = bus.Define[DestroyPeer]("network.destroyPeer")
	RequestAuthorityAction  = bus.Define[RequestAuthority]("network.requestAuthority")
	TransferAuthorityAction = bus.Define[TransferAuthority]("network.transferAuthority")
	SyncTransformAction     = bus.Define[SyncTransform]("network.syncTransform")
)
