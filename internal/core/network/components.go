package network

import (
	"fmt"

	"github.com/zeusync/netecs/internal/core/ecs"
)

// NetworkID identifies a network object within the scope of its owner.
type NetworkID uint32

// NetworkObject is attached to every entity mirrored across peers.
// Authority names the peer whose transform writes are canonical; it starts
// as the owner and moves with transferAuthority.
type NetworkObject struct {
	OwnerID    string         `json:"ownerId" yaml:"ownerId"`
	NetworkID  NetworkID      `json:"networkId" yaml:"networkId"`
	Prefab     string         `json:"prefab" yaml:"prefab"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Authority  string         `json:"authority,omitempty" yaml:"authority,omitempty"`
}

func (o NetworkObject) String() string {
	return fmt.Sprintf("%s/%d", o.OwnerID, o.NetworkID)
}

var (
	NetworkObjectComponent = ecs.NewComponent[NetworkObject]("network-object")
	// AuthorityTag marks entities the local process is the writer for.
	AuthorityTag = ecs.NewComponent[ecs.Tag]("network-authority")
)

type objectKey struct {
	owner string
	id    NetworkID
}
