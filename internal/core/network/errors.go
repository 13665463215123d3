package network

import "errors"

var (
	ErrDuplicateNetworkObject = errors.New("network object already registered")
	ErrUnknownNetworkObject   = errors.New("unknown network object")
	ErrEntityNotAlive         = errors.New("entity is not alive")
	ErrEntityAlreadyBound     = errors.New("entity already bound to another network object")
	ErrNotAuthoritative       = errors.New("write rejected: sender has no authority")
	ErrNotHost                = errors.New("action must come from the host")
)
