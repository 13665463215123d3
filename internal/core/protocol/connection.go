package protocol

import (
	"context"
	"net"
)

// Connection carries envelopes between a peer and the host. Send is safe
// for concurrent use; Receive must be called from a single goroutine.
type Connection interface {
	// Identity

	ID() string
	RemoteAddr() net.Addr
	Transport() TransportType

	// Data transfer

	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (Envelope, error)

	// State

	Metrics() Metrics
	Close() error
}

// Listener accepts peer connections on the host.
type Listener interface {
	Accept(ctx context.Context) (Connection, error)
	Addr() net.Addr
	Close() error
}

// Dialer opens a connection to the host.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Connection, error)
}
