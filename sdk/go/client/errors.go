package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrRejected         = errors.New("host rejected the session")
	ErrUnexpectedReply  = errors.New("unexpected handshake reply")
	ErrInvalidConfig    = errors.New("invalid client configuration")
)
