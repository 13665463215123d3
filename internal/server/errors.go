package server

import "errors"

// Hub errors
var (
	ErrServerClosed  = errors.New("server is closed")
	ErrHandshake     = errors.New("expected hello envelope")
	ErrUnauthorized  = errors.New("invalid session token")
	ErrRateLimited   = errors.New("action rate limit exceeded")
	ErrUnknownPeer   = errors.New("peer not connected")
	ErrInvalidConfig = errors.New("invalid server configuration")
)
