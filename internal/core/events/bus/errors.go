package bus

import "errors"

var (
	ErrInvalidAction  = errors.New("action has no type")
	ErrInvalidPayload = errors.New("invalid action payload")
	ErrTypeMismatch   = errors.New("action type mismatch")
)
