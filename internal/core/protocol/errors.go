package protocol

import (
	"errors"
	"time"
)

// Core protocol errors
var (
	// Connection errors

	ErrConnectionClosed  = errors.New("connection is closed")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrConnectionLost    = errors.New("connection lost")

	// Message errors

	ErrMessageTooLarge       = errors.New("message too large")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")
	ErrChecksumMismatch      = errors.New("checksum mismatch")

	// Transport errors

	ErrTransportNotSupported = errors.New("transport not supported")
	ErrTransportClosed       = errors.New("transport is closed")
	ErrListenFailed          = errors.New("listen failed")
	ErrDialFailed            = errors.New("dial failed")

	// Session errors

	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrProtocolViolation    = errors.New("protocol violation")
	ErrSpoofedSender        = errors.New("action sender does not match session")
)

// ErrorCode represents a numeric error code sent to peers in error envelopes
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	// Connection error codes (1000-1999)

	ErrorCodeConnectionClosed     ErrorCode = 1001
	ErrorCodeConnectionTimeout    ErrorCode = 1002
	ErrorCodeConnectionLost       ErrorCode = 1004
	ErrorCodeProtocolViolation    ErrorCode = 1007
	ErrorCodeAuthenticationFailed ErrorCode = 1008
	ErrorCodeSpoofedSender        ErrorCode = 1009

	// Message error codes (3000-3999)

	ErrorCodeMessageTooLarge       ErrorCode = 3001
	ErrorCodeInvalidMessage        ErrorCode = 3003
	ErrorCodeSerializationFailed   ErrorCode = 3005
	ErrorCodeDeserializationFailed ErrorCode = 3006
	ErrorCodeChecksumMismatch      ErrorCode = 3007

	// Transport error codes (7000-7999)

	ErrorCodeTransportNotSupported ErrorCode = 7001
	ErrorCodeTransportClosed       ErrorCode = 7002
	ErrorCodeListenFailed          ErrorCode = 7006
	ErrorCodeDialFailed            ErrorCode = 7007

	ErrorCodeUnknownError ErrorCode = 9999
)

// Error represents a protocol-specific error with additional context
type Error struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Timestamp int64
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewProtocolError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().Unix(),
	}
}

// IsTemporary checks if the error is temporary and the operation can be retried
func (e *Error) IsTemporary() bool {
	switch e.Code {
	case ErrorCodeConnectionTimeout, ErrorCodeConnectionLost:
		return true
	default:
		return false
	}
}

// IsFatal checks if the error is fatal and the connection should be closed
func (e *Error) IsFatal() bool {
	switch e.Code {
	case ErrorCodeConnectionClosed,
		ErrorCodeProtocolViolation,
		ErrorCodeAuthenticationFailed,
		ErrorCodeSpoofedSender,
		ErrorCodeChecksumMismatch:
		return true
	default:
		return false
	}
}

var errorCodeMap = map[error]ErrorCode{
	ErrConnectionClosed:  ErrorCodeConnectionClosed,
	ErrConnectionTimeout: ErrorCodeConnectionTimeout,
	ErrConnectionLost:    ErrorCodeConnectionLost,

	ErrMessageTooLarge:       ErrorCodeMessageTooLarge,
	ErrInvalidMessage:        ErrorCodeInvalidMessage,
	ErrSerializationFailed:   ErrorCodeSerializationFailed,
	ErrDeserializationFailed: ErrorCodeDeserializationFailed,
	ErrChecksumMismatch:      ErrorCodeChecksumMismatch,

	ErrTransportNotSupported: ErrorCodeTransportNotSupported,
	ErrTransportClosed:       ErrorCodeTransportClosed,
	ErrListenFailed:          ErrorCodeListenFailed,
	ErrDialFailed:            ErrorCodeDialFailed,

	ErrAuthenticationFailed: ErrorCodeAuthenticationFailed,
	ErrProtocolViolation:    ErrorCodeProtocolViolation,
	ErrSpoofedSender:        ErrorCodeSpoofedSender,
}

// GetErrorCode returns the error code for err, looking through wrapping.
func GetErrorCode(err error) ErrorCode {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrorCodeUnknownError
}

// WrapError wraps a standard error into a protocol Error
func WrapError(err error, message string) *Error {
	return NewProtocolError(GetErrorCode(err), message, err)
}
