// Package protocol defines the envelopes exchanged between peers and the
// host and the transport abstractions carrying them.
package protocol

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/netecs/internal/core/events/bus"
)

// Kind tells the receiver how to read an envelope.
type Kind string

const (
	// KindHello is the first envelope of a peer: credentials and display name.
	KindHello Kind = "hello"
	// KindWelcome answers a hello with the assigned peer id and the host id.
	KindWelcome Kind = "welcome"
	// KindActions carries actions in dispatch order.
	KindActions Kind = "actions"
	// KindError reports a fatal session error before the host hangs up.
	KindError Kind = "error"
)

type Envelope struct {
	Kind    Kind
	Peer    string
	Host    string
	Token   string
	Name    string
	Actions []bus.Action
	Code    ErrorCode
	Error   string
}

type wireEnvelope struct {
	Kind    Kind            `json:"kind"`
	Peer    string          `json:"peer,omitempty"`
	Host    string          `json:"host,omitempty"`
	Token   string          `json:"token,omitempty"`
	Name    string          `json:"name,omitempty"`
	Actions json.RawMessage `json:"actions,omitempty"`
	Sum     uint64          `json:"sum,omitempty"`
	Code    ErrorCode       `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func Actions(actions ...bus.Action) Envelope {
	return Envelope{Kind: KindActions, Actions: actions}
}

// Marshal encodes env as JSON. The actions are checksummed with xxhash so a
// corrupted or truncated batch is rejected as a whole.
func Marshal(env Envelope) ([]byte, error) {
	w := wireEnvelope{
		Kind:  env.Kind,
		Peer:  env.Peer,
		Host:  env.Host,
		Token: env.Token,
		Name:  env.Name,
		Code:  env.Code,
		Error: env.Error,
	}
	if len(env.Actions) > 0 {
		raw, err := json.Marshal(env.Actions)
		if err != nil {
			return nil, NewProtocolError(ErrorCodeSerializationFailed, "encode actions", err)
		}
		w.Actions = raw
		w.Sum = xxhash.Sum64(raw)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, NewProtocolError(ErrorCodeSerializationFailed, "encode envelope", err)
	}
	return data, nil
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, NewProtocolError(ErrorCodeDeserializationFailed, "decode envelope", err)
	}
	if w.Kind == "" {
		return Envelope{}, NewProtocolError(ErrorCodeInvalidMessage, "decode envelope", ErrInvalidMessage)
	}
	env := Envelope{
		Kind:  w.Kind,
		Peer:  w.Peer,
		Host:  w.Host,
		Token: w.Token,
		Name:  w.Name,
		Code:  w.Code,
		Error: w.Error,
	}
	if len(w.Actions) > 0 {
		if xxhash.Sum64(w.Actions) != w.Sum {
			return Envelope{}, NewProtocolError(ErrorCodeChecksumMismatch, "decode envelope", ErrChecksumMismatch)
		}
		if err := json.Unmarshal(w.Actions, &env.Actions); err != nil {
			return Envelope{}, NewProtocolError(ErrorCodeDeserializationFailed, "decode actions", err)
		}
	}
	return env, nil
}
