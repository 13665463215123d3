package bus

import (
	"encoding/json"
	"slices"

	"github.com/oklog/ulid/v2"
)

const (
	// ToAll addresses every peer in the session.
	ToAll = "all"
	// TopicWorld is the topic of actions shared with the world network.
	TopicWorld = "world"
)

// Action is an immutable, typed, serializable message. Type is the
// discriminator the dispatch table is keyed by; From and To carry the sender
// and the target (a peer id or ToAll). Seq is the position in the local log
// and is never transmitted.
type Action struct {
	ID      ulid.ULID       `json:"id"`
	Type    string          `json:"type"`
	From    string          `json:"$from"`
	To      string          `json:"$to,omitempty"`
	Topics  []string        `json:"$topics,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Seq uint64 `json:"-"`
}

// Addressed reports whether the action should be applied by peer.
func (a Action) Addressed(peer string) bool {
	return a.To == "" || a.To == ToAll || a.To == peer
}

// clone detaches the action from caller-owned slices.
func (a Action) clone() Action {
	a.Topics = slices.Clone(a.Topics)
	a.Payload = slices.Clone(a.Payload)
	return a
}

// Option adjusts an action built from a Definition.
type Option func(a *Action)

// To sets the target peer.
func To(peer string) Option {
	return func(a *Action) { a.To = peer }
}

// From overrides the sender. The bus fills it with the local peer otherwise.
func From(peer string) Option {
	return func(a *Action) { a.From = peer }
}

// Topics forwards the action to the transport under the given topics.
func Topics(topics ...string) Option {
	return func(a *Action) { a.Topics = append(a.Topics, topics...) }
}
