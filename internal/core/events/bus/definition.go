package bus

import (
	"encoding/json"
	"fmt"
)

// Definition binds an action type tag to its payload type P.
type Definition[P any] struct {
	actionType string
}

// Define declares an action type. Declare each type once, usually as a
// package level variable.
func Define[P any](actionType string) Definition[P] {
	return Definition[P]{actionType: actionType}
}

func (d Definition[P]) Type() string { return d.actionType }

// New builds an action of this type carrying payload.
func (d Definition[P]) New(payload P, opts ...Option) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, d.actionType, err)
	}
	a := Action{Type: d.actionType, Payload: raw}
	for _, opt := range opts {
		opt(&a)
	}
	return a, nil
}

// Matches reports whether a is of this type. It is usable as a Predicate.
func (d Definition[P]) Matches(a Action) bool {
	return a.Type == d.actionType
}

// Decode unmarshals the payload of a.
func (d Definition[P]) Decode(a Action) (P, error) {
	var payload P
	if a.Type != d.actionType {
		return payload, fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, d.actionType, a.Type)
	}
	if len(a.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(a.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, d.actionType, err)
	}
	return payload, nil
}

// Dispatch builds the action and dispatches it on b.
func (d Definition[P]) Dispatch(b *Bus, payload P, opts ...Option) error {
	a, err := d.New(payload, opts...)
	if err != nil {
		return err
	}
	return b.Dispatch(a)
}

// Receptor adapts fn into a Receptor that decodes the payload first.
func (d Definition[P]) Receptor(fn func(a Action, payload P) error) Receptor {
	return func(a Action) error {
		payload, err := d.Decode(a)
		if err != nil {
			return err
		}
		return fn(a, payload)
	}
}

// On registers fn on b for this action type.
func (d Definition[P]) On(b *Bus, fn func(a Action, payload P) error) ReceptorHandle {
	return b.AddReceptor(d.actionType, d.Receptor(fn))
}
