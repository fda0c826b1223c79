// Package protocol defines the wire format of the signaling socket: one
// JSON object per message, {"type": ..., "payload": ...}. Every known
// message type has a typed payload; the dispatcher rejects anything else.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed message")

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseEnvelope splits a raw frame into type and payload without
// committing to a payload shape yet.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope payload into its typed shape.
// A missing payload decodes as the zero value only when T tolerates it;
// handlers validate required fields themselves.
func DecodePayload[T any](env Envelope) (T, error) {
	var p T
	if len(env.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: bad %s payload: %v", ErrMalformed, env.Type, err)
	}
	return p, nil
}

// Encode renders an outbound frame.
func Encode(msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: body})
}
