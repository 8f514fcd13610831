// internal/protocol/message.go
package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Payload is one side of the protocol's closed union. Every payload knows the
// type tag it travels under.
type Payload interface {
	MessageType() string
}

// Message is the wire envelope: {"type": <tag>, "payload": {...}}. Messages
// are always sent as a single text frame of JSON.
type Message struct {
	Type    string
	Payload Payload
}

// New wraps a payload in its envelope.
func New(payload Payload) *Message {
	return &Message{Type: payload.MessageType(), Payload: payload}
}

// DecodeError reports a frame that does not parse as a protocol message:
// malformed JSON, an unknown type tag, or a payload that fails validation.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid protocol message: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// emptyPayloadFor returns a fresh zero payload for tag. The switch is the
// whole protocol; decoding rejects anything else.
func emptyPayloadFor(tag string) (Payload, bool) {
	switch tag {
	case TypeServerHello:
		return &ServerHello{}, true
	case TypePlayerJoined:
		return &PlayerJoined{}, true
	case TypePlayerLeft:
		return &PlayerLeft{}, true
	case TypeServerStartGame:
		return &ServerStartGame{}, true
	case TypeRoundStart:
		return &RoundStart{}, true
	case TypeRoundResult:
		return &RoundResult{}, true
	case TypeHostStartGame:
		return &HostStartGame{}, true
	case TypePlayerMoves:
		return &PlayerMoves{}, true
	case TypeReadyForNextRound:
		return &ReadyForNextRound{}, true
	case TypeError:
		return &ErrorPayload{}, true
	}
	return nil, false
}

// MessageTypes lists every known type tag in stable order.
func MessageTypes() []string {
	tags := []string{
		TypeServerHello,
		TypePlayerJoined,
		TypePlayerLeft,
		TypeServerStartGame,
		TypeRoundStart,
		TypeRoundResult,
		TypeHostStartGame,
		TypePlayerMoves,
		TypeReadyForNextRound,
		TypeError,
	}
	sort.Strings(tags)
	return tags
}

// Decode parses one frame into a typed message. Any failure is reported as a
// *DecodeError so callers can treat it as a protocol violation.
func Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	payload, known := emptyPayloadFor(env.Type)
	if !known {
		return nil, &DecodeError{Cause: fmt.Errorf("unknown message type %q", env.Type)}
	}
	// ready_for_next_round may arrive without a payload object at all.
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return nil, &DecodeError{Cause: fmt.Errorf("payload of %q: %w", env.Type, err)}
		}
	}
	return &Message{Type: env.Type, Payload: payload}, nil
}

// MarshalJSON writes the envelope. The type tag always comes from the
// payload, never from the Type field, so a Message built by hand cannot lie
// about its contents.
func (m *Message) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("cannot encode message without payload")
	}
	raw, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: m.Payload.MessageType(), Payload: raw})
}

// UnmarshalJSON decodes through the closed union.
func (m *Message) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}
