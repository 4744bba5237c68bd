package transport

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/cubegame/internal/model"
)

// MessageType identifies the payload of an envelope
type MessageType string

const (
	// Server to client
	TypeNetworkID MessageType = "network_id"
	TypeInGame    MessageType = "in_game"

	// Client to server
	TypeGoInGame MessageType = "go_in_game"
	TypeInput    MessageType = "input"
)

// Envelope is the JSON frame every message travels in
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NetworkIDPayload tells a client which identity the server assigned it
type NetworkIDPayload struct {
	NetworkID model.NetworkID `json:"network_id"`
}

// InGamePayload acknowledges that the server spawned the client's player
type InGamePayload struct {
	NetworkID model.NetworkID `json:"network_id"`
	PlayerID  model.PlayerID  `json:"player_id"`
}

// InputPayload carries one input sample
type InputPayload struct {
	Horizontal int `json:"horizontal"`
	Vertical   int `json:"vertical"`
}

// Encode wraps the payload in an envelope. A nil payload is omitted.
func Encode(t MessageType, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an envelope without touching its payload
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into v
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.Type, err)
	}
	return nil
}
