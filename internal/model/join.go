package model

import "time"

// JoinRequestID uniquely identifies a join request
type JoinRequestID string

// Direction says which side of the wire a join request sits on
type Direction string

const (
	// DirectionOutgoing is a request queued by a client, waiting for delivery
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming is a request received by the server, waiting for the handler
	DirectionIncoming Direction = "incoming"
)

// JoinRequest is a transient message asking the server to put a connection in game.
// It is consumed exactly once.
type JoinRequest struct {
	ID         JoinRequestID    `json:"id"`
	Connection ConnectionHandle `json:"connection"`
	Direction  Direction        `json:"direction"`
	CreatedAt  time.Time        `json:"created_at"`
}
