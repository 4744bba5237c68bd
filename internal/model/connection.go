package model

import "time"

// ConnectionHandle is an opaque reference to a connection held by the store
type ConnectionHandle string

// NetworkID is the identity the server assigns to a connection once established.
// Zero means no identity has been assigned yet.
type NetworkID int32

// UnassignedNetworkID marks a connection that has not been identified yet
const UnassignedNetworkID NetworkID = 0

// Connection is a logical link between a client and the server
type Connection struct {
	Handle      ConnectionHandle `json:"handle"`
	NetworkID   NetworkID        `json:"network_id"`
	InGame      bool             `json:"in_game"`
	RemoteAddr  string           `json:"remote_addr"`
	ConnectedAt time.Time        `json:"connected_at"`

	// Client side only
	Acknowledged bool          `json:"acknowledged,omitempty"`
	RTT          time.Duration `json:"rtt,omitempty"`
}

// HasIdentity reports whether the server has assigned a network id
func (c *Connection) HasIdentity() bool {
	return c.NetworkID != UnassignedNetworkID
}

// AwaitingGame reports whether the connection is identified but not yet in game
func (c *Connection) AwaitingGame() bool {
	return c.HasIdentity() && !c.InGame
}
