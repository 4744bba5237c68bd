package response

import (
	"time"

	"github.com/mcoot/cubegame/internal/model"
)

// Health is the response for the health check
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Tick        uint64 `json:"tick"`
}

// Connection represents a connection in API responses
type Connection struct {
	Handle      string    `json:"handle"`
	NetworkID   int32     `json:"network_id"`
	InGame      bool      `json:"in_game"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Players     []string  `json:"players"`
}

// ConnectionFromModel converts a model.Connection and the players it owns
func ConnectionFromModel(c *model.Connection, owned []model.PlayerID) Connection {
	players := make([]string, len(owned))
	for i, id := range owned {
		players[i] = string(id)
	}
	return Connection{
		Handle:      string(c.Handle),
		NetworkID:   int32(c.NetworkID),
		InGame:      c.InGame,
		RemoteAddr:  c.RemoteAddr,
		ConnectedAt: c.ConnectedAt,
		Players:     players,
	}
}

// ConnectionList is the response for listing connections
type ConnectionList struct {
	Connections []Connection `json:"connections"`
}

// Vec3 is a position in API responses
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player represents a player record in API responses
type Player struct {
	ID        string    `json:"id"`
	Owner     int32     `json:"owner"`
	Template  string    `json:"template"`
	Tags      []string  `json:"tags"`
	Position  Vec3      `json:"position"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayerFromModel converts a model.PlayerRecord to a response Player
func PlayerFromModel(p *model.PlayerRecord) Player {
	return Player{
		ID:        string(p.ID),
		Owner:     int32(p.Owner),
		Template:  p.Template,
		Tags:      p.Tags.Names(),
		Position:  Vec3{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
		Color:     p.Color.Hex(),
		CreatedAt: p.CreatedAt,
	}
}

// PlayerList is the response for listing players
type PlayerList struct {
	Players []Player `json:"players"`
}
