package storage

import (
	"context"

	"github.com/mcoot/cubegame/internal/model"
)

// Storage is the simulation store a world runs its systems against.
// Reads return copies; all writes go through Apply so a pass's mutations
// become visible together.
type Storage interface {
	// Connection queries
	GetConnection(ctx context.Context, handle model.ConnectionHandle) (*model.Connection, error)
	ListConnections(ctx context.Context) ([]*model.Connection, error)
	// ListConnectionsAwaitingGame returns connections with an identity that are not in game
	ListConnectionsAwaitingGame(ctx context.Context) ([]*model.Connection, error)

	// Join request queries
	ListJoinRequests(ctx context.Context, direction model.Direction) ([]*model.JoinRequest, error)

	// Player queries
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error)
	ListPlayers(ctx context.Context) ([]*model.PlayerRecord, error)
	// ListOwned returns the players that are destroyed with the given connection
	ListOwned(ctx context.Context, handle model.ConnectionHandle) ([]model.PlayerID, error)

	// Apply commits every operation in the batch atomically
	Apply(ctx context.Context, batch *Batch) error
}
