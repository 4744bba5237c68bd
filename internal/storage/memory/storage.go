package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	connections  map[model.ConnectionHandle]model.Connection
	joinRequests map[model.JoinRequestID]model.JoinRequest
	players      map[model.PlayerID]model.PlayerRecord
	owned        map[model.ConnectionHandle]map[model.PlayerID]struct{}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		connections:  make(map[model.ConnectionHandle]model.Connection),
		joinRequests: make(map[model.JoinRequestID]model.JoinRequest),
		players:      make(map[model.PlayerID]model.PlayerRecord),
		owned:        make(map[model.ConnectionHandle]map[model.PlayerID]struct{}),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Connection queries

func (s *Storage) GetConnection(ctx context.Context, handle model.ConnectionHandle) (*model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[handle]
	if !ok {
		return nil, model.ErrConnectionNotFound
	}
	return &conn, nil
}

func (s *Storage) ListConnections(ctx context.Context) ([]*model.Connection, error) {
	return s.filterConnections(func(*model.Connection) bool { return true }), nil
}

func (s *Storage) ListConnectionsAwaitingGame(ctx context.Context) ([]*model.Connection, error) {
	return s.filterConnections((*model.Connection).AwaitingGame), nil
}

func (s *Storage) filterConnections(keep func(*model.Connection) bool) []*model.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		if keep(&conn) {
			result = append(result, &conn)
		}
	}
	storage.SortConnections(result)
	return result
}

// Join request queries

func (s *Storage) ListJoinRequests(ctx context.Context, direction model.Direction) ([]*model.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []*model.JoinRequest{}
	for _, req := range s.joinRequests {
		if req.Direction == direction {
			result = append(result, &req)
		}
	}
	storage.SortJoinRequests(result)
	return result, nil
}

// Player queries

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.PlayerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.PlayerRecord, 0, len(s.players))
	for _, player := range s.players {
		result = append(result, &player)
	}
	storage.SortPlayers(result)
	return result, nil
}

func (s *Storage) ListOwned(ctx context.Context, handle model.ConnectionHandle) ([]model.PlayerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.PlayerID, 0, len(s.owned[handle]))
	for id := range s.owned[handle] {
		result = append(result, id)
	}
	slices.Sort(result)
	return result, nil
}

// Apply commits the batch under the write lock, so readers see all of it or none
func (s *Storage) Apply(ctx context.Context, batch *storage.Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range batch.Ops() {
		switch op.Kind {
		case storage.OpSaveConnection:
			s.connections[op.Handle] = *op.Connection
		case storage.OpDeleteConnection:
			delete(s.connections, op.Handle)
		case storage.OpSaveJoinRequest:
			s.joinRequests[op.RequestID] = *op.JoinRequest
		case storage.OpDeleteJoinRequest:
			delete(s.joinRequests, op.RequestID)
		case storage.OpSavePlayer:
			s.players[op.PlayerID] = *op.Player
		case storage.OpDeletePlayer:
			delete(s.players, op.PlayerID)
		case storage.OpLinkOwned:
			if s.owned[op.Handle] == nil {
				s.owned[op.Handle] = make(map[model.PlayerID]struct{})
			}
			s.owned[op.Handle][op.PlayerID] = struct{}{}
		case storage.OpUnlinkOwned:
			delete(s.owned, op.Handle)
		}
	}
	return nil
}
