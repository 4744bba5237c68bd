package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	keys   keyspace
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		keys:   keyspace{prefix: prefix},
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Connection queries

func (s *Storage) GetConnection(ctx context.Context, handle model.ConnectionHandle) (*model.Connection, error) {
	return getJSON[model.Connection](ctx, s.client, s.keys.connection(handle), model.ErrConnectionNotFound)
}

func (s *Storage) ListConnections(ctx context.Context) ([]*model.Connection, error) {
	return s.listConnections(ctx, s.keys.connections())
}

func (s *Storage) ListConnectionsAwaitingGame(ctx context.Context) ([]*model.Connection, error) {
	conns, err := s.listConnections(ctx, s.keys.awaiting())
	if err != nil {
		return nil, err
	}
	// The index is maintained on save, but re-check the value itself
	return slices.DeleteFunc(conns, func(c *model.Connection) bool { return !c.AwaitingGame() }), nil
}

func (s *Storage) listConnections(ctx context.Context, index string) ([]*model.Connection, error) {
	handles, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(handles))
	for i, h := range handles {
		keys[i] = s.keys.connection(model.ConnectionHandle(h))
	}
	conns, err := mgetJSON[model.Connection](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	storage.SortConnections(conns)
	return conns, nil
}

// Join request queries

func (s *Storage) ListJoinRequests(ctx context.Context, direction model.Direction) ([]*model.JoinRequest, error) {
	ids, err := s.client.SMembers(ctx, s.keys.joinRequests(direction)).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.joinRequest(model.JoinRequestID(id))
	}
	reqs, err := mgetJSON[model.JoinRequest](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	storage.SortJoinRequests(reqs)
	return reqs, nil
}

// Player queries

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error) {
	return getJSON[model.PlayerRecord](ctx, s.client, s.keys.player(id), model.ErrPlayerNotFound)
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.PlayerRecord, error) {
	ids, err := s.client.SMembers(ctx, s.keys.players()).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.player(model.PlayerID(id))
	}
	players, err := mgetJSON[model.PlayerRecord](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	storage.SortPlayers(players)
	return players, nil
}

func (s *Storage) ListOwned(ctx context.Context, handle model.ConnectionHandle) ([]model.PlayerID, error) {
	members, err := s.client.SMembers(ctx, s.keys.owned(handle)).Result()
	if err != nil {
		return nil, err
	}
	result := make([]model.PlayerID, len(members))
	for i, m := range members {
		result[i] = model.PlayerID(m)
	}
	slices.Sort(result)
	return result, nil
}

// Apply queues every operation in one MULTI/EXEC transaction
func (s *Storage) Apply(ctx context.Context, batch *storage.Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}

	// Encode everything up front so a bad value never reaches Redis
	encoded := make([][]byte, batch.Len())
	for i, op := range batch.Ops() {
		var v any
		switch op.Kind {
		case storage.OpSaveConnection:
			v = op.Connection
		case storage.OpSaveJoinRequest:
			v = op.JoinRequest
		case storage.OpSavePlayer:
			v = op.Player
		default:
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.Kind, err)
		}
		encoded[i] = data
	}

	pipe := s.client.TxPipeline()
	for i, op := range batch.Ops() {
		switch op.Kind {
		case storage.OpSaveConnection:
			pipe.Set(ctx, s.keys.connection(op.Handle), encoded[i], 0)
			pipe.SAdd(ctx, s.keys.connections(), string(op.Handle))
			if op.Connection.AwaitingGame() {
				pipe.SAdd(ctx, s.keys.awaiting(), string(op.Handle))
			} else {
				pipe.SRem(ctx, s.keys.awaiting(), string(op.Handle))
			}
		case storage.OpDeleteConnection:
			pipe.Del(ctx, s.keys.connection(op.Handle))
			pipe.SRem(ctx, s.keys.connections(), string(op.Handle))
			pipe.SRem(ctx, s.keys.awaiting(), string(op.Handle))
		case storage.OpSaveJoinRequest:
			pipe.Set(ctx, s.keys.joinRequest(op.RequestID), encoded[i], 0)
			pipe.SAdd(ctx, s.keys.joinRequests(op.JoinRequest.Direction), string(op.RequestID))
		case storage.OpDeleteJoinRequest:
			pipe.Del(ctx, s.keys.joinRequest(op.RequestID))
			pipe.SRem(ctx, s.keys.joinRequests(model.DirectionOutgoing), string(op.RequestID))
			pipe.SRem(ctx, s.keys.joinRequests(model.DirectionIncoming), string(op.RequestID))
		case storage.OpSavePlayer:
			pipe.Set(ctx, s.keys.player(op.PlayerID), encoded[i], 0)
			pipe.SAdd(ctx, s.keys.players(), string(op.PlayerID))
		case storage.OpDeletePlayer:
			pipe.Del(ctx, s.keys.player(op.PlayerID))
			pipe.SRem(ctx, s.keys.players(), string(op.PlayerID))
		case storage.OpLinkOwned:
			pipe.SAdd(ctx, s.keys.owned(op.Handle), string(op.PlayerID))
		case storage.OpUnlinkOwned:
			pipe.Del(ctx, s.keys.owned(op.Handle))
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func getJSON[T any](ctx context.Context, client *redis.Client, key string, notFound error) (*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// mgetJSON loads the keys in one round trip, skipping index entries whose value is gone
func mgetJSON[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	result := make([]*T, 0, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, err
		}
		result = append(result, &v)
	}
	return result, nil
}
