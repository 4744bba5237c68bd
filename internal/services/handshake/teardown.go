package handshake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// Teardown removes a closed connection together with everything it owns
type Teardown struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewTeardown creates a new Teardown
func NewTeardown(store storage.Storage, logger *slog.Logger) *Teardown {
	return &Teardown{
		store:  store,
		logger: logger.With(slog.String("component", "teardown")),
	}
}

// Run deletes the connection, its owned players and its pending join requests
// in one batch. Tearing down an unknown connection is a no-op.
func (t *Teardown) Run(ctx context.Context, handle model.ConnectionHandle) error {
	owned, err := t.store.ListOwned(ctx, handle)
	if err != nil {
		return fmt.Errorf("list owned: %w", err)
	}

	batch := storage.NewBatch()
	for _, id := range owned {
		batch.DeletePlayer(id)
	}
	batch.UnlinkOwned(handle)

	pending := 0
	for _, dir := range []model.Direction{model.DirectionOutgoing, model.DirectionIncoming} {
		reqs, err := t.store.ListJoinRequests(ctx, dir)
		if err != nil {
			return fmt.Errorf("list %s join requests: %w", dir, err)
		}
		for _, req := range reqs {
			if req.Connection == handle {
				batch.DeleteJoinRequest(req.ID)
				pending++
			}
		}
	}
	batch.DeleteConnection(handle)

	if err := t.store.Apply(ctx, batch); err != nil {
		return fmt.Errorf("apply teardown: %w", err)
	}

	t.logger.Info("connection torn down",
		slog.String("connection", string(handle)),
		slog.Int("players_destroyed", len(owned)),
		slog.Int("requests_dropped", pending))
	return nil
}

// Sweep tears down, in one batch, every stored connection for which live
// returns false, along with orphaned players and join requests. It is used
// when a world starts against a store that outlived its previous process and
// when a world stops.
func (t *Teardown) Sweep(ctx context.Context, live func(model.ConnectionHandle) bool) (int, error) {
	conns, err := t.store.ListConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("list connections: %w", err)
	}

	batch := storage.NewBatch()
	players := map[model.PlayerID]bool{}
	unlinked := map[model.ConnectionHandle]bool{}
	unlink := func(handle model.ConnectionHandle) {
		if !unlinked[handle] {
			unlinked[handle] = true
			batch.UnlinkOwned(handle)
		}
	}
	deletePlayer := func(id model.PlayerID) {
		if !players[id] {
			players[id] = true
			batch.DeletePlayer(id)
		}
	}

	stale := 0
	for _, c := range conns {
		if live(c.Handle) {
			continue
		}
		owned, err := t.store.ListOwned(ctx, c.Handle)
		if err != nil {
			return 0, fmt.Errorf("list owned: %w", err)
		}
		for _, id := range owned {
			deletePlayer(id)
		}
		unlink(c.Handle)
		batch.DeleteConnection(c.Handle)
		stale++
	}

	records, err := t.store.ListPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list players: %w", err)
	}
	for _, p := range records {
		if !live(p.Connection) {
			deletePlayer(p.ID)
			unlink(p.Connection)
		}
	}

	for _, dir := range []model.Direction{model.DirectionOutgoing, model.DirectionIncoming} {
		reqs, err := t.store.ListJoinRequests(ctx, dir)
		if err != nil {
			return 0, fmt.Errorf("list %s join requests: %w", dir, err)
		}
		for _, req := range reqs {
			if !live(req.Connection) {
				batch.DeleteJoinRequest(req.ID)
			}
		}
	}

	if batch.Empty() {
		return 0, nil
	}
	if err := t.store.Apply(ctx, batch); err != nil {
		return 0, fmt.Errorf("apply sweep: %w", err)
	}

	t.logger.Info("stale state swept",
		slog.Int("connections", stale),
		slog.Int("players_destroyed", len(players)))
	return stale, nil
}
