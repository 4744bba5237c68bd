package handshake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/cubegame/internal/dependencies/clock"
	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// Emitter runs in the client world. Every identified connection that is not yet
// in game is flagged in game and gets exactly one outgoing join request.
// The flag is set before the server answers and the request is never re-sent.
type Emitter struct {
	store  storage.Storage
	clock  clock.Clock
	ids    ids.Generator
	logger *slog.Logger
}

// NewEmitter creates a new join request emitter
func NewEmitter(store storage.Storage, clk clock.Clock, gen ids.Generator, logger *slog.Logger) *Emitter {
	return &Emitter{
		store:  store,
		clock:  clk,
		ids:    gen,
		logger: logger.With(slog.String("system", "join_request_emitter")),
	}
}

// Name implements sim.System
func (e *Emitter) Name() string {
	return "join_request_emitter"
}

// Update implements sim.System
func (e *Emitter) Update(ctx context.Context, _ time.Duration) error {
	conns, err := e.store.ListConnectionsAwaitingGame(ctx)
	if err != nil {
		return fmt.Errorf("list connections awaiting game: %w", err)
	}
	if len(conns) == 0 {
		return nil
	}

	now := e.clock.Now()
	batch := storage.NewBatch()
	requests := make([]*model.JoinRequest, 0, len(conns))
	for _, conn := range conns {
		conn.InGame = true
		req := &model.JoinRequest{
			ID:         model.JoinRequestID(e.ids.NewID()),
			Connection: conn.Handle,
			Direction:  model.DirectionOutgoing,
			CreatedAt:  now,
		}
		batch.SaveConnection(conn).SaveJoinRequest(req)
		requests = append(requests, req)
	}

	if err := e.store.Apply(ctx, batch); err != nil {
		return fmt.Errorf("apply join requests: %w", err)
	}

	for i, req := range requests {
		e.logger.Info("join request queued",
			slog.String("connection", string(req.Connection)),
			slog.Int("network_id", int(conns[i].NetworkID)),
			slog.String("request_id", string(req.ID)))
	}
	return nil
}
