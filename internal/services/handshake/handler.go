package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/cubegame/internal/dependencies/clock"
	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// Acknowledger is told about each connection the handler put in game.
// The server runtime uses it to send the in_game message.
type Acknowledger interface {
	AckInGame(ctx context.Context, conn *model.Connection, player *model.PlayerRecord)
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithTemplate overrides the template players are spawned from
func WithTemplate(t model.Template) HandlerOption {
	return func(h *Handler) {
		h.template = t
	}
}

// WithAcknowledger sets who is told about newly spawned players
func WithAcknowledger(a Acknowledger) HandlerOption {
	return func(h *Handler) {
		h.ack = a
	}
}

// Handler runs in the server world. It consumes incoming join requests: requests
// from live connections spawn one owned player record, requests from connections
// that have gone away are dropped without error.
type Handler struct {
	store    storage.Storage
	clock    clock.Clock
	ids      ids.Generator
	logger   *slog.Logger
	template model.Template
	ack      Acknowledger
}

// NewHandler creates a new join request handler
func NewHandler(store storage.Storage, clk clock.Clock, gen ids.Generator, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:    store,
		clock:    clk,
		ids:      gen,
		logger:   logger.With(slog.String("system", "join_request_handler")),
		template: model.DefaultCubeTemplate,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements sim.System
func (h *Handler) Name() string {
	return "join_request_handler"
}

type spawn struct {
	conn   *model.Connection
	player *model.PlayerRecord
}

// Update implements sim.System
func (h *Handler) Update(ctx context.Context, _ time.Duration) error {
	reqs, err := h.store.ListJoinRequests(ctx, model.DirectionIncoming)
	if err != nil {
		return fmt.Errorf("list join requests: %w", err)
	}
	if len(reqs) == 0 {
		return nil
	}

	now := h.clock.Now()
	batch := storage.NewBatch()
	spawned := []spawn{}
	handled := make(map[model.ConnectionHandle]bool)

	for _, req := range reqs {
		// Every request is consumed this pass, whatever its outcome
		batch.DeleteJoinRequest(req.ID)

		conn, err := h.store.GetConnection(ctx, req.Connection)
		if errors.Is(err, model.ErrConnectionNotFound) {
			h.logger.Debug("discarding join request for closed connection",
				slog.String("connection", string(req.Connection)),
				slog.String("request_id", string(req.ID)))
			continue
		}
		if err != nil {
			return fmt.Errorf("get connection %s: %w", req.Connection, err)
		}
		if !conn.HasIdentity() {
			h.logger.Debug("discarding join request for unidentified connection",
				slog.String("connection", string(req.Connection)))
			continue
		}
		if handled[conn.Handle] {
			continue
		}
		handled[conn.Handle] = true

		owned, err := h.store.ListOwned(ctx, conn.Handle)
		if err != nil {
			return fmt.Errorf("list owned for %s: %w", conn.Handle, err)
		}
		if len(owned) > 0 {
			h.logger.Debug("connection already has a player",
				slog.Int("network_id", int(conn.NetworkID)))
			continue
		}

		conn.InGame = true
		player := h.template.Instantiate(model.PlayerID(h.ids.NewID()), now)
		player.Owner = conn.NetworkID
		player.Connection = conn.Handle

		batch.SaveConnection(conn).
			SavePlayer(player).
			LinkOwned(conn.Handle, player.ID)
		spawned = append(spawned, spawn{conn: conn, player: player})
	}

	if err := h.store.Apply(ctx, batch); err != nil {
		return fmt.Errorf("apply join handling: %w", err)
	}

	for _, s := range spawned {
		h.logger.Info("player spawned",
			slog.Int("network_id", int(s.conn.NetworkID)),
			slog.String("player_id", string(s.player.ID)),
			slog.String("template", s.player.Template))
		if h.ack != nil {
			h.ack.AckInGame(ctx, s.conn, s.player)
		}
	}
	return nil
}
