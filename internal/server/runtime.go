package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mcoot/cubegame/internal/dependencies/clock"
	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/services/debugcolor"
	"github.com/mcoot/cubegame/internal/services/handshake"
	"github.com/mcoot/cubegame/internal/services/movement"
	"github.com/mcoot/cubegame/internal/sim"
	"github.com/mcoot/cubegame/internal/storage"
	"github.com/mcoot/cubegame/internal/transport"
)

// Config holds server runtime settings
type Config struct {
	TickRate  int              `yaml:"tick_rate"`
	Transport transport.Config `yaml:"transport"`
}

// DefaultConfig returns sensible defaults for the server runtime
func DefaultConfig() Config {
	return Config{
		TickRate:  sim.DefaultTickRate,
		Transport: transport.DefaultConfig(),
	}
}

// Runtime is the server side of a session. Transport events are staged on the
// world inbox; the world applies them on its own goroutine.
type Runtime struct {
	cfg      Config
	store    storage.Storage
	clock    clock.Clock
	ids      ids.Generator
	logger   *slog.Logger
	world    *sim.World
	listener *transport.Listener
	teardown *handshake.Teardown
}

// New creates the server world and its websocket listener
func New(store storage.Storage, clk clock.Clock, gen ids.Generator, cfg Config, logger *slog.Logger) *Runtime {
	logger = logger.With(slog.String("component", "server"))
	r := &Runtime{
		cfg:      cfg,
		store:    store,
		clock:    clk,
		ids:      gen,
		logger:   logger,
		world:    sim.NewWorld("server", store, clk, logger),
		teardown: handshake.NewTeardown(store, logger),
	}
	r.listener = transport.NewListener(cfg.Transport, gen, r, logger)

	r.world.AddSystem(handshake.NewHandler(store, clk, gen, logger, handshake.WithAcknowledger(r)))
	r.world.AddSystem(movement.NewSystem(store))
	r.world.AddSystem(debugcolor.NewSystem(store, logger))
	return r
}

// World returns the server world
func (r *Runtime) World() *sim.World {
	return r.world
}

// Store returns the server store
func (r *Runtime) Store() storage.Storage {
	return r.store
}

// Handler returns the websocket endpoint
func (r *Runtime) Handler() http.Handler {
	return r.listener
}

// Tick returns the number of completed world steps
func (r *Runtime) Tick() uint64 {
	return r.world.Tick()
}

// Connections returns the number of live transport connections
func (r *Runtime) Connections() int {
	return r.listener.Count()
}

// Run sweeps state left in the store by connections this listener does not
// hold, steps the world until ctx is cancelled, then closes every connection
// and tears all of them down.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Sweep(ctx); err != nil {
		return err
	}
	err := r.world.Run(ctx, r.cfg.TickRate)

	// The world no longer steps, so disconnect callbacks would never be applied
	r.Close()
	_, sweepErr := r.teardown.Sweep(context.WithoutCancel(ctx), func(model.ConnectionHandle) bool { return false })
	return errors.Join(err, sweepErr)
}

// Sweep tears down every stored connection the listener does not hold
func (r *Runtime) Sweep(ctx context.Context) error {
	_, err := r.teardown.Sweep(ctx, func(h model.ConnectionHandle) bool {
		_, ok := r.listener.Get(h)
		return ok
	})
	return err
}

// Close disconnects every client
func (r *Runtime) Close() {
	r.listener.Close()
}

// Connected implements transport.Handler
func (r *Runtime) Connected(c *transport.Conn) {
	conn := &model.Connection{
		Handle:      c.Handle(),
		NetworkID:   c.NetworkID(),
		RemoteAddr:  c.RemoteAddr(),
		ConnectedAt: r.clock.Now(),
	}
	r.world.Enqueue(func(ctx context.Context) error {
		return r.store.Apply(ctx, storage.NewBatch().SaveConnection(conn))
	})
}

// Message implements transport.Handler
func (r *Runtime) Message(c *transport.Conn, env transport.Envelope) {
	handle := c.Handle()

	switch env.Type {
	case transport.TypeGoInGame:
		req := &model.JoinRequest{
			ID:         model.JoinRequestID(r.ids.NewID()),
			Connection: handle,
			Direction:  model.DirectionIncoming,
			CreatedAt:  r.clock.Now(),
		}
		r.world.Enqueue(func(ctx context.Context) error {
			return r.store.Apply(ctx, storage.NewBatch().SaveJoinRequest(req))
		})

	case transport.TypeInput:
		var payload transport.InputPayload
		if err := env.DecodePayload(&payload); err != nil {
			r.logger.Warn("dropping input", slog.String("connection", string(handle)), slog.String("error", err.Error()))
			return
		}
		in := model.Input{Horizontal: payload.Horizontal, Vertical: payload.Vertical}
		r.world.Enqueue(func(ctx context.Context) error {
			return movement.SetInput(ctx, r.store, handle, in)
		})

	default:
		r.logger.Warn("ignoring message",
			slog.String("connection", string(handle)),
			slog.String("type", string(env.Type)),
			slog.String("error", model.ErrUnknownMessage.Error()))
	}
}

// Disconnected implements transport.Handler
func (r *Runtime) Disconnected(c *transport.Conn) {
	handle := c.Handle()
	r.world.Enqueue(func(ctx context.Context) error {
		return r.teardown.Run(ctx, handle)
	})
}

// AckInGame implements handshake.Acknowledger. A failed send is logged and not retried.
func (r *Runtime) AckInGame(ctx context.Context, conn *model.Connection, player *model.PlayerRecord) {
	c, ok := r.listener.Get(conn.Handle)
	if !ok {
		return
	}
	err := c.Send(transport.TypeInGame, transport.InGamePayload{NetworkID: conn.NetworkID, PlayerID: player.ID})
	if err != nil && !errors.Is(err, model.ErrConnectionClosed) {
		r.logger.Warn("failed to acknowledge join",
			slog.Int("network_id", int(conn.NetworkID)),
			slog.String("error", err.Error()))
	}
}
