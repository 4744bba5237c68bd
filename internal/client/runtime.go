package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/mcoot/cubegame/internal/dependencies/clock"
	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/services/handshake"
	"github.com/mcoot/cubegame/internal/sim"
	"github.com/mcoot/cubegame/internal/storage"
	"github.com/mcoot/cubegame/internal/transport"
)

// Config holds client runtime settings
type Config struct {
	TickRate  int              `yaml:"tick_rate"`
	Transport transport.Config `yaml:"transport"`
	// StatusRefreshTicks is how often the stored round trip is refreshed
	StatusRefreshTicks int `yaml:"status_refresh_ticks"`
}

// DefaultConfig returns sensible defaults for the client runtime
func DefaultConfig() Config {
	return Config{
		TickRate:           sim.DefaultTickRate,
		Transport:          transport.DefaultConfig(),
		StatusRefreshTicks: 30,
	}
}

// Option configures a Runtime
type Option func(*Runtime)

// WithInput sets where movement keys are sampled from
func WithInput(src InputSource) Option {
	return func(r *Runtime) {
		r.input = src
	}
}

// Runtime is the client side of a session. It holds at most one server
// connection and runs the join request emitter against it.
type Runtime struct {
	cfg      Config
	store    storage.Storage
	clock    clock.Clock
	ids      ids.Generator
	logger   *slog.Logger
	world    *sim.World
	teardown *handshake.Teardown
	input    InputSource

	mu      sync.RWMutex
	conn    *transport.Conn
	dialing bool
	target  string
}

// New creates the client world
func New(store storage.Storage, clk clock.Clock, gen ids.Generator, cfg Config, logger *slog.Logger, opts ...Option) *Runtime {
	logger = logger.With(slog.String("component", "client"))
	r := &Runtime{
		cfg:      cfg,
		store:    store,
		clock:    clk,
		ids:      gen,
		logger:   logger,
		world:    sim.NewWorld("client", store, clk, logger),
		teardown: handshake.NewTeardown(store, logger),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.world.AddSystem(handshake.NewEmitter(store, clk, gen, logger))
	r.world.AddSystem(&outbox{r: r})
	r.world.AddSystem(&inputSender{r: r})
	r.world.AddSystem(&rttRefresher{r: r, every: cfg.StatusRefreshTicks})
	return r
}

// World returns the client world
func (r *Runtime) World() *sim.World {
	return r.world
}

// Store returns the client store
func (r *Runtime) Store() storage.Storage {
	return r.store
}

// Run sweeps state left in the store by earlier connections, steps the world
// until ctx is cancelled, then closes the connection and tears it down
func (r *Runtime) Run(ctx context.Context) error {
	if _, err := r.teardown.Sweep(ctx, r.isCurrent); err != nil {
		return err
	}
	err := r.world.Run(ctx, r.cfg.TickRate)

	_ = r.Disconnect()
	_, sweepErr := r.teardown.Sweep(context.WithoutCancel(ctx), func(model.ConnectionHandle) bool { return false })
	return errors.Join(err, sweepErr)
}

func (r *Runtime) isCurrent(h model.ConnectionHandle) bool {
	c := r.current()
	return c != nil && c.Handle() == h
}

// Connect dials a server. Only one connection may be open or opening at a time.
func (r *Runtime) Connect(ctx context.Context, address string, port int) error {
	url, err := transport.URL(address, port)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.conn != nil || r.dialing {
		r.mu.Unlock()
		return model.ErrAlreadyStarted
	}
	r.dialing = true
	r.target = net.JoinHostPort(address, strconv.Itoa(port))
	r.mu.Unlock()

	_, err = transport.Dial(ctx, url, r.cfg.Transport, r.ids, r, r.logger)

	r.mu.Lock()
	r.dialing = false
	if err != nil {
		r.target = ""
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	r.logger.Info("connecting", slog.String("url", url))
	return nil
}

// Disconnect closes the current connection. It returns ErrNotConnected when
// there is none.
func (r *Runtime) Disconnect() error {
	c := r.current()
	if c == nil {
		return model.ErrNotConnected
	}
	c.Close()
	return nil
}

func (r *Runtime) current() *transport.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

// Status describes the client connection for display
type Status struct {
	// Active is false when there is no connection and none is being opened
	Active  bool
	Address string
	// Connection is the stored connection, nil until the world has seen it
	Connection *model.Connection
}

// Status reports the state of the current connection
func (r *Runtime) Status(ctx context.Context) (Status, error) {
	r.mu.RLock()
	conn, dialing, target := r.conn, r.dialing, r.target
	r.mu.RUnlock()

	if conn == nil {
		return Status{Active: dialing, Address: target}, nil
	}

	st := Status{Active: true, Address: conn.RemoteAddr()}
	stored, err := r.store.GetConnection(ctx, conn.Handle())
	if errors.Is(err, model.ErrConnectionNotFound) {
		return st, nil
	}
	if err != nil {
		return Status{}, err
	}
	st.Connection = stored
	return st, nil
}

// Connected implements transport.Handler
func (r *Runtime) Connected(c *transport.Conn) {
	r.mu.Lock()
	r.conn = c
	r.mu.Unlock()

	conn := &model.Connection{
		Handle:      c.Handle(),
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
	case transport.TypeNetworkID:
		var payload transport.NetworkIDPayload
		if err := env.DecodePayload(&payload); err != nil {
			r.logger.Warn("dropping network id", slog.String("error", err.Error()))
			return
		}
		r.world.Enqueue(func(ctx context.Context) error {
			return r.assignNetworkID(ctx, handle, payload.NetworkID)
		})

	case transport.TypeInGame:
		var payload transport.InGamePayload
		if err := env.DecodePayload(&payload); err != nil {
			r.logger.Warn("dropping in game ack", slog.String("error", err.Error()))
			return
		}
		r.world.Enqueue(func(ctx context.Context) error {
			return r.acknowledge(ctx, handle, payload)
		})

	default:
		r.logger.Warn("ignoring message",
			slog.String("type", string(env.Type)),
			slog.String("error", model.ErrUnknownMessage.Error()))
	}
}

// Disconnected implements transport.Handler
func (r *Runtime) Disconnected(c *transport.Conn) {
	r.mu.Lock()
	if r.conn == c {
		r.conn = nil
		r.target = ""
	}
	r.mu.Unlock()

	handle := c.Handle()
	r.world.Enqueue(func(ctx context.Context) error {
		return r.teardown.Run(ctx, handle)
	})
}

// assignNetworkID records the server assigned identity. It is set once.
func (r *Runtime) assignNetworkID(ctx context.Context, handle model.ConnectionHandle, id model.NetworkID) error {
	conn, err := r.store.GetConnection(ctx, handle)
	if errors.Is(err, model.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if conn.HasIdentity() {
		if conn.NetworkID != id {
			r.logger.Warn("ignoring reassigned network id",
				slog.Int("network_id", int(conn.NetworkID)),
				slog.Int("received", int(id)))
		}
		return nil
	}

	conn.NetworkID = id
	r.logger.Info("network id assigned", slog.Int("network_id", int(id)))
	return r.store.Apply(ctx, storage.NewBatch().SaveConnection(conn))
}

func (r *Runtime) acknowledge(ctx context.Context, handle model.ConnectionHandle, ack transport.InGamePayload) error {
	conn, err := r.store.GetConnection(ctx, handle)
	if errors.Is(err, model.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if conn.Acknowledged {
		return nil
	}

	conn.Acknowledged = true
	r.logger.Info("in game",
		slog.Int("network_id", int(ack.NetworkID)),
		slog.String("player_id", string(ack.PlayerID)))
	return r.store.Apply(ctx, storage.NewBatch().SaveConnection(conn))
}
