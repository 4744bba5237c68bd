package factory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/cubegame/internal/api"
	"github.com/mcoot/cubegame/internal/client"
	"github.com/mcoot/cubegame/internal/config"
	"github.com/mcoot/cubegame/internal/dependencies/clock"
	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/server"
	"github.com/mcoot/cubegame/internal/session"
	"github.com/mcoot/cubegame/internal/storage"
	"github.com/mcoot/cubegame/internal/storage/memory"
	redisstorage "github.com/mcoot/cubegame/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	Config config.Config
	Logger *slog.Logger

	// External dependencies
	Clock clock.Clock
	IDs   ids.Generator

	// Each world gets its own store
	ServerStore storage.Storage
	ClientStore storage.Storage

	Server  *server.Runtime
	Client  *client.Runtime
	Keys    *client.KeyState
	Router  http.Handler
	Session *session.Session

	mu         sync.Mutex
	group      *errgroup.Group
	groupCtx   context.Context
	hosting    bool
	listenAddr net.Addr
}

// New creates a new application with all dependencies wired.
// A nil logger discards output.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	serverStore, err := newStore(cfg.Storage, "server")
	if err != nil {
		return nil, fmt.Errorf("server store: %w", err)
	}
	clientStore, err := newStore(cfg.Storage, "client")
	if err != nil {
		closeStore(serverStore)
		return nil, fmt.Errorf("client store: %w", err)
	}

	return newWithDependencies(cfg, serverStore, clientStore, clock.New(), ids.New(), logger), nil
}

// newStore builds the configured backend. Redis stores for different worlds
// share a server but not a keyspace.
func newStore(cfg config.StorageConfig, role string) (storage.Storage, error) {
	switch cfg.Type {
	case "", config.StorageMemory:
		return memory.New(), nil
	case config.StorageRedis:
		redisCfg := cfg.Redis
		if redisCfg.KeyPrefix == "" {
			redisCfg.KeyPrefix = redisstorage.DefaultConfig().KeyPrefix
		}
		redisCfg.KeyPrefix += ":" + role
		return redisstorage.New(redisCfg)
	default:
		return nil, fmt.Errorf("invalid storage type %q", cfg.Type)
	}
}

func closeStore(s storage.Storage) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(cfg config.Config, serverStore, clientStore storage.Storage, clk clock.Clock, gen ids.Generator, logger *slog.Logger) *App {
	keys := &client.KeyState{}
	srv := server.New(serverStore, clk, gen, cfg.Server, logger)
	cl := client.New(clientStore, clk, gen, cfg.Client, logger, client.WithInput(keys))

	app := &App{
		Config:      cfg,
		Logger:      logger,
		Clock:       clk,
		IDs:         gen,
		ServerStore: serverStore,
		ClientStore: clientStore,
		Server:      srv,
		Client:      cl,
		Keys:        keys,
		Router: api.NewRouter(api.RouterConfig{
			Logger:         logger,
			Server:         srv,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
	}
	app.Session = session.New(cfg.Session, app, cl, logger)
	return app
}

// Start runs the client world until ctx is cancelled or another app
// goroutine fails
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	gctx := a.runContext(ctx)
	a.group.Go(func() error { return a.Client.Run(gctx) })
}

// runContext returns the context shared by every app goroutine, creating the
// group on first use. The first goroutine to fail cancels it. Callers hold mu.
func (a *App) runContext(ctx context.Context) context.Context {
	if a.group == nil {
		a.group, a.groupCtx = errgroup.WithContext(ctx)
	}
	return a.groupCtx
}

// Listen implements session.Host: it binds addr, then serves the API and
// runs the server world until ctx is cancelled
func (a *App) Listen(ctx context.Context, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrInvalidAddress, addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrInvalidAddress, addr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hosting {
		return model.ErrAlreadyStarted
	}

	httpCfg := a.Config.HTTP
	httpCfg.Host = host
	httpCfg.Port = port
	srv := api.NewServer(a.Router, httpCfg, a.Logger)

	l, err := srv.Listen()
	if err != nil {
		return err
	}
	a.hosting = true
	a.listenAddr = l.Addr()

	// Hosting stops with ctx as well as with the rest of the app
	hostCtx, cancel := context.WithCancel(a.runContext(ctx))
	context.AfterFunc(ctx, cancel)

	a.group.Go(func() error { return srv.Serve(l) })
	a.group.Go(func() error { return a.Server.Run(hostCtx) })
	a.group.Go(func() error {
		<-hostCtx.Done()
		cancel()
		return srv.Shutdown(context.Background())
	})
	return nil
}

// ListenAddr returns the bound address, or nil when not hosting
func (a *App) ListenAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listenAddr
}

// Wait blocks until every started goroutine has returned
func (a *App) Wait() error {
	a.mu.Lock()
	group := a.group
	a.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Close releases the stores
func (a *App) Close() {
	closeStore(a.ServerStore)
	closeStore(a.ClientStore)
}
