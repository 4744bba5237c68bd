package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/mcoot/cubegame/internal/client"
	"github.com/mcoot/cubegame/internal/model"
)

// Host starts the server side of a session listening on addr
type Host interface {
	Listen(ctx context.Context, addr string) error
}

// Client opens the client side of a session
type Client interface {
	Connect(ctx context.Context, address string, port int) error
	Status(ctx context.Context) (client.Status, error)
}

// CommandKind names a session command
type CommandKind string

const (
	CommandHost CommandKind = "host"
	CommandJoin CommandKind = "join"
)

// Command is one host or join request. Zero fields fall back to the config.
type Command struct {
	Kind    CommandKind
	Address string
	Port    int
}

// Session accepts a single host or join command. Once a command has started
// successfully every further command fails with model.ErrAlreadyStarted.
type Session struct {
	cfg    Config
	host   Host
	client Client
	logger *slog.Logger

	mu      sync.Mutex
	started bool
}

// New creates a session. host may be nil for processes that cannot host.
func New(cfg Config, host Host, c Client, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		host:   host,
		client: c,
		logger: logger.With(slog.String("component", "session")),
	}
}

// Started reports whether a command has already started the session
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Execute runs a command
func (s *Session) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandHost:
		return s.Host(ctx, cmd.Port)
	case CommandJoin:
		return s.Join(ctx, cmd.Address, cmd.Port)
	default:
		return fmt.Errorf("unknown command %q", cmd.Kind)
	}
}

// Host listens on every interface and joins the local server over loopback.
// It is refused unless the play mode allows both client and server.
func (s *Session) Host(ctx context.Context, port int) error {
	if s.cfg.PlayMode != PlayModeClientAndServer || s.host == nil {
		return fmt.Errorf("%w: %s", model.ErrHostNotAllowed, s.cfg.PlayMode)
	}
	if port == 0 {
		port = s.cfg.Port
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d", model.ErrInvalidAddress, port)
	}

	// Once the listener is up the session stays started even if the
	// loopback client fails, since the port is taken
	return s.start(func() (bool, error) {
		if err := s.host.Listen(ctx, net.JoinHostPort("0.0.0.0", strconv.Itoa(port))); err != nil {
			return false, fmt.Errorf("listen: %w", err)
		}
		if err := s.client.Connect(ctx, "127.0.0.1", port); err != nil {
			return true, fmt.Errorf("connect to local server: %w", err)
		}
		s.logger.Info("hosting", slog.Int("port", port))
		return true, nil
	})
}

// Join dials a remote server
func (s *Session) Join(ctx context.Context, address string, port int) error {
	if address == "" {
		address = s.cfg.Address
	}
	if port == 0 {
		port = s.cfg.Port
	}
	if net.ParseIP(address) == nil {
		return fmt.Errorf("%w: %q", model.ErrInvalidAddress, address)
	}

	return s.start(func() (bool, error) {
		if err := s.client.Connect(ctx, address, port); err != nil {
			return false, err
		}
		s.logger.Info("joining", slog.String("address", address), slog.Int("port", port))
		return true, nil
	})
}

// Bootstrap hosts on the configured port when auto-connect is enabled.
// It reports whether a session was started.
func (s *Session) Bootstrap(ctx context.Context) (bool, error) {
	if !s.cfg.AutoConnect {
		s.logger.Info("waiting for host or join command")
		return false, nil
	}
	if err := s.Host(ctx, s.cfg.Port); err != nil {
		return false, err
	}
	return true, nil
}

// start runs fn unless a command already started the session. fn reports
// whether it got far enough that the session must count as started.
func (s *Session) start(fn func() (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return model.ErrAlreadyStarted
	}
	committed, err := fn()
	if committed {
		s.started = true
	}
	return err
}

// StatusText describes the client connection in one line
func (s *Session) StatusText(ctx context.Context) (string, error) {
	st, err := s.client.Status(ctx)
	if err != nil {
		return "", err
	}
	return FormatStatus(st), nil
}

// FormatStatus renders a client status as shown in the connection label
func FormatStatus(st client.Status) string {
	if !st.Active {
		return "Not connected!"
	}

	addr := st.Address
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	if st.Connection == nil || !st.Connection.HasIdentity() {
		return addr + " | Connecting"
	}
	if ms := st.Connection.RTT.Milliseconds(); ms > 0 {
		return fmt.Sprintf("%s | %dms", addr, ms)
	}
	return addr + " | Connected"
}
