package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
)

// ConnectPath is the route clients dial to join a session
const ConnectPath = "/api/v1/connect"

// Listener upgrades incoming HTTP requests to websocket connections and
// assigns each one a network id
type Listener struct {
	cfg      Config
	ids      ids.Generator
	handler  Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader

	nextID atomic.Int32

	mu    sync.RWMutex
	conns map[model.ConnectionHandle]*Conn
}

// NewListener creates a listener that reports connections to handler
func NewListener(cfg Config, gen ids.Generator, handler Handler, logger *slog.Logger) *Listener {
	l := &Listener{
		cfg:     cfg,
		ids:     gen,
		handler: handler,
		logger:  logger,
		conns:   make(map[model.ConnectionHandle]*Conn),
	}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return l
}

// ServeHTTP upgrades the request and starts the connection pumps
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		l.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := newConn(model.ConnectionHandle(l.ids.NewID()), ws, l.cfg, listenerHandler{l}, l.logger)
	conn.networkID = model.NetworkID(l.nextID.Add(1))

	l.mu.Lock()
	l.conns[conn.handle] = conn
	l.mu.Unlock()

	l.logger.Info("client connected",
		slog.String("connection", string(conn.handle)),
		slog.Int("network_id", int(conn.networkID)),
		slog.String("remote_addr", conn.remoteAddr),
	)

	l.handler.Connected(conn)
	if err := conn.Send(TypeNetworkID, NetworkIDPayload{NetworkID: conn.networkID}); err != nil {
		l.logger.Warn("failed to send network id", slog.String("error", err.Error()))
	}
	conn.start()
}

// Get returns a live connection by handle
func (l *Listener) Get(handle model.ConnectionHandle) (*Conn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.conns[handle]
	return c, ok
}

// Count returns the number of live connections
func (l *Listener) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.conns)
}

// Close shuts down every live connection
func (l *Listener) Close() {
	l.mu.RLock()
	conns := make([]*Conn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// listenerHandler drops connections from the registry before passing events on
type listenerHandler struct {
	l *Listener
}

func (h listenerHandler) Connected(c *Conn) {}

func (h listenerHandler) Message(c *Conn, env Envelope) {
	h.l.handler.Message(c, env)
}

func (h listenerHandler) Disconnected(c *Conn) {
	h.l.mu.Lock()
	delete(h.l.conns, c.handle)
	h.l.mu.Unlock()

	h.l.logger.Info("client disconnected", slog.String("connection", string(c.handle)))
	h.l.handler.Disconnected(c)
}
