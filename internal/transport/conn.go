package transport

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/cubegame/internal/model"
)

// ErrSendBufferFull is returned when a peer is not draining its outbound queue
var ErrSendBufferFull = errors.New("send buffer full")

// Handler receives connection lifecycle events. Calls for one connection
// arrive from its read goroutine, so implementations must not block for long.
type Handler interface {
	Connected(c *Conn)
	Message(c *Conn, env Envelope)
	Disconnected(c *Conn)
}

// Conn is a middleman between a websocket connection and the simulation.
type Conn struct {
	handle     model.ConnectionHandle
	networkID  model.NetworkID
	remoteAddr string
	ws         *websocket.Conn
	cfg        Config
	handler    Handler
	logger     *slog.Logger

	// Buffered channel of outbound messages.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	rtt       atomic.Int64
}

func newConn(handle model.ConnectionHandle, ws *websocket.Conn, cfg Config, handler Handler, logger *slog.Logger) *Conn {
	return &Conn{
		handle:     handle,
		remoteAddr: ws.RemoteAddr().String(),
		ws:         ws,
		cfg:        cfg,
		handler:    handler,
		logger:     logger.With(slog.String("connection", string(handle))),
		send:       make(chan []byte, cfg.SendBuffer),
		done:       make(chan struct{}),
	}
}

// Handle returns the connection handle
func (c *Conn) Handle() model.ConnectionHandle {
	return c.handle
}

// NetworkID returns the id the listener assigned. Zero on dialled connections.
func (c *Conn) NetworkID() model.NetworkID {
	return c.networkID
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// RTT returns the latest round trip estimate, or zero before the first pong
func (c *Conn) RTT() time.Duration {
	return time.Duration(c.rtt.Load())
}

// Send queues a message for the write pump
func (c *Conn) Send(t MessageType, payload any) error {
	data, err := Encode(t, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return model.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return model.ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close starts a graceful shutdown. Disconnected fires once the read pump exits.
func (c *Conn) Close() {
	c.shutdown()
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps messages from the websocket connection to the handler.
//
// There is at most one reader on a connection; all reads happen here.
func (c *Conn) readPump() {
	defer func() {
		c.shutdown()
		_ = c.ws.Close()
		c.handler.Disconnected(c)
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(c.handlePong)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read failed", slog.String("error", err.Error()))
			}
			return
		}

		env, err := Decode(message)
		if err != nil {
			c.logger.Warn("dropping malformed message", slog.String("error", err.Error()))
			continue
		}
		c.handler.Message(c, env)
	}
}

// handlePong extends the read deadline and derives the round trip from the
// timestamp carried in the ping payload
func (c *Conn) handlePong(appData string) error {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	if sent, err := strconv.ParseInt(appData, 10, 64); err == nil {
		if sample := time.Since(time.Unix(0, sent)); sample >= 0 {
			c.rtt.Store(int64(smoothRTT(time.Duration(c.rtt.Load()), sample)))
		}
	}
	return nil
}

// smoothRTT folds a sample into the running estimate with a 1/8 weight
func smoothRTT(current, sample time.Duration) time.Duration {
	if current == 0 {
		return sample
	}
	return current + (sample-current)/8
}

// writePump pumps queued messages to the websocket connection.
//
// There is at most one writer on a connection; all writes happen here.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write failed", slog.String("error", err.Error()))
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			stamp := strconv.AppendInt(nil, time.Now().UnixNano(), 10)
			if err := c.ws.WriteMessage(websocket.PingMessage, stamp); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
