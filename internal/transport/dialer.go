package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/mcoot/cubegame/internal/dependencies/ids"
	"github.com/mcoot/cubegame/internal/model"
)

// URL builds the websocket address of a server
func URL(address string, port int) (string, error) {
	if address == "" || port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: %q:%d", model.ErrInvalidAddress, address, port)
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(address, strconv.Itoa(port)),
		Path:   ConnectPath,
	}
	return u.String(), nil
}

// Dial connects to a server and starts the connection pumps
func Dial(ctx context.Context, rawURL string, cfg Config, gen ids.Generator, handler Handler, logger *slog.Logger) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	conn := newConn(model.ConnectionHandle(gen.NewID()), ws, cfg, handler, logger)
	handler.Connected(conn)
	conn.start()
	return conn, nil
}
