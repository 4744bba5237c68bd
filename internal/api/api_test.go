package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/cubegame/internal/api/apierr"
	"github.com/mcoot/cubegame/internal/api/response"
	"github.com/mcoot/cubegame/internal/config"
	"github.com/mcoot/cubegame/internal/factory"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
	"github.com/mcoot/cubegame/internal/transport"
)

// testServer wraps the router of a test app with a seeded server store
type testServer struct {
	app     *factory.TestApp
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp(config.Default())
	return &testServer{
		app:     app,
		handler: app.Router,
		now:     app.MockClock.Now(),
	}
}

// seed stores one in-game connection owning one player
func (ts *testServer) seed(t *testing.T) {
	t.Helper()

	player := model.DefaultCubeTemplate.Instantiate("player-1", ts.now)
	player.Owner = 7
	player.Color = model.Color{R: 255, G: 0, B: 16}

	batch := storage.NewBatch().
		SaveConnection(&model.Connection{Handle: "conn-1", NetworkID: 7, InGame: true, RemoteAddr: "10.0.0.2:5000", ConnectedAt: ts.now}).
		SavePlayer(player).
		LinkOwned("conn-1", "player-1")
	require.NoError(t, ts.app.ServerStore.Apply(context.Background(), batch))
}

func (ts *testServer) request(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decode[response.Health](t, rr)
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.Connections)
	assert.Zero(t, resp.Tick)
}

func TestListPlayersEmpty(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players")
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decode[response.PlayerList](t, rr)
	assert.Empty(t, resp.Players)
	assert.Contains(t, rr.Body.String(), `"players":[]`)
}

func TestListAndGetPlayer(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rr := ts.request(http.MethodGet, "/api/v1/players")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[response.PlayerList](t, rr)
	require.Len(t, list.Players, 1)

	rr = ts.request(http.MethodGet, "/api/v1/players/player-1")
	require.Equal(t, http.StatusOK, rr.Code)
	player := decode[response.Player](t, rr)
	assert.Equal(t, "player-1", player.ID)
	assert.Equal(t, int32(7), player.Owner)
	assert.Equal(t, "#ff0010", player.Color)
	assert.Equal(t, model.DefaultCubeTemplate.Name, player.Template)
	assert.Equal(t, model.DefaultCubeTemplate.Tags.Names(), player.Tags)
}

func TestGetPlayerNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	resp := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodePlayerNotFound, resp.Error.Code)
}

func TestListAndGetConnection(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rr := ts.request(http.MethodGet, "/api/v1/connections")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[response.ConnectionList](t, rr)
	require.Len(t, list.Connections, 1)
	assert.Equal(t, []string{"player-1"}, list.Connections[0].Players)

	rr = ts.request(http.MethodGet, "/api/v1/connections/conn-1")
	require.Equal(t, http.StatusOK, rr.Code)
	conn := decode[response.Connection](t, rr)
	assert.Equal(t, int32(7), conn.NetworkID)
	assert.True(t, conn.InGame)
	assert.Equal(t, "10.0.0.2:5000", conn.RemoteAddr)
}

func TestGetConnectionNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/connections/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	resp := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeConnectionNotFound, resp.Error.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/players", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestConnectAssignsNetworkID(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	defer ts.app.Server.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + transport.ConnectPath
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	env, err := transport.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, transport.TypeNetworkID, env.Type)

	var payload transport.NetworkIDPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Positive(t, int32(payload.NetworkID))

	assert.Equal(t, 1, ts.app.Server.Connections())
}
