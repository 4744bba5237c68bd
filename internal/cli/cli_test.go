package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/cubegame/internal/services/movement"
	"github.com/mcoot/cubegame/internal/session"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    parsedLine
		wantErr bool
	}{
		{name: "blank", input: "   ", want: parsedLine{action: actionNone}},
		{name: "host default port", input: "host", want: parsedLine{action: actionSession, command: session.Command{Kind: session.CommandHost}}},
		{name: "host with port", input: "HOST 8000", want: parsedLine{action: actionSession, command: session.Command{Kind: session.CommandHost, Port: 8000}}},
		{name: "host bad port", input: "host eighty", wantErr: true},
		{name: "host too many args", input: "host 1 2", wantErr: true},
		{name: "join defaults", input: "join", want: parsedLine{action: actionSession, command: session.Command{Kind: session.CommandJoin}}},
		{name: "join address", input: "join 10.0.0.5", want: parsedLine{action: actionSession, command: session.Command{Kind: session.CommandJoin, Address: "10.0.0.5"}}},
		{name: "join address and port", input: "join 10.0.0.5 9000", want: parsedLine{action: actionSession, command: session.Command{Kind: session.CommandJoin, Address: "10.0.0.5", Port: 9000}}},
		{name: "join bad port", input: "join 10.0.0.5 x", wantErr: true},
		{name: "keys", input: "keys w d", want: parsedLine{action: actionKeys, keys: movement.Keys{Up: true, Right: true}}},
		{name: "keys released", input: "keys", want: parsedLine{action: actionKeys}},
		{name: "status", input: "status", want: parsedLine{action: actionStatus}},
		{name: "quit", input: "quit", want: parsedLine{action: actionQuit}},
		{name: "exit", input: "exit", want: parsedLine{action: actionQuit}},
		{name: "unknown", input: "dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputText(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput("text", &buf)

	out.Print(ConnectionList{Connections: []Connection{
		{Handle: "conn-1", NetworkID: 3, InGame: true, RemoteAddr: "10.0.0.2:5000", Players: []string{"player-1"}},
		{Handle: "conn-2", NetworkID: 4, RemoteAddr: "10.0.0.3:5000"},
	}})

	assert.Equal(t, "Connections (2):\n"+
		"  - #3 10.0.0.2:5000 (conn-1) - in game [player-1]\n"+
		"  - #4 10.0.0.3:5000 (conn-2) - connecting\n", buf.String())
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput("json", &buf)

	out.Print(Player{ID: "player-1", Owner: 2, Color: "#00ff00"})

	var p Player
	require.NoError(t, json.Unmarshal(buf.Bytes(), &p))
	assert.Equal(t, "player-1", p.ID)
	assert.Equal(t, int32(2), p.Owner)

	buf.Reset()
	out.PrintMessage("127.0.0.1 | Connected")
	assert.JSONEq(t, `{"message":"127.0.0.1 | Connected"}`, buf.String())
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"PLAYER_NOT_FOUND","message":"Player not found"}}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL+"/").Get("/api/v1/players/missing", nil)
	require.Error(t, err)
	assert.Equal(t, "Player not found (PLAYER_NOT_FOUND)", err.Error())
}

func TestClientDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"status":"ok","connections":2,"tick":40}`))
	}))
	defer srv.Close()

	var result HealthResult
	require.NoError(t, NewClient(srv.URL).Get("/api/v1/health", &result))
	assert.Equal(t, HealthResult{Status: "ok", Connections: 2, Tick: 40}, result)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "host", "join", "play", "health", "connections", "players"} {
		assert.Contains(t, names, want)
	}
}
