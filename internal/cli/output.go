package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case ConnectionList:
		o.printConnections(v)
	case Player:
		o.printPlayer(v)
	case PlayerList:
		o.printPlayers(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type (matches API)
type HealthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Tick        uint64 `json:"tick"`
}

// Connection response type
type Connection struct {
	Handle     string   `json:"handle"`
	NetworkID  int32    `json:"network_id"`
	InGame     bool     `json:"in_game"`
	RemoteAddr string   `json:"remote_addr"`
	Players    []string `json:"players"`
}

// ConnectionList response type
type ConnectionList struct {
	Connections []Connection `json:"connections"`
}

// Position response type
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player response type
type Player struct {
	ID       string   `json:"id"`
	Owner    int32    `json:"owner"`
	Template string   `json:"template"`
	Tags     []string `json:"tags"`
	Position Position `json:"position"`
	Color    string   `json:"color"`
}

// PlayerList response type
type PlayerList struct {
	Players []Player `json:"players"`
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Connections: %d\n", h.Connections)
	fmt.Fprintf(o.w, "Tick: %d\n", h.Tick)
}

func (o *Output) printConnections(l ConnectionList) {
	fmt.Fprintf(o.w, "Connections (%d):\n", len(l.Connections))
	for _, c := range l.Connections {
		state := "connecting"
		if c.InGame {
			state = "in game"
		}
		fmt.Fprintf(o.w, "  - #%d %s (%s) - %s", c.NetworkID, c.RemoteAddr, c.Handle, state)
		if len(c.Players) > 0 {
			fmt.Fprintf(o.w, " [%s]", strings.Join(c.Players, ", "))
		}
		fmt.Fprintln(o.w)
	}
}

func (o *Output) printPlayer(p Player) {
	fmt.Fprintf(o.w, "Player: %s\n", p.ID)
	fmt.Fprintf(o.w, "Owner: #%d\n", p.Owner)
	fmt.Fprintf(o.w, "Template: %s (%s)\n", p.Template, strings.Join(p.Tags, ", "))
	fmt.Fprintf(o.w, "Position: %.2f, %.2f, %.2f\n", p.Position.X, p.Position.Y, p.Position.Z)
	fmt.Fprintf(o.w, "Color: %s\n", p.Color)
}

func (o *Output) printPlayers(l PlayerList) {
	fmt.Fprintf(o.w, "Players (%d):\n", len(l.Players))
	for _, p := range l.Players {
		fmt.Fprintf(o.w, "  - %s owner #%d at (%.2f, %.2f, %.2f) %s\n",
			p.ID, p.Owner, p.Position.X, p.Position.Y, p.Position.Z, p.Color)
	}
}
