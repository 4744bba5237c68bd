package session

import (
	"fmt"
	"strings"
)

// PlayMode says which worlds a process is allowed to create
type PlayMode string

const (
	PlayModeClient          PlayMode = "client"
	PlayModeServer          PlayMode = "server"
	PlayModeClientAndServer PlayMode = "client_and_server"
)

// ParsePlayMode accepts the mode names case-insensitively
func ParsePlayMode(s string) (PlayMode, error) {
	switch m := PlayMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PlayModeClient, PlayModeServer, PlayModeClientAndServer:
		return m, nil
	default:
		return "", fmt.Errorf("unknown play mode %q", s)
	}
}

const (
	// DefaultPort is the port hosts listen on and clients dial
	DefaultPort = 7979
	// DefaultAddress is the server address clients dial
	DefaultAddress = "127.0.0.1"
)

// Config holds session settings
type Config struct {
	Port        int      `yaml:"port"`
	Address     string   `yaml:"address"`
	AutoConnect bool     `yaml:"auto_connect"`
	PlayMode    PlayMode `yaml:"play_mode"`
}

// DefaultConfig waits for an explicit host or join command
func DefaultConfig() Config {
	return Config{
		Port:     DefaultPort,
		Address:  DefaultAddress,
		PlayMode: PlayModeClientAndServer,
	}
}
