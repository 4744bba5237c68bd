package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/cubegame/internal/api"
	"github.com/mcoot/cubegame/internal/client"
	"github.com/mcoot/cubegame/internal/server"
	"github.com/mcoot/cubegame/internal/session"
	redisstorage "github.com/mcoot/cubegame/internal/storage/redis"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Environment variables read by ApplyEnv
const (
	EnvStorage     = "CUBEGAME_STORAGE"
	EnvRedisURL    = "REDIS_URL"
	EnvPort        = "CUBEGAME_PORT"
	EnvAddress     = "CUBEGAME_ADDRESS"
	EnvAutoConnect = "CUBEGAME_AUTOCONNECT"
	EnvPlayMode    = "CUBEGAME_PLAY_MODE"
	EnvLogLevel    = "CUBEGAME_LOG_LEVEL"
)

// Config is the full application configuration
type Config struct {
	LogLevel string           `yaml:"log_level"`
	Storage  StorageConfig    `yaml:"storage"`
	Session  session.Config   `yaml:"session"`
	Server   server.Config    `yaml:"server"`
	Client   client.Config    `yaml:"client"`
	HTTP     api.ServerConfig `yaml:"http"`
	// AllowedOrigins for the HTTP API; empty allows any origin
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects the simulation store backend
type StorageConfig struct {
	Type  string              `yaml:"type"`
	Redis redisstorage.Config `yaml:"redis"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Type:  StorageMemory,
			Redis: redisstorage.DefaultConfig(),
		},
		Session: session.DefaultConfig(),
		Server:  server.DefaultConfig(),
		Client:  client.DefaultConfig(),
		HTTP:    api.DefaultServerConfig(),
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.LoadYAML(f); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadYAML decodes YAML over the current values. Absent keys keep their value.
func (c *Config) LoadYAML(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides values from the environment
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvStorage); v != "" {
		c.Storage.Type = strings.ToLower(v)
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Storage.Redis.URL = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Session.Port = port
	}
	if v := getenv(EnvAddress); v != "" {
		c.Session.Address = v
	}
	if v := getenv(EnvAutoConnect); v != "" {
		auto, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAutoConnect, err)
		}
		c.Session.AutoConnect = auto
	}
	if v := getenv(EnvPlayMode); v != "" {
		mode, err := session.ParsePlayMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPlayMode, err)
		}
		c.Session.PlayMode = mode
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks values that would otherwise fail later and less clearly
func (c Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.URL == "" {
			return fmt.Errorf("%s required when storage type is redis", EnvRedisURL)
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be %q or %q", c.Storage.Type, StorageMemory, StorageRedis)
	}
	if c.Session.Port <= 0 || c.Session.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Session.Port)
	}
	if _, err := session.ParsePlayMode(string(c.Session.PlayMode)); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Server.TickRate < 0 {
		return fmt.Errorf("invalid server tick rate %d", c.Server.TickRate)
	}
	if err := c.Server.Transport.Validate(); err != nil {
		return fmt.Errorf("server transport: %w", err)
	}
	if c.Client.TickRate < 0 {
		return fmt.Errorf("invalid client tick rate %d", c.Client.TickRate)
	}
	if c.Client.StatusRefreshTicks < 0 {
		return fmt.Errorf("invalid status refresh ticks %d", c.Client.StatusRefreshTicks)
	}
	if err := c.Client.Transport.Validate(); err != nil {
		return fmt.Errorf("client transport: %w", err)
	}
	return nil
}

// Level parses the configured log level
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
