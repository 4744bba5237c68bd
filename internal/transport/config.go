package transport

import (
	"fmt"
	"time"
)

// Config holds websocket connection settings
type Config struct {
	// WriteWait is the time allowed to write a message to the peer
	WriteWait time.Duration `yaml:"write_wait"`
	// PongWait is the time allowed to read the next pong from the peer
	PongWait time.Duration `yaml:"pong_wait"`
	// PingPeriod is how often pings are sent. Must be less than PongWait.
	// Each pong also updates the round trip estimate.
	PingPeriod time.Duration `yaml:"ping_period"`
	// MaxMessageSize is the largest message accepted from the peer
	MaxMessageSize int64 `yaml:"max_message_size"`
	// SendBuffer is the number of outbound messages queued per connection
	SendBuffer int `yaml:"send_buffer"`
}

// DefaultConfig returns sensible defaults for websocket connections
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       10 * time.Second,
		PingPeriod:     time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Validate rejects settings that would stall or crash a connection
func (c Config) Validate() error {
	switch {
	case c.WriteWait <= 0:
		return fmt.Errorf("write_wait must be positive, got %s", c.WriteWait)
	case c.PongWait <= 0:
		return fmt.Errorf("pong_wait must be positive, got %s", c.PongWait)
	case c.PingPeriod <= 0:
		return fmt.Errorf("ping_period must be positive, got %s", c.PingPeriod)
	case c.PingPeriod >= c.PongWait:
		return fmt.Errorf("ping_period %s must be less than pong_wait %s", c.PingPeriod, c.PongWait)
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize)
	case c.SendBuffer <= 0:
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}
