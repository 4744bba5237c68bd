package cli

import (
	"os"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	ConfigPath string
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  getEnvOrDefault("CUBEGAME_SERVER", "http://localhost:7979"),
		ConfigPath: os.Getenv("CUBEGAME_CONFIG"),
		Output:     "text",
		Verbose:    false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
