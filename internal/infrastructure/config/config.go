package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Stream    StreamConfig
	Host      HostConfig
	Transport TransportConfig
	Input     InputConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// CORSOrigins is a comma-separated list; "*" allows any origin
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// StreamConfig holds session manager configuration.
type StreamConfig struct {
	SettingsPath    string        `envconfig:"SETTINGS_PATH" default:"moonlit.toml"`
	WatchSettings   bool          `envconfig:"SETTINGS_WATCH" default:"true"`
	HostCallTimeout time.Duration `envconfig:"HOST_CALL_TIMEOUT" default:"0s"`
	EventBuffer     int           `envconfig:"EVENT_BUFFER" default:"256"`
}

// HostConfig holds GameStream host client configuration.
type HostConfig struct {
	Port      int           `envconfig:"HOST_PORT" default:"47989"`
	Timeout   time.Duration `envconfig:"HOST_TIMEOUT" default:"10s"`
	Retries   int           `envconfig:"HOST_RETRIES" default:"2"`
	RPS       int           `envconfig:"HOST_RPS" default:"10"`
	TripAfter int           `envconfig:"HOST_TRIP_AFTER" default:"3"`
}

// TransportConfig selects the connection driver.
type TransportConfig struct {
	Driver     string `envconfig:"TRANSPORT" default:"null"`
	HelperPath string `envconfig:"HELPER_PATH" default:"moonlight"`
}

// InputConfig holds controller detection settings.
type InputConfig struct {
	Gamepads   int    `envconfig:"GAMEPADS" default:"-1"`
	JoydevGlob string `envconfig:"JOYDEV_GLOB" default:"/dev/input/js*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Transport.Driver {
	case "null", "helper":
	default:
		return fmt.Errorf("unknown transport driver %q", c.Transport.Driver)
	}
	if c.Host.Port <= 0 || c.Host.Port > 65535 {
		return fmt.Errorf("invalid host port %d", c.Host.Port)
	}
	if c.Stream.EventBuffer <= 0 {
		return fmt.Errorf("event buffer must be positive, got %d", c.Stream.EventBuffer)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Stream: StreamConfig{
			SettingsPath:  "moonlit.toml",
			WatchSettings: true,
			EventBuffer:   256,
		},
		Host: HostConfig{
			Port:      47989,
			Timeout:   10 * time.Second,
			Retries:   2,
			RPS:       10,
			TripAfter: 3,
		},
		Transport: TransportConfig{
			Driver:     "null",
			HelperPath: "moonlight",
		},
		Input: InputConfig{
			Gamepads:   -1,
			JoydevGlob: "/dev/input/js*",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
