package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	// Stream config
	assert.Equal(t, "moonlit.toml", cfg.Stream.SettingsPath)
	assert.Zero(t, cfg.Stream.HostCallTimeout)
	assert.Equal(t, 256, cfg.Stream.EventBuffer)

	// Host config
	assert.Equal(t, 47989, cfg.Host.Port)
	assert.Equal(t, 10*time.Second, cfg.Host.Timeout)

	// Transport and input
	assert.Equal(t, "null", cfg.Transport.Driver)
	assert.Equal(t, -1, cfg.Input.Gamepads)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"SETTINGS_PATH":      "/etc/moonlit/settings.yaml",
		"HOST_CALL_TIMEOUT":  "15s",
		"EVENT_BUFFER":       "32",
		"HOST_PORT":          "47984",
		"HOST_TIMEOUT":       "3s",
		"TRANSPORT":          "helper",
		"HELPER_PATH":        "/usr/bin/moonlight",
		"GAMEPADS":           "2",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
		"RATE_LIMIT_RPS":     "500",
		"RATE_LIMIT_BURST":   "1000",
		"RATE_LIMIT_ENABLED": "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/etc/moonlit/settings.yaml", cfg.Stream.SettingsPath)
	assert.Equal(t, 15*time.Second, cfg.Stream.HostCallTimeout)
	assert.Equal(t, 32, cfg.Stream.EventBuffer)
	assert.Equal(t, 47984, cfg.Host.Port)
	assert.Equal(t, 3*time.Second, cfg.Host.Timeout)
	assert.Equal(t, "helper", cfg.Transport.Driver)
	assert.Equal(t, "/usr/bin/moonlight", cfg.Transport.HelperPath)
	assert.Equal(t, 2, cfg.Input.Gamepads)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Overridden
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, 47989, cfg.Host.Port)
	assert.Equal(t, "null", cfg.Transport.Driver)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable duration", "HOST_TIMEOUT", "soon"},
		{"unknown transport", "TRANSPORT", "carrier-pigeon"},
		{"port out of range", "HOST_PORT", "70000"},
		{"empty event buffer", "EVENT_BUFFER", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{"default values", "", "", "8000", "0.0.0.0"},
		{"custom port", "9000", "", "9000", "0.0.0.0"},
		{"custom host", "", "localhost", "8000", "localhost"},
		{"custom port and host", "3000", "127.0.0.1", "3000", "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment; t.Setenv restores the originals
			t.Setenv("PORT", "")
			t.Setenv("HOST", "")
			os.Unsetenv("PORT")
			os.Unsetenv("HOST")

			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
