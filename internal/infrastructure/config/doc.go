// Package config provides 12-factor configuration management for the
// Moonlit streaming service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Stream: settings file, host call timeout, event buffer
//   - Host: GameStream host client (port, timeout, retries, rate, breaker)
//   - Transport: connection driver selection
//   - Input: gamepad count override and joystick device glob
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - SETTINGS_PATH, SETTINGS_WATCH, HOST_CALL_TIMEOUT, EVENT_BUFFER
//   - HOST_PORT, HOST_TIMEOUT, HOST_RETRIES, HOST_RPS, HOST_TRIP_AFTER
//   - TRANSPORT, HELPER_PATH
//   - GAMEPADS, JOYDEV_GLOB
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
