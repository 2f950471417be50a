// Package main is the entry point for the Moonlit streaming session server.
//
// The server drives one game-streaming session at a time against a
// GameStream host: it launches the app on the host, brings up the local
// transport and tears both down again on request.
//
// The server provides:
//   - REST API for the session, host applications and settings
//   - WebSocket stream of session events
//   - Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - A TOML or YAML settings file for stream parameters, reloaded on change
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -settings /etc/moonlit/moonlit.toml -transport helper
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; an active session is stopped and
//     its app quit on the host
package main
