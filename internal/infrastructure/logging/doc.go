// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a *zap.Logger; use Component to derive one tagged with
// the component name.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	logger.Info("Server starting", zap.String("port", "8000"))
//	streamLog := logger.Component("streaming")
package logging
