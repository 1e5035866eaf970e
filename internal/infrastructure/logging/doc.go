// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Subsystems take a *zap.Logger obtained from Component so every line carries
// the subsystem name (engine, webview, cleanup, server).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	cleanupLog := logger.Component("cleanup")
package logging
