// Package main is the ghostview command.
//
// ghostview serves privacy-first browser tabs over HTTP and websockets. Each
// tab is backed by a server-side engine whose cookies, site storage, caches
// and history can be erased on demand and are swept from disk when the tab
// is destroyed.
//
// Usage:
//
//	# Serve the API on :8000
//	ghostview serve
//
//	# Debug logging, different port
//	ghostview serve --dev --port 9000
//
//	# Remove engine data and cache directories left on disk
//	ghostview purge
//
// Configuration comes from environment variables (see
// internal/infrastructure/config); flags override them.
//
// Signals:
//   - SIGINT, SIGTERM: save open tabs and shut down gracefully
package main
