// Package config provides 12-factor configuration management for ghostview.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - Engine: Data/cache directories, user agent, fetch timeout, sandbox pool size
//   - Privacy: Content blocking default, blocklist file, download policy
//   - Storage: Where saved sessions live
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - ENGINE_DATA_DIR, ENGINE_CACHE_DIR, ENGINE_USER_AGENT, ENGINE_TIMEOUT, ENGINE_SANDBOX_POOL
//   - BLOCKING_ENABLED, BLOCKLIST_PATH, DOWNLOADS_ENABLED, DOWNLOAD_DIR
//   - SESSION_STORE_PATH
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
