package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Engine    EngineConfig
	Privacy   PrivacyConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string `envconfig:"PORT" default:"8000"`
	Host         string `envconfig:"HOST" default:"0.0.0.0"`
	// AllowOrigins lists the UI origins allowed to call the API.
	AllowOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// EngineConfig holds rendering engine configuration.
type EngineConfig struct {
	DataDir     string        `envconfig:"ENGINE_DATA_DIR" default:"/tmp/ghostview/data"`
	CacheDir    string        `envconfig:"ENGINE_CACHE_DIR" default:"/tmp/ghostview/cache"`
	UserAgent   string        `envconfig:"ENGINE_USER_AGENT" default:"Mozilla/5.0 (Ghostview/1.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	Timeout     time.Duration `envconfig:"ENGINE_TIMEOUT" default:"30s"`
	SandboxPool int           `envconfig:"ENGINE_SANDBOX_POOL" default:"4"`
}

// PrivacyConfig holds content blocking and download policy.
type PrivacyConfig struct {
	BlockingEnabled  bool   `envconfig:"BLOCKING_ENABLED" default:"true"`
	BlocklistPath    string `envconfig:"BLOCKLIST_PATH"`
	DownloadsEnabled bool   `envconfig:"DOWNLOADS_ENABLED" default:"true"`
	DownloadDir      string `envconfig:"DOWNLOAD_DIR" default:"Downloads"`
}

// StorageConfig holds session persistence configuration.
type StorageConfig struct {
	SessionPath string `envconfig:"SESSION_STORE_PATH" default:"/tmp/ghostview/sessions"`
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

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8000",
			Host:         "0.0.0.0",
			AllowOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Engine: EngineConfig{
			DataDir:     "/tmp/ghostview/data",
			CacheDir:    "/tmp/ghostview/cache",
			UserAgent:   "Mozilla/5.0 (Ghostview/1.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:     30 * time.Second,
			SandboxPool: 4,
		},
		Privacy: PrivacyConfig{
			BlockingEnabled:  true,
			DownloadsEnabled: true,
			DownloadDir:      "Downloads",
		},
		Storage: StorageConfig{
			SessionPath: "/tmp/ghostview/sessions",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
