package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration, read once at startup.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SandboxConfig holds execution engine configuration.
type SandboxConfig struct {
	DefaultTimeoutMs     int    `envconfig:"DEFAULT_TIMEOUT_MS" default:"5000"`
	MaxTimeoutMs         int    `envconfig:"MAX_TIMEOUT_MS" default:"300000"`
	MemoryLimitMB        int64  `envconfig:"SANDBOX_MEMORY_MB" default:"128"`
	PoolCapacity         int    `envconfig:"POOL_CAPACITY" default:"5"`
	PoolRecycleThreshold int    `envconfig:"POOL_RECYCLE_THRESHOLD" default:"100"`
	WorkerBin            string `envconfig:"WORKER_BIN" default:""`
	ScriptFetchTimeoutMs int    `envconfig:"SCRIPT_FETCH_TIMEOUT_MS" default:"10000"`
	ScriptMaxBytes       int64  `envconfig:"SCRIPT_MAX_BYTES" default:"1048576"`
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
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
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
			Port: "8000",
			Host: "0.0.0.0",
		},
		Sandbox: SandboxConfig{
			DefaultTimeoutMs:     5000,
			MaxTimeoutMs:         300000,
			MemoryLimitMB:        128,
			PoolCapacity:         5,
			PoolRecycleThreshold: 100,
			ScriptFetchTimeoutMs: 10000,
			ScriptMaxBytes:       1 << 20,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
