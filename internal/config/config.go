package config

import (
	"time"
)

// Config represents the complete application configuration. Values are
// layered by viper: flags over DRAFTPRUNE_* environment over the config file
// over defaults.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	BatchSize int             `mapstructure:"batch_size"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig addresses the comparisons API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig bounds outbound API calls to MaxCalls per Window.
type RateLimitConfig struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`

	// Backend is "memory" (per process) or "redis" (shared across runs).
	Backend string `mapstructure:"backend"`
}

// RedisConfig is used when the rate limit backend is redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// JournalConfig toggles recording of delete attempts in the store.
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}
