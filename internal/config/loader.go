// Package config provides centralized configuration management for draftprune.
// Settings come from viper (flags, DRAFTPRUNE_* environment, config file) and
// are decoded into a typed Config with mapstructure.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	apperrors "github.com/namelens/draftprune/internal/errors"
)

const (
	// AppName names the config and data directories and the binary.
	AppName = "draftprune"

	// EnvPrefix prefixes environment overrides, e.g. DRAFTPRUNE_API_KEY.
	EnvPrefix = "DRAFTPRUNE"

	DefaultBaseURL     = "https://api.draftable.com/v1"
	PlaceholderAPIKey  = "YOUR_DRAFTABLE_API_KEY"
	DefaultBatchSize   = 10
	DefaultMaxCalls    = 400
	DefaultWindow      = time.Minute
	DefaultAPITimeout  = 30 * time.Second
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisKey    = "draftprune:ratelimit"
	BackendMemory      = "memory"
	BackendRedis       = "redis"
	defaultStoreDriver = "libsql"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// Defaults returns the default settings keyed by config path.
func Defaults() map[string]any {
	return map[string]any{
		"api.base_url":         DefaultBaseURL,
		"api.key":              PlaceholderAPIKey,
		"api.timeout":          DefaultAPITimeout.String(),
		"batch_size":           DefaultBatchSize,
		"rate_limit.max_calls": DefaultMaxCalls,
		"rate_limit.window":    DefaultWindow.String(),
		"rate_limit.backend":   BackendMemory,
		"redis.addr":           DefaultRedisAddr,
		"redis.password":       "",
		"redis.db":             0,
		"redis.key":            DefaultRedisKey,
		"journal.enabled":      false,
		"store.driver":         defaultStoreDriver,
		"store.path":           DefaultStorePath(),
		"store.url":            "",
		"store.auth_token":     "",
		"logging.level":        "info",
	}
}

// BindEnv maps DRAFTPRUNE_<KEY> environment variables onto dotted config
// keys, e.g. DRAFTPRUNE_RATE_LIMIT_MAX_CALLS -> rate_limit.max_calls.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the global viper settings, with any runtime overrides applied
// on top, into a validated Config.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFrom(ctx, viper.GetViper(), runtimeOverrides...)
}

// LoadFrom is Load for an explicit viper instance.
func LoadFrom(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	settings := map[string]any{}
	for key, value := range Defaults() {
		setPath(settings, key, value)
	}
	if v != nil {
		mergeSettings(settings, v.AllSettings())
	}
	for _, overrides := range runtimeOverrides {
		for key, value := range overrides {
			setPath(settings, key, value)
		}
	}

	cfg, err := Decode(settings)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// Decode unmarshals nested settings into a Config and fills unset fields
// with defaults.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Validate rejects settings the run cannot start with.
func (c *Config) Validate(ctx context.Context) error {
	switch {
	case c.BatchSize <= 0:
		return invalid(ctx, "batch_size must be positive", c.BatchSize)
	case c.RateLimit.MaxCalls <= 0:
		return invalid(ctx, "rate_limit.max_calls must be positive", c.RateLimit.MaxCalls)
	case c.RateLimit.Window <= 0:
		return invalid(ctx, "rate_limit.window must be positive", c.RateLimit.Window.String())
	case c.RateLimit.Backend != BackendMemory && c.RateLimit.Backend != BackendRedis:
		return invalid(ctx, "rate_limit.backend must be memory or redis", c.RateLimit.Backend)
	case strings.TrimSpace(c.API.BaseURL) == "":
		return invalid(ctx, "api.base_url is required", "")
	}
	return nil
}

// UsesPlaceholderKey reports whether the API key was never configured.
func (c *Config) UsesPlaceholderKey() bool {
	key := strings.TrimSpace(c.API.Key)
	return key == "" || key == PlaceholderAPIKey
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.API.Key) == "" {
		cfg.API.Key = PlaceholderAPIKey
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = DefaultWindow
	}
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = BackendMemory
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if strings.TrimSpace(cfg.Redis.Key) == "" {
		cfg.Redis.Key = DefaultRedisKey
	}
	if strings.TrimSpace(cfg.Store.Driver) == "" {
		cfg.Store.Driver = defaultStoreDriver
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

func invalid(ctx context.Context, message string, value any) error {
	envelope := apperrors.NewConfigInvalidError(message)
	if runID := apperrors.RunID(ctx); runID != "" {
		envelope = envelope.WithCorrelationID(runID)
	}
	if updated, err := envelope.WithContext(map[string]interface{}{"value": value}); err == nil {
		envelope = updated
	}
	return envelope
}

// mergeSettings copies nested src values over dst.
func mergeSettings(dst, src map[string]any) {
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			existing, ok := dst[key].(map[string]any)
			if !ok {
				existing = map[string]any{}
				dst[key] = existing
			}
			mergeSettings(existing, nested)
			continue
		}
		dst[key] = value
	}
}

// setPath writes value at a dotted key, creating nested maps as needed.
func setPath(settings map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	current := settings
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
