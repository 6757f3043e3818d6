package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/namelens/draftprune/internal/errors"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	return v
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := LoadFrom(ctx, newViper(t))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
		assert.Equal(t, PlaceholderAPIKey, cfg.API.Key)
		assert.True(t, cfg.UsesPlaceholderKey())
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, 10, cfg.BatchSize)
		assert.Equal(t, 400, cfg.RateLimit.MaxCalls)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, "draftprune:ratelimit", cfg.Redis.Key)
		assert.False(t, cfg.Journal.Enabled)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("draftprune"), "draftprune.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "info", cfg.Logging.Level)

		require.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("DRAFTPRUNE_API_KEY", "env-key")
		t.Setenv("DRAFTPRUNE_RATE_LIMIT_WINDOW", "30s")
		t.Setenv("DRAFTPRUNE_BATCH_SIZE", "25")

		v := newViper(t)
		BindEnv(v)

		cfg, err := LoadFrom(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.API.Key)
		assert.False(t, cfg.UsesPlaceholderKey())
		assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
		assert.Equal(t, 25, cfg.BatchSize)
	})

	t.Run("RuntimeOverridesWin", func(t *testing.T) {
		t.Setenv("DRAFTPRUNE_BATCH_SIZE", "25")

		v := newViper(t)
		BindEnv(v)

		cfg, err := LoadFrom(ctx, v, map[string]any{
			"batch_size":         "5",
			"rate_limit.backend": "REDIS",
			"redis.addr":         "cache:6380",
		})
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.BatchSize)
		assert.Equal(t, BackendRedis, cfg.RateLimit.Backend)
		assert.Equal(t, "cache:6380", cfg.Redis.Addr)
		assert.Equal(t, DefaultRedisKey, cfg.Redis.Key)
	})

	t.Run("NilViperUsesDefaults", func(t *testing.T) {
		cfg, err := LoadFrom(ctx, nil, map[string]any{"batch_size": 3, "rate_limit.max_calls": 2})
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.BatchSize)
		assert.Equal(t, 2, cfg.RateLimit.MaxCalls)
		assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	cases := map[string]map[string]any{
		"ZeroBatchSize":   {"batch_size": 0},
		"NegativeCeiling": {"rate_limit.max_calls": -1},
		"NegativeWindow":  {"rate_limit.window": "-1s"},
		"UnknownBackend":  {"rate_limit.backend": "memcached"},
		"NonNumericBatch": {"batch_size": "ten"},
	}

	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(ctx, newViper(t), overrides)
			require.Error(t, err)
		})
	}

	_, err := LoadFrom(ctx, newViper(t), map[string]any{"batch_size": 0})
	require.True(t, apperrors.IsCode(err, "CONFIG_INVALID"))
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.Equal(t, filepath.Join(gfconfig.GetAppConfigDir("draftprune"), "config.yaml"), DefaultConfigPath())
	require.Equal(t, "draftprune.db", filepath.Base(DefaultStorePath()))
}

func TestSetPath(t *testing.T) {
	settings := map[string]any{"api": map[string]any{"key": "a"}}
	setPath(settings, "api.base_url", "http://x")
	setPath(settings, "batch_size", 4)

	api := settings["api"].(map[string]any)
	require.Equal(t, "a", api["key"])
	require.Equal(t, "http://x", api["base_url"])
	require.Equal(t, 4, settings["batch_size"])
}

func TestMergeSettings(t *testing.T) {
	dst := map[string]any{"api": map[string]any{"key": "a", "base_url": "http://x"}, "batch_size": 10}
	mergeSettings(dst, map[string]any{"api": map[string]any{"key": "b"}, "redis": map[string]any{"db": 2}})

	api := dst["api"].(map[string]any)
	require.Equal(t, "b", api["key"])
	require.Equal(t, "http://x", api["base_url"])
	require.Equal(t, 10, dst["batch_size"])
	require.Equal(t, 2, dst["redis"].(map[string]any)["db"])
}
