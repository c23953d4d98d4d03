package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "LOG_LEVEL", "ERROR_SAMPLE_RATE", "OTEL_ENABLED", "OTEL_SERVICE_NAME",
		"WATCHES_PORT", "WATCHES_STORE_BACKEND", "WATCHES_STORE_DATABASE_URL", "WATCHES_CACHE_BACKEND",
		"WATCHES_CACHE_TTL", "WATCHES_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "watch-v1", cfg.Store.Index)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.GraphQL.Playground)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/watches")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/watches", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("WATCHES_STORE_BACKEND", "memory")
	t.Setenv("WATCHES_CACHE_BACKEND", "redis")
	t.Setenv("WATCHES_CACHE_TTL", "5s")
	t.Setenv("DATABASE_URL", "postgres://localhost/watches")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "watches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7070
store:
  index: watch-v2
graphql:
  playground: false
`), 0o600))
	t.Setenv("WATCHES_PORT", "7171")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7171, cfg.Port, "environment overrides the file")
	assert.Equal(t, "watch-v2", cfg.Store.Index)
	assert.False(t, cfg.GraphQL.Playground)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:  8080,
			Store: StoreConfig{Backend: BackendMemory, Index: "watch-v1"},
			Cache: CacheConfig{Backend: CacheNone},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }, "requires a database URL"},
		{"unknown store", func(c *Config) { c.Store.Backend = "elastic" }, "unknown store backend"},
		{"empty index", func(c *Config) { c.Store.Index = "" }, "index"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheRedis }, "redis address"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "disk" }, "unknown cache backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
