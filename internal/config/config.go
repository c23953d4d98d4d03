// Package config loads the service configuration from defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WATCHES"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Store           StoreConfig   `mapstructure:"store"`
	Cache           CacheConfig   `mapstructure:"cache"`
	GraphQL         GraphQLConfig `mapstructure:"graphql"`
	Log             LogConfig     `mapstructure:"log"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	DatabaseURL string `mapstructure:"database_url"`
	Index       string `mapstructure:"index"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
}

type GraphQLConfig struct {
	Playground bool `mapstructure:"playground"`
}

type LogConfig struct {
	Level           string `mapstructure:"level"`
	ErrorSampleRate int    `mapstructure:"error_sample_rate"`
	OTELEnabled     bool   `mapstructure:"otel_enabled"`
	ServiceName     string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("shutdown_timeout", 30*time.Second)

	v.SetDefault("store.backend", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.index", "watch-v1")

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("cache.key_prefix", "watches:search:")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("graphql.playground", true)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.error_sample_rate", 1)
	v.SetDefault("log.otel_enabled", false)
	v.SetDefault("log.service_name", "watches-api")
}

// bindLegacyEnv accepts the unprefixed variables used by existing
// deployments. Prefixed variables win when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"port":                  "PORT",
		"store.database_url":    "DATABASE_URL",
		"log.level":             "LOG_LEVEL",
		"log.error_sample_rate": "ERROR_SAMPLE_RATE",
		"log.otel_enabled":      "OTEL_ENABLED",
		"log.service_name":      "OTEL_SERVICE_NAME",
	}
	for key, env := range legacy {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// without an explicit backend a database URL selects postgres
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
		if cfg.Store.DatabaseURL != "" {
			cfg.Store.Backend = BackendPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend names and the settings they require.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store backend %q requires a database URL", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q (use: %s, %s)", c.Store.Backend, BackendMemory, BackendPostgres)
	}
	if c.Store.Index == "" {
		return fmt.Errorf("store index cannot be empty")
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend %q requires a redis address", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unknown cache backend %q (use: %s, %s, %s)", c.Cache.Backend, CacheNone, CacheMemory, CacheRedis)
	}

	return nil
}
