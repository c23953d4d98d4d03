package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/liamcoop/watches/internal/config"
	"github.com/liamcoop/watches/internal/logger"
	"github.com/liamcoop/watches/store"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "watches-server",
		Short:         "Serve the watch management REST and GraphQL API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(ctx, logger.Options{
		Level:           cfg.Log.Level,
		ErrorSampleRate: cfg.Log.ErrorSampleRate,
		OTELEnabled:     cfg.Log.OTELEnabled,
		ServiceName:     cfg.Log.ServiceName,
	}); err != nil {
		logger.Warn("logger configuration problem", "error", err)
	}

	docs, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	docs, closeCache, err := withCache(ctx, cfg, docs)
	if err != nil {
		return err
	}
	defer closeCache()

	server, err := NewServer(cfg, docs, db)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	port := strconv.Itoa(cfg.Port)
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", port, "store", cfg.Store.Backend, "cache", cfg.Cache.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}

// openStore connects the configured document store. The returned db is nil
// for the memory backend.
func openStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, *sql.DB, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return store.NewPostgresStore(db, cfg.Store.Index), db, nil

	default:
		docs, err := store.NewMemoryStore()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create memory store: %w", err)
		}
		logger.Warn("using in-memory store, watches are lost on restart")
		return docs, nil, nil
	}
}

// withCache wraps docs with the configured search cache.
func withCache(ctx context.Context, cfg *config.Config, docs store.DocumentStore) (store.DocumentStore, func(), error) {
	cacheCfg := store.CacheConfig{
		TTL:       cfg.Cache.TTL,
		KeyPrefix: cfg.Cache.KeyPrefix,
	}

	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return store.NewCachedStore(docs, store.NewInMemorySearchCache(cacheCfg)), func() {}, nil

	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		cache := store.NewRedisSearchCache(client, cacheCfg, logger.Logger)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}
		return store.NewCachedStore(docs, cache), closeFn, nil

	default:
		return docs, func() {}, nil
	}
}
