// Command server runs the LearnLoop API.
//
// Startup order: configuration, logger, store (sqlite or mongo), optional
// Redis stats cache, then the HTTP server. Any failure before the server
// starts exits with status 1.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/learnloop/internal/cache"
	"github.com/sakif/learnloop/internal/config"
	"github.com/sakif/learnloop/internal/server"
	"github.com/sakif/learnloop/internal/service"
	"github.com/sakif/learnloop/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("opening store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Must stay a nil interface when Redis is off, not a typed nil.
	var statsCache service.StatsCache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		client, err := cache.Dial(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, stats cache disabled", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			statsCache = cache.NewStatsCache(client, cfg.StatsCacheTTL)
		}
	}

	srv, err := server.New(cfg, logger, store, statsCache)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		_ = store.Close()
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
