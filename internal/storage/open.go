// Package storage picks and opens the configured repository backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/learnloop/internal/config"
	"github.com/sakif/learnloop/internal/repository"
	"github.com/sakif/learnloop/internal/repository/mongodb"
	"github.com/sakif/learnloop/internal/repository/sqlite"
)

// Open returns the store named by cfg.StoreDriver.
//
// For mongo it also tries to create the unique indexes. That failure is
// only logged: the session reconnects lazily on the next call.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		m := mongodb.New(cfg.MongoURI, cfg.MongoDB)

		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := m.EnsureIndexes(ctx); err != nil {
			logger.Warn("could not ensure mongo indexes", slog.String("error", err.Error()))
		}
		return m.Repositories(), nil

	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db.Store(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
