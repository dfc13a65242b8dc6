package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/database/mariadb"
	"github.com/kozaktomas/face-recognizer/internal/database/postgres"
)

// OpenBackend creates the configured store backend. The returned closer releases
// its connection pool and is nil for the file backend.
func OpenBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Backend, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFile, "":
		return database.NewFileBackend(cfg.Store.Path), nil, nil

	case config.StoreBackendPostgres:
		pool, applied, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		for _, file := range applied {
			log.Info("applied migration", zap.String("file", file))
		}
		return postgres.NewBackend(pool), pool, nil

	case config.StoreBackendMariaDB:
		pool, err := mariadb.NewPool(ctx, cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return mariadb.NewBackend(pool), pool, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
