package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/poolwatch/internal/core/config"
	"github.com/vietddude/poolwatch/internal/indexing/health"
	"github.com/vietddude/poolwatch/internal/infra/storage"
	"github.com/vietddude/poolwatch/internal/infra/storage/memory"
	"github.com/vietddude/poolwatch/internal/infra/storage/postgres"
	"github.com/vietddude/poolwatch/internal/infra/storage/sqlite"
)

// Storage bundles the repositories of the configured driver.
type Storage struct {
	Driver string
	Pools  storage.PoolsRepository
	Failed storage.FailedBlockRepository
	Health health.Check

	db    *postgres.DB
	close func() error
}

// OpenStorage connects to the configured database and applies migrations.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
		return &Storage{
			Driver: cfg.Driver,
			Pools:  postgres.NewPoolsRepo(db),
			Failed: postgres.NewFailedBlockRepo(db),
			Health: db.Health,
			db:     db,
			close:  db.Close,
		}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("Using SQLite storage", "path", cfg.Path)
		return &Storage{
			Driver: cfg.Driver,
			Pools:  sqlite.NewPoolsRepo(s),
			Failed: sqlite.NewFailedRepo(s),
			Health: s.Health,
			close:  s.Close,
		}, nil

	case config.DriverMemory:
		store := memory.NewMemoryStorage()
		slog.Info("Using Memory storage")
		return &Storage{
			Driver: cfg.Driver,
			Pools:  memory.NewPoolsRepo(store),
			Failed: memory.NewFailedRepo(store),
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// StartMetricsCollector reports connection pool usage when the driver has a pool.
func (s *Storage) StartMetricsCollector(ctx context.Context) {
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	if err := s.close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close %s storage", s.Driver), err)
	}
	return nil
}
