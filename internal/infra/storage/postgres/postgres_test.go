package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/vietddude/poolwatch/internal/infra/storage/storagetest"
)

// Runs against a live database: POOLWATCH_TEST_DATABASE_URL=postgres://...
func setupTestDB(t *testing.T) *DB {
	url := os.Getenv("POOLWATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("POOLWATCH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	clean := func() {
		_, _ = db.ExecContext(ctx, `TRUNCATE liquidity_pool, pool_stats_trading_volume, failed_blocks`)
	}
	clean()
	t.Cleanup(func() {
		clean()
		_ = db.Close()
	})
	return db
}

func TestPoolsRepo(t *testing.T) {
	storagetest.RunPoolsRepository(t, NewPoolsRepo(setupTestDB(t)))
}

func TestFailedBlockRepo(t *testing.T) {
	storagetest.RunFailedBlockRepository(t, NewFailedBlockRepo(setupTestDB(t)))
}
