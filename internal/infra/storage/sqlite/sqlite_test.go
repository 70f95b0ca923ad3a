package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/vietddude/poolwatch/internal/infra/storage/storagetest"
)

func setupTestDB(t *testing.T) *Storage {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPoolsRepo(t *testing.T) {
	storagetest.RunPoolsRepository(t, NewPoolsRepo(setupTestDB(t)))
}

func TestFailedRepo(t *testing.T) {
	storagetest.RunFailedBlockRepository(t, NewFailedRepo(setupTestDB(t)))
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "poolwatch.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := NewPoolsRepo(s).DeleteStatsOlderThan(t.Context(), 0); err != nil {
		t.Fatalf("query on fresh db failed: %v", err)
	}
}
