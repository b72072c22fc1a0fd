package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kyleking/ae-columns/internal/mapping"
)

// NewTestDB creates an initialized database in a temp dir, closed on test cleanup
func NewTestDB(t *testing.T) *DuckDBRepository {
	t.Helper()

	repo, err := NewDuckDBRepository(filepath.Join(t.TempDir(), "test.duckdb"))
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close test repository: %v", err)
		}
	})

	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize test repository: %v", err)
	}

	return repo
}

// NewTestDBWithMappings creates a test database with coll stored under dataset
func NewTestDBWithMappings(t *testing.T, dataset string, coll mapping.Collection) *DuckDBRepository {
	t.Helper()

	repo := NewTestDB(t)

	if err := repo.SaveMappings(context.Background(), dataset, coll); err != nil {
		t.Fatalf("failed to seed mappings for %s: %v", dataset, err)
	}

	return repo
}
