package cmd

import (
	"path/filepath"
	"testing"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/storage"
	"github.com/kyleking/ae-columns/internal/testutil"
)

// testConfig returns defaults pointed at temp dirs with the small test schema
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Dataset = testutil.TestDataset
	cfg.Database.Path = filepath.Join(dir, "mappings.duckdb")
	cfg.Cache.Directory = filepath.Join(dir, "cache")
	cfg.Schema = config.SchemaConfig{
		Blobs:   testutil.TestBlobs,
		Doubles: testutil.TestDoubles,
		Indexes: testutil.TestIndexes,
	}
	cfg.Analytics.AccountID = testutil.TestAccountID
	cfg.Analytics.APIToken = testutil.TestAPIToken

	return cfg
}

func seededRepo(t *testing.T, opts ...testutil.MappingOption) *storage.DuckDBRepository {
	t.Helper()

	return storage.NewTestDBWithMappings(t, testutil.TestDataset, testutil.NewCollection(testutil.TestProvider(), opts...))
}

func loadMappings(t *testing.T, repo storage.Repository) mapping.Collection {
	t.Helper()

	coll, err := repo.LoadMappings(testutil.Context(t), testutil.TestDataset)
	if err != nil {
		t.Fatalf("failed to load mappings: %v", err)
	}

	return coll
}
