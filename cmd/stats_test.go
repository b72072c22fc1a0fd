package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/storage"
	"github.com/kyleking/ae-columns/internal/testutil"
)

func TestRunStats(t *testing.T) {
	repo := seededRepo(t,
		testutil.WithMapping("blob1", "country"),
		testutil.WithMapping("blob2", "city"),
		testutil.WithMapping("double1", "latency"),
	)

	var buf bytes.Buffer
	require.NoError(t, runStatsWithStorage(testutil.Context(t), &buf, repo, nil))

	out := buf.String()
	assert.Contains(t, out, "Database Statistics")
	assert.Regexp(t, `Datasets:\s+1`, out)
	assert.Regexp(t, `Mappings:\s+3`, out)
	assert.Regexp(t, `blob:\s+2`, out)
	assert.Regexp(t, `double:\s+1`, out)
	assert.Regexp(t, `Last updated:\s+just now`, out)
	assert.Regexp(t, `Schema version:\s+2`, out)
	assert.NotContains(t, out, "Result Cache")
}

func TestRunStatsWithCache(t *testing.T) {
	ctx := testutil.Context(t)
	cfg := testConfig(t)

	fc, err := openResultCache(cfg, false)
	require.NoError(t, err)
	defer fc.Close()

	require.NoError(t, fc.Set(ctx, "a", make([]byte, 2048), 0))

	var buf bytes.Buffer
	require.NoError(t, runStatsWithStorage(ctx, &buf, seededRepo(t), fc))

	out := buf.String()
	assert.Contains(t, out, "Result Cache")
	assert.Regexp(t, `Entries:\s+1`, out)
	assert.Regexp(t, `Size:\s+2.00 KB`, out)
}

// statsOnly hides the migration reporter of the wrapped repository
type statsOnly struct {
	storage.Repository
}

func TestSchemaVersion(t *testing.T) {
	ctx := testutil.Context(t)
	repo := storage.NewTestDB(t)

	assert.Equal(t, 2, schemaVersion(ctx, repo))
	assert.Equal(t, 0, schemaVersion(ctx, statsOnly{repo}))
}
