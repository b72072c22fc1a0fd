package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/testutil"
)

func TestRunSchema(t *testing.T) {
	repo := seededRepo(t, testutil.WithMapping("blob2", "city"))

	var buf bytes.Buffer
	require.NoError(t, runSchema(testutil.Context(t), &buf, testConfig(t), repo, ""))

	out := buf.String()
	assert.Contains(t, out, "Dataset: events")
	assert.Contains(t, out, "blob (5 columns)")
	assert.Contains(t, out, "double (3 columns)")
	assert.Contains(t, out, "index (1 columns)")
	assert.Regexp(t, `blob2\s+city`, out)
	assert.Regexp(t, `blob1\s+-`, out)
}

func TestRunSchemaCategory(t *testing.T) {
	repo := seededRepo(t, testutil.WithMapping("double2", "bytes"))

	var buf bytes.Buffer
	require.NoError(t, runSchema(testutil.Context(t), &buf, testConfig(t), repo, "double"))

	out := buf.String()
	assert.Contains(t, out, "double (3 columns)")
	assert.Regexp(t, `double2\s+bytes`, out)
	assert.NotContains(t, out, "blob")

	err := runSchema(testutil.Context(t), &buf, testConfig(t), repo, "string")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
