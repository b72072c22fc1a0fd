package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsEngineLayout(t *testing.T) {
	p := DefaultAnalyticsEngine()

	assert.Equal(t, []ColumnType{TypeBlob, TypeDouble, TypeIndex}, p.Categories())

	blobs := p.ColumnsByCategory(TypeBlob)
	require.Len(t, blobs, 20)
	assert.Equal(t, "blob1", blobs[0])
	assert.Equal(t, "blob20", blobs[19])

	assert.Len(t, p.ColumnsByCategory(TypeDouble), 20)
	assert.Equal(t, []string{"index1"}, p.ColumnsByCategory(TypeIndex))
}

func TestLookupType(t *testing.T) {
	p := AnalyticsEngine(2, 1, 1)

	tests := []struct {
		column   string
		expected ColumnType
		known    bool
	}{
		{"blob1", TypeBlob, true},
		{"blob2", TypeBlob, true},
		{"blob3", "", false},
		{"double1", TypeDouble, true},
		{"index1", TypeIndex, true},
		{"timestamp", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, ok := p.LookupType(tt.column)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestColumnsByCategoryReturnsCopy(t *testing.T) {
	p := AnalyticsEngine(3, 0, 0)

	cols := p.ColumnsByCategory(TypeBlob)
	cols[0] = "mutated"

	assert.Equal(t, "blob1", p.ColumnsByCategory(TypeBlob)[0])
	assert.Empty(t, p.ColumnsByCategory(TypeDouble))
}

func TestNewStaticDuplicateColumns(t *testing.T) {
	p := NewStatic(map[ColumnType][]string{
		TypeBlob:   {"a", "b", "c"},
		TypeDouble: {"c", "d"},
	})

	got, ok := p.LookupType("c")
	require.True(t, ok)
	assert.Equal(t, TypeBlob, got)
	assert.Equal(t, []string{"d"}, p.ColumnsByCategory(TypeDouble))
	assert.Equal(t, []ColumnType{TypeBlob, TypeDouble}, p.Categories())
}

func TestParseColumnType(t *testing.T) {
	for _, s := range []string{"blob", "double", "index"} {
		got, err := ParseColumnType(s)
		require.NoError(t, err)
		assert.True(t, got.Valid())
	}

	_, err := ParseColumnType("string")
	assert.Error(t, err)
}
