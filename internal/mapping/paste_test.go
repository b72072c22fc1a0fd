package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/schema"
)

func seeded(p schema.Provider) Collection {
	return Collection{}.
		Set(p, "x", "Latency", "p50").
		Set(p, "b", "Old City", "will be replaced").
		Set(p, "i", "Tenant", "")
}

func TestDistributeFromFirstColumn(t *testing.T) {
	p := testProvider()
	base := seeded(p)

	got, ok := Distribute(base, p, "a", "1, 2, 3")
	require.True(t, ok)

	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3", "x": "Latency", "i": "Tenant"}, names(got))
	assert.Equal(t, []string{"x", "i", "a", "b", "c"}, got.Columns(), "untouched mappings first, category mappings appended in order")

	m, _ := got.Get("b")
	assert.Empty(t, m.Description, "paste overwrites the whole mapping")
	assert.Equal(t, schema.TypeBlob, m.ColumnType)

	x, _ := got.Get("x")
	assert.Equal(t, "p50", x.Description)
}

func TestDistributeOverflowIsDiscarded(t *testing.T) {
	p := testProvider()
	base := seeded(p)

	got, ok := Distribute(base, p, "b", "1, 2, 3, 4")
	require.True(t, ok)

	assert.Equal(t, map[string]string{"b": "1", "c": "2", "x": "Latency", "i": "Tenant"}, names(got))
}

func TestDistributeClearsUnreachedCategoryColumns(t *testing.T) {
	p := testProvider()
	base := Collection{}.Set(p, "a", "Keep?", "").Set(p, "c", "Keep too?", "")

	got, ok := Distribute(base, p, "b", "only,")
	require.True(t, ok)

	assert.Equal(t, map[string]string{"b": "only"}, names(got))
}

func TestDistributeEmptyFieldsKeepTheirSlot(t *testing.T) {
	p := testProvider()

	got, ok := Distribute(Collection{}, p, "a", "first,,third")
	require.True(t, ok)

	assert.Equal(t, map[string]string{"a": "first", "c": "third"}, names(got))
}

func TestDistributeOtherCategory(t *testing.T) {
	p := testProvider()
	base := seeded(p)

	got, ok := Distribute(base, p, "x", "Requests, Bytes, Overflow")
	require.True(t, ok)

	assert.Equal(t, map[string]string{"b": "Old City", "i": "Tenant", "x": "Requests", "y": "Bytes"}, names(got))
	assert.Equal(t, []string{"b", "i", "x", "y"}, got.Columns())
}

func TestDistributeNoOps(t *testing.T) {
	p := testProvider()
	base := seeded(p)

	tests := []struct {
		name   string
		column string
		text   string
	}{
		{"no comma", "a", "hello"},
		{"empty text", "a", ""},
		{"only separators", "a", " , ,, "},
		{"unknown column", "zzz", "1, 2"},
		{"leading empty slot overflows the rest", "c", ",1,2"},
		{"debug wrapper without comma", "a", `text: "hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Distribute(base, p, tt.column, tt.text)
			assert.False(t, ok)
			assert.True(t, got.Equal(base))
		})
	}
}

func TestDistributeDebugWrappedPaste(t *testing.T) {
	p := testProvider()
	base := seeded(p)

	direct, ok := Distribute(base, p, "a", "1, 2, 3")
	require.True(t, ok)

	wrapped, ok := Distribute(base, p, "a", `text: "1, 2, 3"`)
	require.True(t, ok)

	assert.True(t, direct.Equal(wrapped))
}

func TestPasteSlots(t *testing.T) {
	tests := []struct {
		text     string
		expected []string
		ok       bool
	}{
		{"a,b", []string{"a", "b"}, true},
		{" a , b ,c ", []string{"a", "b", "c"}, true},
		{"a,,b", []string{"a", "", "b"}, true},
		{"a,", []string{"a", ""}, true},
		{`text: "x, y"`, []string{"x", "y"}, true},
		{"  text: \"x,\ny\"\n", []string{"x", "y"}, true},
		{`prefix text: "x, y"`, []string{`prefix text: "x`, `y"`}, true},
		{"single", nil, false},
		{",", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := PasteSlots(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHandlePasteCommitsOnce(t *testing.T) {
	p := testProvider()

	var commits []Collection
	store := NewStore(seeded(p), CommitterFunc(func(_ context.Context, c Collection) error {
		commits = append(commits, c)
		return nil
	}))

	handled, err := NewDistributor(p, nil).HandlePaste(context.Background(), store, PasteEvent{Column: "a", Text: "1, 2, 3"})
	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, commits, 1)
	assert.True(t, commits[0].Equal(store.Snapshot()))
	assert.Equal(t, "3", store.Snapshot().FriendlyName("c"))
}

func TestHandlePasteWithoutCommaSkipsCommit(t *testing.T) {
	p := testProvider()

	committed := false
	store := NewStore(seeded(p), CommitterFunc(func(context.Context, Collection) error {
		committed = true
		return nil
	}))
	before := store.Snapshot()

	handled, err := NewDistributor(p, nil).HandlePaste(context.Background(), store, PasteEvent{Column: "a", Text: "hello"})
	require.NoError(t, err)

	assert.False(t, handled)
	assert.False(t, committed)
	assert.True(t, before.Equal(store.Snapshot()))
}

func TestHandlePasteClipboardFallback(t *testing.T) {
	p := testProvider()

	t.Run("reads clipboard when event has no text", func(t *testing.T) {
		store := NewStore(Collection{}, nil)
		clip := ClipboardFunc(func(context.Context) (string, error) { return "Country, City", nil })

		handled, err := NewDistributor(p, clip).HandlePaste(context.Background(), store, PasteEvent{Column: "a"})
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Equal(t, map[string]string{"a": "Country", "b": "City"}, names(store.Snapshot()))
	})

	t.Run("clipboard errors are swallowed", func(t *testing.T) {
		store := NewStore(seeded(p), nil)
		before := store.Snapshot()
		clip := ClipboardFunc(func(context.Context) (string, error) { return "", errors.New("permission denied") })

		handled, err := NewDistributor(p, clip).HandlePaste(context.Background(), store, PasteEvent{Column: "a"})
		require.NoError(t, err)
		assert.False(t, handled)
		assert.True(t, before.Equal(store.Snapshot()))
	})

	t.Run("no clipboard available", func(t *testing.T) {
		store := NewStore(seeded(p), nil)

		handled, err := NewDistributor(p, nil).HandlePaste(context.Background(), store, PasteEvent{Column: "a"})
		require.NoError(t, err)
		assert.False(t, handled)
	})
}

func TestHandlePasteCommitFailureKeepsState(t *testing.T) {
	p := testProvider()
	store := NewStore(seeded(p), CommitterFunc(func(context.Context, Collection) error {
		return errors.New("disk full")
	}))
	before := store.Snapshot()

	handled, err := NewDistributor(p, nil).HandlePaste(context.Background(), store, PasteEvent{Column: "a", Text: "1,2"})
	require.Error(t, err)
	assert.False(t, handled)
	assert.True(t, before.Equal(store.Snapshot()))
}
