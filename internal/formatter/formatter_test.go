package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/cache"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
	"github.com/kyleking/ae-columns/internal/storage"
)

var provider = schema.AnalyticsEngine(3, 2, 1)

func sampleCollection() mapping.Collection {
	return mapping.Collection{}.
		Set(provider, "blob1", "country", "ISO 3166 code").
		Set(provider, "double2", "latency, ms", "")
}

func fixedFormatter() *Formatter {
	f := NewFormatter()
	f.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	return f
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatTable, "JSON": FormatJSON, " csv ": FormatCSV, "table": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestFormatMappings(t *testing.T) {
	f := NewFormatter()
	coll := sampleCollection()

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatMappings(&buf, coll, FormatTable))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "FRIENDLY NAME")
		assert.Contains(t, lines[1], "blob1")
		assert.Contains(t, lines[1], "ISO 3166 code")
		assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"), "empty description renders as dash")
	})

	t.Run("json keeps order", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatMappings(&buf, coll, FormatJSON))

		var decoded []mapping.ColumnMapping
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "blob1", decoded[0].SourceColumn)
		assert.Equal(t, schema.TypeDouble, decoded[1].ColumnType)
	})

	t.Run("csv quotes commas", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatMappings(&buf, coll, FormatCSV))

		assert.Equal(t,
			"source_column,column_type,friendly_name,description\n"+
				"blob1,blob,country,ISO 3166 code\n"+
				"double2,double,\"latency, ms\",\n",
			buf.String())
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.FormatMappings(&buf, mapping.Collection{}, FormatTable))
		assert.Equal(t, "No mappings defined.\n", buf.String())
	})
}

func TestFormatSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter().FormatSchema(&buf, provider, sampleCollection()))

	out := buf.String()
	assert.Contains(t, out, "blob (3 columns)")
	assert.Contains(t, out, "double (2 columns)")
	assert.Contains(t, out, "index (1 columns)")
	assert.Regexp(t, `blob1\s+country`, out)
	assert.Regexp(t, `blob2\s+-`, out)
	assert.Less(t, strings.Index(out, "blob"), strings.Index(out, "double"))
}

func TestFormatResult(t *testing.T) {
	result, err := analytics.DecodeResult([]byte(`{
		"meta":[{"name":"country","type":"String"},{"name":"hits","type":"UInt64"}],
		"data":[{"country":"US","hits":12},{"country":null,"hits":3}],
		"rows":2,
		"rows_before_limit_at_least":40
	}`))
	require.NoError(t, err)

	f := NewFormatter()

	var table bytes.Buffer
	require.NoError(t, f.FormatResult(&table, result, FormatTable))
	assert.Regexp(t, `country\s+hits`, table.String())
	assert.Regexp(t, `US\s+12`, table.String())
	assert.Regexp(t, `-\s+3`, table.String())
	assert.Contains(t, table.String(), "2 row(s) of at least 40")

	var csvOut bytes.Buffer
	require.NoError(t, f.FormatResult(&csvOut, result, FormatCSV))
	assert.Equal(t, "country,hits\nUS,12\n,3\n", csvOut.String())

	var jsonOut bytes.Buffer
	require.NoError(t, f.FormatResult(&jsonOut, result, FormatJSON))
	assert.Contains(t, jsonOut.String(), `"rows_before_limit_at_least": 40`)
}

func TestFormatDatasetsAndStats(t *testing.T) {
	f := fixedFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.FormatDatasets(&buf, []storage.DatasetSummary{
		{Name: "events", Mappings: 4, UpdatedAt: time.Date(2026, 5, 30, 12, 0, 0, 0, time.UTC)},
	}))
	assert.Regexp(t, `events\s+4\s+2 days ago`, buf.String())

	buf.Reset()
	require.NoError(t, f.FormatStats(&buf, &storage.Stats{
		Datasets:      1,
		TotalMappings: 4,
		TypeBreakdown: map[schema.ColumnType]int{schema.TypeDouble: 1, schema.TypeBlob: 3},
	}, 2))

	out := buf.String()
	assert.Regexp(t, `Mappings:\s+4`, out)
	assert.Less(t, strings.Index(out, "blob:"), strings.Index(out, "double:"))
	assert.Regexp(t, `Last updated:\s+never`, out)
	assert.Regexp(t, `Schema version:\s+2`, out)

	buf.Reset()
	require.NoError(t, f.FormatCacheStats(&buf, &cache.Stats{Entries: 3, Bytes: 3072}))
	assert.Regexp(t, `Entries:\s+3`, buf.String())
	assert.Regexp(t, `Size:\s+3.00 KB`, buf.String())
}

func TestHumanizeAge(t *testing.T) {
	f := fixedFormatter()
	now := f.now()

	tests := map[time.Duration]string{
		10 * time.Second:     "just now",
		time.Minute:          "1 minute ago",
		5 * time.Hour:        "5 hours ago",
		24 * time.Hour:       "1 day ago",
		65 * 24 * time.Hour:  "2 months ago",
		800 * 24 * time.Hour: "2 years ago",
	}

	for ago, want := range tests {
		assert.Equal(t, want, f.humanizeAge(now.Add(-ago)))
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 80)
	got := truncate(long)

	assert.Equal(t, maxCellWidth, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "a b", truncate("a\tb"))
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter().Dump(&buf, sampleCollection().Mappings())

	assert.Contains(t, buf.String(), "SourceColumn: (string) (len=5) \"blob1\"")
}
