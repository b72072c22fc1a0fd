package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/cache"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
	"github.com/kyleking/ae-columns/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

const maxCellWidth = 60

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be table, json, or csv)", s)
	}
}

// Formatter renders mappings, schema listings and query results
type Formatter struct {
	now func() time.Time
}

// NewFormatter creates a new formatter instance
func NewFormatter() *Formatter {
	return &Formatter{now: time.Now}
}

// FormatMappings writes coll in the requested format
func (f *Formatter) FormatMappings(w io.Writer, coll mapping.Collection, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, coll)
	case FormatCSV:
		rows := [][]string{{"source_column", "column_type", "friendly_name", "description"}}
		for _, m := range coll.Mappings() {
			rows = append(rows, []string{m.SourceColumn, string(m.ColumnType), m.FriendlyName, m.Description})
		}

		return writeCSV(w, rows)
	default:
		if coll.Len() == 0 {
			_, err := fmt.Fprintln(w, "No mappings defined.")
			return err
		}

		tw := newTabWriter(w)
		fmt.Fprintln(tw, "COLUMN\tTYPE\tFRIENDLY NAME\tDESCRIPTION")

		for _, m := range coll.Mappings() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				m.SourceColumn, m.ColumnType, truncate(m.FriendlyName), dash(truncate(m.Description)))
		}

		return tw.Flush()
	}
}

// FormatSchema lists every column by category next to its current friendly name
func (f *Formatter) FormatSchema(w io.Writer, provider schema.Provider, coll mapping.Collection) error {
	tw := newTabWriter(w)

	for i, category := range provider.Categories() {
		if i > 0 {
			fmt.Fprintln(tw)
		}

		columns := provider.ColumnsByCategory(category)
		fmt.Fprintf(tw, "%s (%d columns)\n", category, len(columns))

		for _, col := range columns {
			name := "-"
			if m, ok := coll.Get(col); ok {
				name = m.FriendlyName
			}

			fmt.Fprintf(tw, "  %s\t%s\n", col, name)
		}
	}

	return tw.Flush()
}

// FormatResult writes a backend result in the requested format
func (f *Formatter) FormatResult(w io.Writer, result *analytics.Result, format OutputFormat) error {
	names := result.ColumnNames()

	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatCSV:
		rows := [][]string{names}
		for _, row := range result.Data {
			rows = append(rows, cells(names, row, false))
		}

		return writeCSV(w, rows)
	default:
		if len(result.Data) == 0 {
			_, err := fmt.Fprintln(w, "No rows returned.")
			return err
		}

		tw := newTabWriter(w)
		fmt.Fprintln(tw, strings.Join(names, "\t"))

		for _, row := range result.Data {
			fmt.Fprintln(tw, strings.Join(cells(names, row, true), "\t"))
		}

		if err := tw.Flush(); err != nil {
			return err
		}

		summary := fmt.Sprintf("\n%d row(s)", result.Rows)
		if result.RowsBeforeLimitAtLeast > result.Rows {
			summary += fmt.Sprintf(" of at least %d", result.RowsBeforeLimitAtLeast)
		}

		_, err := fmt.Fprintln(w, summary)

		return err
	}
}

// FormatDatasets lists stored datasets
func (f *Formatter) FormatDatasets(w io.Writer, datasets []storage.DatasetSummary) error {
	if len(datasets) == 0 {
		_, err := fmt.Fprintln(w, "No datasets have mappings yet.")
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "DATASET\tMAPPINGS\tUPDATED")

	for _, d := range datasets {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Mappings, f.humanizeAge(d.UpdatedAt))
	}

	return tw.Flush()
}

// FormatStats writes database statistics
func (f *Formatter) FormatStats(w io.Writer, stats *storage.Stats, schemaVersion int) error {
	tw := newTabWriter(w)

	fmt.Fprintf(tw, "Datasets:\t%d\n", stats.Datasets)
	fmt.Fprintf(tw, "Mappings:\t%d\n", stats.TotalMappings)

	types := make([]string, 0, len(stats.TypeBreakdown))
	for t := range stats.TypeBreakdown {
		types = append(types, string(t))
	}

	slices.Sort(types)

	for _, t := range types {
		fmt.Fprintf(tw, "  %s:\t%d\n", t, stats.TypeBreakdown[schema.ColumnType(t)])
	}

	fmt.Fprintf(tw, "Last updated:\t%s\n", f.humanizeAge(stats.LastUpdated))
	fmt.Fprintf(tw, "Database size:\t%.2f MB\n", stats.DatabaseSizeMB)
	fmt.Fprintf(tw, "Schema version:\t%d\n", schemaVersion)

	return tw.Flush()
}

// FormatCacheStats writes result cache usage
func (f *Formatter) FormatCacheStats(w io.Writer, stats *cache.Stats) error {
	tw := newTabWriter(w)

	fmt.Fprintf(tw, "Entries:\t%d\n", stats.Entries)
	fmt.Fprintf(tw, "Size:\t%.2f KB\n", float64(stats.Bytes)/1024)

	return tw.Flush()
}

// Dump writes a Go-syntax dump of v for debugging
func (f *Formatter) Dump(w io.Writer, v any) {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	cfg.Fdump(w, v)
}

// humanizeAge converts a time to a human-readable age string
func (f *Formatter) humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := f.now().Sub(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 365*24*time.Hour:
		return plural(int(d.Hours()/24/30), "month")
	default:
		return plural(int(d.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}

	return strconv.Itoa(n) + " " + unit + "s ago"
}

func cells(names []string, row map[string]any, forTable bool) []string {
	out := make([]string, len(names))

	for i, name := range names {
		v, ok := row[name]
		switch {
		case !ok || v == nil:
			if forTable {
				out[i] = "-"
			}
		case forTable:
			out[i] = truncate(cell(v))
		default:
			out[i] = cell(v)
		}
	}

	return out
}

func cell(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}

		return string(raw)
	}
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")

	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-3]) + "..."
	}

	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	return nil
}
