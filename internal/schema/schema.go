// Package schema describes which raw columns a dataset exposes and of what type.
package schema

import (
	"fmt"
	"slices"
)

// ColumnType is the fixed category of a raw column
type ColumnType string

const (
	TypeBlob   ColumnType = "blob"
	TypeDouble ColumnType = "double"
	TypeIndex  ColumnType = "index"
)

// Valid reports whether t is one of the three known categories
func (t ColumnType) Valid() bool {
	switch t {
	case TypeBlob, TypeDouble, TypeIndex:
		return true
	default:
		return false
	}
}

// ParseColumnType parses a category name
func ParseColumnType(s string) (ColumnType, error) {
	t := ColumnType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown column type %q (must be blob, double, or index)", s)
	}

	return t, nil
}

// Provider answers which columns exist and what category each belongs to
type Provider interface {
	// LookupType returns the category of column, or false if the column is unknown.
	LookupType(column string) (ColumnType, bool)
	// ColumnsByCategory returns the ordered columns of a category.
	ColumnsByCategory(category ColumnType) []string
	// Categories returns the categories in display order.
	Categories() []ColumnType
}

// Static is a Provider backed by fixed, ordered column lists
type Static struct {
	order   []ColumnType
	columns map[ColumnType][]string
	types   map[string]ColumnType
}

var _ Provider = (*Static)(nil)

// NewStatic builds a provider from ordered column lists per category.
// A column listed under more than one category keeps its first category.
func NewStatic(columns map[ColumnType][]string) *Static {
	s := &Static{
		columns: make(map[ColumnType][]string, len(columns)),
		types:   make(map[string]ColumnType),
	}

	for _, category := range []ColumnType{TypeBlob, TypeDouble, TypeIndex} {
		cols, ok := columns[category]
		if !ok {
			continue
		}

		s.order = append(s.order, category)

		kept := make([]string, 0, len(cols))
		for _, col := range cols {
			if _, dup := s.types[col]; dup {
				continue
			}

			s.types[col] = category
			kept = append(kept, col)
		}

		s.columns[category] = kept
	}

	return s
}

// AnalyticsEngine returns the positional layout blob1..blobN, double1..doubleN, index1..indexN
func AnalyticsEngine(blobs, doubles, indexes int) *Static {
	return NewStatic(map[ColumnType][]string{
		TypeBlob:   numbered(TypeBlob, blobs),
		TypeDouble: numbered(TypeDouble, doubles),
		TypeIndex:  numbered(TypeIndex, indexes),
	})
}

// DefaultAnalyticsEngine is the stock 20 blobs, 20 doubles, 1 index layout
func DefaultAnalyticsEngine() *Static {
	return AnalyticsEngine(20, 20, 1)
}

func numbered(prefix ColumnType, n int) []string {
	cols := make([]string, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		cols = append(cols, fmt.Sprintf("%s%d", prefix, i))
	}

	return cols
}

func (s *Static) LookupType(column string) (ColumnType, bool) {
	t, ok := s.types[column]
	return t, ok
}

func (s *Static) ColumnsByCategory(category ColumnType) []string {
	return slices.Clone(s.columns[category])
}

func (s *Static) Categories() []ColumnType {
	return slices.Clone(s.order)
}
