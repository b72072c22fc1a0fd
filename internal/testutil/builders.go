package testutil

import (
	"encoding/json"
	"strconv"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
)

// MappingOption is a functional option for building test collections
type MappingOption func(schema.Provider, mapping.Collection) mapping.Collection

// WithMapping names column
func WithMapping(column, friendlyName string) MappingOption {
	return func(p schema.Provider, c mapping.Collection) mapping.Collection {
		return c.Set(p, column, friendlyName, "")
	}
}

// WithDescribedMapping names column with a description
func WithDescribedMapping(column, friendlyName, description string) MappingOption {
	return func(p schema.Provider, c mapping.Collection) mapping.Collection {
		return c.Set(p, column, friendlyName, description)
	}
}

// NewCollection builds a collection against provider
func NewCollection(provider schema.Provider, opts ...MappingOption) mapping.Collection {
	var c mapping.Collection
	for _, opt := range opts {
		c = opt(provider, c)
	}

	return c
}

// ResultBuilder assembles backend results for tests
type ResultBuilder struct {
	result analytics.Result
}

// NewResult starts a result with the given column names; every column is typed String
func NewResult(columns ...string) *ResultBuilder {
	b := &ResultBuilder{}
	for _, col := range columns {
		b.result.Meta = append(b.result.Meta, analytics.Column{Name: col, Type: "String"})
	}

	return b
}

// Row appends a row; values are matched to columns by position
func (b *ResultBuilder) Row(values ...any) *ResultBuilder {
	row := make(map[string]any, len(values))

	for i, v := range values {
		if i >= len(b.result.Meta) {
			break
		}

		if n, ok := v.(int); ok {
			v = json.Number(strconv.Itoa(n))
		}

		row[b.result.Meta[i].Name] = v
	}

	b.result.Data = append(b.result.Data, row)
	b.result.Rows = int64(len(b.result.Data))

	return b
}

// Build returns a copy of the assembled result
func (b *ResultBuilder) Build() *analytics.Result {
	r := b.result
	return &r
}

// JSON renders the result as the backend would send it
func (b *ResultBuilder) JSON() []byte {
	raw, err := json.Marshal(b.result)
	if err != nil {
		panic(err)
	}

	return raw
}
