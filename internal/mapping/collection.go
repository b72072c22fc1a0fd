// Package mapping holds the user's friendly names for raw dataset columns.
//
// A Collection is an immutable, ordered set of ColumnMapping keyed by source
// column. Every operation returns a new Collection and leaves the receiver
// untouched, so several logical edits can be composed into one transition
// before it is committed through a Store.
package mapping

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/kyleking/ae-columns/internal/schema"
)

// ColumnMapping names one raw column
type ColumnMapping struct {
	SourceColumn string            `json:"source_column"`
	FriendlyName string            `json:"friendly_name"`
	ColumnType   schema.ColumnType `json:"column_type"`
	Description  string            `json:"description,omitempty"`
}

// Collection is an ordered set of mappings with at most one entry per source column.
// The zero value is an empty collection.
type Collection struct {
	order []string
	index map[string]ColumnMapping
}

// NewCollection builds a collection from mappings in order.
// A repeated source column replaces the earlier entry in its original position.
func NewCollection(mappings ...ColumnMapping) Collection {
	c := Collection{
		order: make([]string, 0, len(mappings)),
		index: make(map[string]ColumnMapping, len(mappings)),
	}

	for _, m := range mappings {
		if _, exists := c.index[m.SourceColumn]; !exists {
			c.order = append(c.order, m.SourceColumn)
		}

		c.index[m.SourceColumn] = m
	}

	return c
}

// Get returns the mapping for column, if any
func (c Collection) Get(column string) (ColumnMapping, bool) {
	m, ok := c.index[column]
	return m, ok
}

// Len returns the number of mappings
func (c Collection) Len() int {
	return len(c.order)
}

// Columns returns the mapped source columns in order
func (c Collection) Columns() []string {
	return slices.Clone(c.order)
}

// Mappings returns the mappings in order
func (c Collection) Mappings() []ColumnMapping {
	out := make([]ColumnMapping, 0, len(c.order))
	for _, col := range c.order {
		out = append(out, c.index[col])
	}

	return out
}

// FriendlyName returns the display name for column, falling back to the column itself
func (c Collection) FriendlyName(column string) string {
	if m, ok := c.index[column]; ok {
		return m.FriendlyName
	}

	return column
}

// Set names column, renames it in place, or unmaps it when friendlyName is blank.
// Columns the provider does not know leave the collection unchanged.
func (c Collection) Set(provider schema.Provider, column, friendlyName, description string) Collection {
	columnType, known := provider.LookupType(column)
	if !known {
		return c
	}

	if strings.TrimSpace(friendlyName) == "" {
		return c.Remove(column)
	}

	next := c.clone()

	if existing, ok := next.index[column]; ok {
		existing.FriendlyName = friendlyName
		existing.Description = description
		next.index[column] = existing

		return next
	}

	next.order = append(next.order, column)
	next.index[column] = ColumnMapping{
		SourceColumn: column,
		FriendlyName: friendlyName,
		ColumnType:   columnType,
		Description:  description,
	}

	return next
}

// Remove drops the mapping for column if present
func (c Collection) Remove(column string) Collection {
	if _, ok := c.index[column]; !ok {
		return c
	}

	next := c.clone()
	delete(next.index, column)
	next.order = slices.DeleteFunc(next.order, func(col string) bool { return col == column })

	return next
}

// Equal reports whether both collections hold the same mappings in the same order
func (c Collection) Equal(other Collection) bool {
	if !slices.Equal(c.order, other.order) {
		return false
	}

	for _, col := range c.order {
		if c.index[col] != other.index[col] {
			return false
		}
	}

	return true
}

func (c Collection) clone() Collection {
	next := Collection{
		order: slices.Clone(c.order),
		index: make(map[string]ColumnMapping, len(c.index)+1),
	}

	for k, v := range c.index {
		next.index[k] = v
	}

	return next
}

// MarshalJSON encodes the collection as an ordered array
func (c Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Mappings())
}

// UnmarshalJSON decodes an ordered array of mappings
func (c *Collection) UnmarshalJSON(data []byte) error {
	var mappings []ColumnMapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return err
	}

	*c = NewCollection(mappings...)

	return nil
}
