package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kyleking/ae-columns/internal/mapping"
)

// Column describes one result column
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is the backend's JSON response for a SQL query
type Result struct {
	Meta                   []Column         `json:"meta"`
	Data                   []map[string]any `json:"data"`
	Rows                   int64            `json:"rows"`
	RowsBeforeLimitAtLeast int64            `json:"rows_before_limit_at_least,omitempty"`
}

// DecodeResult parses a response body. Numbers are kept as json.Number so
// 64-bit integers survive.
func DecodeResult(body []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var result Result
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse query result: %w", err)
	}

	if result.Rows == 0 {
		result.Rows = int64(len(result.Data))
	}

	return &result, nil
}

// ColumnNames returns result column names in order
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Meta))
	for i, col := range r.Meta {
		names[i] = col.Name
	}

	return names
}

// Relabel returns a copy with raw column names replaced by friendly names.
// A friendly name that would collide with a name already in the result keeps
// the raw name.
func (r *Result) Relabel(coll mapping.Collection) *Result {
	renames := make(map[string]string, len(r.Meta))
	used := make(map[string]struct{}, len(r.Meta))

	for _, col := range r.Meta {
		used[col.Name] = struct{}{}
	}

	meta := make([]Column, len(r.Meta))

	for i, col := range r.Meta {
		meta[i] = col

		friendly := coll.FriendlyName(col.Name)
		if friendly == col.Name {
			continue
		}

		if _, taken := used[friendly]; taken {
			continue
		}

		used[friendly] = struct{}{}
		renames[col.Name] = friendly
		meta[i].Name = friendly
	}

	data := make([]map[string]any, len(r.Data))

	for i, row := range r.Data {
		out := make(map[string]any, len(row))

		for k, v := range row {
			if name, ok := renames[k]; ok {
				k = name
			}

			out[k] = v
		}

		data[i] = out
	}

	return &Result{
		Meta:                   meta,
		Data:                   data,
		Rows:                   r.Rows,
		RowsBeforeLimitAtLeast: r.RowsBeforeLimitAtLeast,
	}
}
