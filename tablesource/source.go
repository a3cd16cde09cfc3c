// Package tablesource abstracts the tabular backends chunk data is fetched
// from. A Source reads named columns of a table over half-open row windows;
// the streaming pipeline never sees more than one window at a time.
package tablesource

import (
	"context"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// ColumnSchema describes one column of a source table.
type ColumnSchema struct {
	Name string
	Type frame.Type
}

// Schema describes a source table.
type Schema struct {
	RowCount int64
	Columns  []ColumnSchema
}

// Column returns the schema of a named column.
func (s Schema) Column(name string) (ColumnSchema, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// Has reports whether the table carries the named column.
func (s Schema) Has(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// Source reads windows of named columns from tables. Implementations must
// preserve the table's row order across windows and may return fewer rows
// than requested only when the window extends past the table's end.
type Source interface {
	Schema(ctx context.Context, tableID string) (Schema, error)
	FetchColumns(ctx context.Context, tableID string, columns []string, rng frame.Range) (*frame.Frame, error)
}
