// Package driver defines the port through which models reach a SQL engine.
package driver

import (
	"context"
	"iter"
	"maps"
	"slices"

	"github.com/tordrt/sqlmodel/internal/dialect"
)

// Driver is the minimal capability set the model runtime needs from an engine.
// Implementations must be safe for concurrent use.
type Driver interface {
	Dialect() *dialect.Dialect
	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	// FetchAll streams the rows of a query. The sequence stops at the first error,
	// which it yields with a nil row.
	FetchAll(ctx context.Context, query string, args ...any) iter.Seq2[Row, error]
	// FetchOne returns the first row of a query, or nil when there is none.
	FetchOne(ctx context.Context, query string, args ...any) (Row, error)
	Close() error
}

// Result reports the outcome of Execute.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Row gives access to one result row by column name.
type Row interface {
	Columns() []string
	// Get returns the driver value of a column and whether the row has it.
	Get(name string) (any, bool)
	IsNull(name string) bool
}

// MapRow is a Row backed by a map.
type MapRow struct {
	columns []string
	values  map[string]any
}

// NewMapRow pairs column names with their values. Values past the last name are dropped.
func NewMapRow(columns []string, values []any) *MapRow {
	r := &MapRow{columns: columns, values: make(map[string]any, len(columns))}
	for i, name := range columns {
		if i < len(values) {
			r.values[name] = values[i]
		} else {
			r.values[name] = nil
		}
	}
	return r
}

// RowOf builds a row from a map. Columns are listed in the given order, or sorted
// when none are given.
func RowOf(values map[string]any, columns ...string) *MapRow {
	if len(columns) == 0 {
		columns = slices.Sorted(maps.Keys(values))
	}
	return &MapRow{columns: columns, values: values}
}

func (r *MapRow) Columns() []string { return r.columns }

func (r *MapRow) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r *MapRow) IsNull(name string) bool {
	v, ok := r.values[name]
	return !ok || v == nil
}

// Collect drains a row sequence.
func Collect(rows iter.Seq2[Row, error]) ([]Row, error) {
	var out []Row
	for row, err := range rows {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
