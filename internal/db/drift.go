package db

import (
	"context"
	"fmt"
	"slices"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// DriftKind classifies a difference between declared and live tables
type DriftKind string

const (
	MissingTable  DriftKind = "missing table"
	MissingColumn DriftKind = "missing column"
	ExtraColumn   DriftKind = "undeclared column"
	Nullability   DriftKind = "nullability"
	MissingIndex  DriftKind = "missing index"
)

// Drift is one difference between a declared table and the database.
type Drift struct {
	Table  string
	Column string
	Kind   DriftKind
	Detail string
}

func (d Drift) String() string {
	s := d.Table
	if d.Column != "" {
		s += "." + d.Column
	}
	s += ": " + string(d.Kind)
	if d.Detail != "" {
		s += " (" + d.Detail + ")"
	}
	return s
}

// Check inspects the tables of cats and reports how they differ from the declarations.
func Check(ctx context.Context, in Inspector, d *dialect.Dialect, cats ...*schema.Catalog) ([]Drift, error) {
	declared := schema.LayoutOf(d, cats...)
	names := make([]string, len(declared.Tables))
	for i, t := range declared.Tables {
		names[i] = t.Name
	}
	live, err := Inspect(ctx, in, names)
	if err != nil {
		return nil, err
	}
	return Compare(declared, live), nil
}

// Compare lists the differences between a declared and a live layout.
// Column types are not compared; engines report them in their own spelling.
func Compare(declared, live *schema.Layout) []Drift {
	var out []Drift
	for _, want := range declared.Tables {
		got := live.FindTable(want.Name)
		if got == nil {
			out = append(out, Drift{Table: want.Name, Kind: MissingTable})
			continue
		}
		for _, wc := range want.Columns {
			gc := got.FindColumn(wc.Name)
			if gc == nil {
				out = append(out, Drift{Table: want.Name, Column: wc.Name, Kind: MissingColumn})
				continue
			}
			if slices.Contains(want.PrimaryKey, wc.Name) {
				continue
			}
			if wc.Nullable != gc.Nullable {
				out = append(out, Drift{
					Table:  want.Name,
					Column: wc.Name,
					Kind:   Nullability,
					Detail: fmt.Sprintf("declared %s, found %s", nullWord(wc.Nullable), nullWord(gc.Nullable)),
				})
			}
		}
		for _, gc := range got.Columns {
			if want.FindColumn(gc.Name) == nil {
				out = append(out, Drift{Table: want.Name, Column: gc.Name, Kind: ExtraColumn, Detail: gc.Type})
			}
		}
		for _, idx := range want.Indexes {
			if !hasIndexOn(got, idx.Columns) {
				out = append(out, Drift{Table: want.Name, Column: idx.Columns[0], Kind: MissingIndex, Detail: idx.Name})
			}
		}
	}
	return out
}

func hasIndexOn(t *schema.TableLayout, columns []string) bool {
	for _, idx := range t.Indexes {
		if slices.Equal(idx.Columns, columns) {
			return true
		}
	}
	return false
}

func nullWord(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}
