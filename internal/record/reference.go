package record

import (
	"context"
	"fmt"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// Fetcher reads one field of the target row whose primary key is id. found is
// false when no such row exists.
type Fetcher func(ctx context.Context, target *schema.Catalog, field *schema.Column, id any) (value any, found bool, err error)

// ResolveReferences refreshes correlated fields. For every column declaring
// correlates_with X and referenced_field F, a change of X in data fetches F of the
// referenced row and stores it in both model and data.
func ResolveReferences(ctx context.Context, cat *schema.Catalog, d *dialect.Dialect, data map[string]any, model any, fetch Fetcher) error {
	for i := range cat.Columns() {
		col := &cat.Columns()[i]
		if col.CorrelatesWith == "" || col.ReferencedField == "" {
			continue
		}
		source, err := cat.MustColumn(col.CorrelatesWith)
		if err != nil {
			return err
		}
		id, changed := data[source.Name]
		if !changed {
			if id, changed = data[source.ColumnName]; !changed {
				continue
			}
		}

		targetName := col.Reference
		if targetName == "" {
			targetName = source.Reference
		}
		target, ok := schema.Lookup(targetName)
		if !ok {
			return fmt.Errorf("%s.%s references unknown model %q", cat.Model(), col.Name, targetName)
		}
		f, err := target.MustColumn(col.ReferencedField)
		if err != nil {
			return err
		}

		if id == nil {
			data[col.Name] = nil
			if err := Set(cat, model, col, nil); err != nil {
				return err
			}
			continue
		}
		raw, found, err := fetch(ctx, target, f, id)
		if err != nil {
			return err
		}
		if !found {
			return &errs.ReferenceMissingError{Model: target.Model(), ID: id}
		}
		v, err := codec.Decode(col.Type, raw, d)
		if err != nil {
			return &errs.DecodeError{Column: col.ColumnName, Err: err}
		}
		if err := Set(cat, model, col, v); err != nil {
			return err
		}
		data[col.Name] = v
	}
	return nil
}
