package schema

import (
	"github.com/tordrt/sqlmodel/internal/dialect"
)

// Layout reduces the catalog to the table a dialect would create from it.
func (c *Catalog) Layout(d *dialect.Dialect) TableLayout {
	t := TableLayout{
		Name:       c.table,
		Model:      c.model,
		PrimaryKey: []string{c.pk.ColumnName},
	}

	for i := range c.columns {
		col := &c.columns[i]
		cl := ColumnLayout{
			Name:     col.ColumnName,
			Type:     ColumnType(d, col),
			Nullable: col.Nullable(),
			IsUnique: col.Unique,
			Roles:    roles(col),
		}
		if value, ok := DefaultSQL(d, col); ok {
			cl.DefaultValue = &value
		}
		t.Columns = append(t.Columns, cl)

		if col.IndexType != NoIndex {
			t.Indexes = append(t.Indexes, IndexLayout{
				Name:    c.IndexName(col),
				Columns: []string{col.ColumnName},
				Method:  string(col.IndexType),
			})
		}
	}

	for _, ref := range c.references {
		rel := RelationLayout{
			TargetTable:  ref.Target,
			TargetColumn: ref.Field,
			SourceColumn: ref.Column.ColumnName,
			Cardinality:  "N:1",
		}
		if target, ok := Lookup(ref.Target); ok {
			rel.TargetTable = target.Table()
			if rel.TargetColumn == "" {
				rel.TargetColumn = target.PrimaryKey().ColumnName
			}
		}
		if ref.Column.Unique {
			rel.Cardinality = "1:1"
		}
		t.Relations = append(t.Relations, rel)
	}
	return t
}

func roles(col *Column) []string {
	var r []string
	flags := []struct {
		on   bool
		name string
	}{
		{col.AutoIncrement, "auto_increment"},
		{col.ReadOnly, "read_only"},
		{col.WriteOnly, "write_only"},
		{col.Snapshot, "snapshot"},
		{col.Generated, "generated"},
		{col.Editable, "editable"},
		{col.AutoCoalesce, "auto_coalesce"},
	}
	for _, f := range flags {
		if f.on {
			r = append(r, f.name)
		}
	}
	return r
}

// LayoutOf builds the layout of several catalogs.
func LayoutOf(d *dialect.Dialect, cats ...*Catalog) *Layout {
	l := &Layout{}
	for _, c := range cats {
		l.Tables = append(l.Tables, c.Layout(d))
	}
	return l
}
