package schema

import (
	"fmt"
	"reflect"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
)

// Reference is a declared many-to-one edge from a column to another record type.
type Reference struct {
	Column *Column
	Target string
	// Field is the referenced field, empty for the target's primary key.
	Field string
}

// Catalog is the per-record-type list of columns and its derived slices.
// A Catalog is immutable once built and safe for concurrent use.
type Catalog struct {
	model        string
	table        string
	renameAll    string
	autoRename   bool
	autoCoalesce bool
	goType       reflect.Type

	columns []Column
	pk      *Column
	byName  map[string]*Column

	readable   []*Column
	editable   []*Column
	generated  []*Column
	readOnly   []*Column
	snapshot   []*Column
	references []Reference
}

// Options are the record-level annotations.
type Options struct {
	Model        string
	Table        string
	RenameAll    string
	AutoRename   bool
	AutoCoalesce bool
}

// NewCatalog validates columns and derives the cached slices.
func NewCatalog(opts Options, columns []Column) (*Catalog, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	c := &Catalog{
		model:        opts.Model,
		table:        opts.Table,
		renameAll:    opts.RenameAll,
		autoRename:   opts.AutoRename,
		autoCoalesce: opts.AutoCoalesce,
		columns:      make([]Column, len(columns)),
		byName:       make(map[string]*Column, len(columns)*2),
	}
	if c.table == "" {
		c.table = toSnake(opts.Model)
	}
	copy(c.columns, columns)

	hasEditable := false
	for i := range c.columns {
		if c.columns[i].Editable {
			hasEditable = true
		}
	}

	for i := range c.columns {
		col := &c.columns[i]
		if col.ColumnName == "" {
			col.ColumnName = col.Name
		}
		if col.Name == "" {
			return nil, fmt.Errorf("%s: column %d has no name", c.model, i)
		}
		if opts.AutoCoalesce {
			col.AutoCoalesce = true
		}
		if col.ReadOnly && col.Editable {
			return nil, fmt.Errorf("%s.%s: a column cannot be both read_only and editable", c.model, col.Name)
		}
		if col.Type.Kind == Invalid {
			return nil, fmt.Errorf("%s.%s: missing type", c.model, col.Name)
		}
		for _, key := range []string{col.Name, col.ColumnName} {
			if prev, ok := c.byName[key]; ok && prev != col {
				return nil, fmt.Errorf("%s: duplicate column %q", c.model, key)
			}
			c.byName[key] = col
		}

		if col.PrimaryKey {
			if c.pk != nil {
				return nil, fmt.Errorf("%s: more than one primary key (%s, %s)", c.model, c.pk.Name, col.Name)
			}
			c.pk = col
		}
		if !col.WriteOnly {
			c.readable = append(c.readable, col)
		}
		if col.Generated {
			c.generated = append(c.generated, col)
		}
		if col.ReadOnly {
			c.readOnly = append(c.readOnly, col)
		}
		if col.Snapshot {
			c.snapshot = append(c.snapshot, col)
		}
		if col.Reference != "" {
			c.references = append(c.references, Reference{
				Column: col,
				Target: col.Reference,
				Field:  col.ReferencedField,
			})
		}
		if isEditable(col, hasEditable) {
			c.editable = append(c.editable, col)
		}
	}
	if c.pk == nil {
		return nil, fmt.Errorf("%s: no primary key declared", c.model)
	}
	return c, nil
}

// isEditable follows explicit editable flags when any column carries one,
// otherwise every mutable non-key column is editable.
func isEditable(col *Column, explicit bool) bool {
	if col.ReadOnly || col.Generated || col.PrimaryKey {
		return false
	}
	if explicit {
		return col.Editable
	}
	return true
}

// Model returns the record type name.
func (c *Catalog) Model() string { return c.model }

// Table returns the physical table name.
func (c *Catalog) Table() string { return c.table }

// RenameAll returns the declared case convention, if any.
func (c *Catalog) RenameAll() string { return c.renameAll }

// AutoRename reports whether decoded mappings are renamed to logical names.
func (c *Catalog) AutoRename() bool { return c.autoRename || c.renameAll != "" }

// AutoCoalesce reports the record-level coalescing flag.
func (c *Catalog) AutoCoalesce() bool { return c.autoCoalesce }

// GoType returns the reflected struct type, nil for declared catalogs.
func (c *Catalog) GoType() reflect.Type { return c.goType }

// Columns returns the columns in declaration order. The slice must not be modified.
func (c *Catalog) Columns() []Column { return c.columns }

// PrimaryKey returns the primary-key column.
func (c *Catalog) PrimaryKey() *Column { return c.pk }

// Column looks a column up by logical or physical name.
func (c *Catalog) Column(name string) (*Column, bool) {
	col, ok := c.byName[name]
	return col, ok
}

// MustColumn is Column returning an UnknownColumnError.
func (c *Catalog) MustColumn(name string) (*Column, error) {
	if col, ok := c.byName[name]; ok {
		return col, nil
	}
	return nil, &errs.UnknownColumnError{Model: c.model, Name: name}
}

// ReadableColumns returns every column that is not write-only.
func (c *Catalog) ReadableColumns() []*Column { return c.readable }

func (c *Catalog) EditableColumns() []*Column  { return c.editable }
func (c *Catalog) GeneratedColumns() []*Column { return c.generated }
func (c *Catalog) ReadOnlyColumns() []*Column  { return c.readOnly }
func (c *Catalog) SnapshotColumns() []*Column  { return c.snapshot }

// ReferenceEdges returns the declared references in declaration order.
func (c *Catalog) ReferenceEdges() []Reference { return c.references }

// IsEditable reports whether the named column may appear in a SET clause.
func (c *Catalog) IsEditable(name string) bool {
	col, ok := c.byName[name]
	if !ok {
		return false
	}
	for _, e := range c.editable {
		if e == col {
			return true
		}
	}
	return false
}

// FormatColumn returns the physical, dialect-quoted identifier of col.
func (c *Catalog) FormatColumn(col *Column, d *dialect.Dialect) string {
	return d.FormatIdentifier(col.ColumnName)
}

// FormatTable returns the dialect-quoted table name.
func (c *Catalog) FormatTable(d *dialect.Dialect) string {
	return d.FormatIdentifier(c.table)
}
