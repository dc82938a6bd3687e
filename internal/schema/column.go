package schema

import (
	"fmt"
	"strings"
)

// IndexType is the index hint declared on a column
type IndexType string

const (
	NoIndex   IndexType = ""
	BTree     IndexType = "btree"
	Hash      IndexType = "hash"
	Gin       IndexType = "gin"
	TextIndex IndexType = "text"
)

// ParseIndexType validates an index_type annotation.
func ParseIndexType(s string) (IndexType, error) {
	switch it := IndexType(strings.ToLower(s)); it {
	case NoIndex, BTree, Hash, Gin, TextIndex:
		return it, nil
	}
	return NoIndex, fmt.Errorf("unknown index type: %s", s)
}

// Sentinel default values resolved by the runtime rather than the literal text.
const (
	DefaultNow    = "now"
	DefaultUUIDv7 = "uuid-v7"
	DefaultEpoch  = "epoch"
	defaultFnTag  = "fn:"
)

// Column holds the declared attributes of one field of a record type.
type Column struct {
	// Name is the logical field name after case renaming.
	Name string
	// ColumnName is the physical SQL name.
	ColumnName string
	Type       Type

	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	ReadOnly      bool
	WriteOnly     bool
	Snapshot      bool
	Generated     bool
	Editable      bool
	AutoCoalesce  bool
	// ForeignKey emits a REFERENCES clause for the declared reference.
	ForeignKey bool

	Default   string
	IndexType IndexType

	// Reference names the target record type.
	Reference string
	// ReferencedField overrides the referenced column, which defaults to the target's primary key.
	ReferencedField string
	// CorrelatesWith names the field whose change triggers a lookup of ReferencedField.
	CorrelatesWith string

	Comment string

	index []int
}

// FieldIndex returns the struct field path of reflected columns, nil for declared ones.
func (c *Column) FieldIndex() []int {
	return c.index
}

// DefaultFunc returns the method named by a "fn:Method" default.
func (c *Column) DefaultFunc() (string, bool) {
	if strings.HasPrefix(c.Default, defaultFnTag) {
		return strings.TrimPrefix(c.Default, defaultFnTag), true
	}
	return "", false
}

// HasRuntimeDefault reports defaults filled by the runtime on insert.
func (c *Column) HasRuntimeDefault() bool {
	if _, ok := c.DefaultFunc(); ok {
		return true
	}
	return c.Default == DefaultNow || c.Default == DefaultUUIDv7
}

// Nullable reports whether SQL NULL is an admissible value.
func (c *Column) Nullable() bool {
	return !c.PrimaryKey && !c.NotNull
}

// Coalesce reports whether NULL decodes to the zero value of the type.
func (c *Column) Coalesce() bool {
	return c.AutoCoalesce && !c.Type.Optional
}
