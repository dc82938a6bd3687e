package schema

// Layout describes a set of tables as a database sees them.
// Declared catalogs and live databases are both reduced to a Layout so they can
// be rendered and compared.
type Layout struct {
	Tables []TableLayout
}

// TableLayout represents a database table
type TableLayout struct {
	Name       string
	Model      string
	Columns    []ColumnLayout
	Relations  []RelationLayout
	Indexes    []IndexLayout
	PrimaryKey []string
}

// ColumnLayout represents a table column
type ColumnLayout struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue *string
	IsUnique     bool
	Roles        []string
}

// RelationLayout represents a reference to another table
type RelationLayout struct {
	TargetTable  string
	TargetColumn string
	SourceColumn string
	Cardinality  string // 1:1, 1:N, N:1
}

// IndexLayout represents a database index
type IndexLayout struct {
	Name     string
	Columns  []string
	Method   string
	IsUnique bool
}

// FindTable returns the named table, or nil.
func (l *Layout) FindTable(name string) *TableLayout {
	for i := range l.Tables {
		if l.Tables[i].Name == name {
			return &l.Tables[i]
		}
	}
	return nil
}

// FindColumn returns the named column, or nil.
func (t *TableLayout) FindColumn(name string) *ColumnLayout {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
