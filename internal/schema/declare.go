package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Declaration is a record type declared in YAML rather than by a Go struct.
type Declaration struct {
	Name         string             `yaml:"name"`
	Table        string             `yaml:"table"`
	RenameAll    string             `yaml:"rename_all"`
	AutoRename   bool               `yaml:"auto_rename"`
	AutoCoalesce bool               `yaml:"auto_coalesce"`
	Fields       []FieldDeclaration `yaml:"fields"`
}

// FieldDeclaration carries the same annotations as the orm struct tag.
type FieldDeclaration struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	PrimaryKey      bool   `yaml:"primary_key"`
	AutoIncrement   bool   `yaml:"auto_increment"`
	NotNull         bool   `yaml:"not_null"`
	Unique          bool   `yaml:"unique"`
	ReadOnly        bool   `yaml:"read_only"`
	WriteOnly       bool   `yaml:"write_only"`
	Snapshot        bool   `yaml:"snapshot"`
	Generated       bool   `yaml:"generated"`
	Editable        bool   `yaml:"editable"`
	Ignore          bool   `yaml:"ignore"`
	AutoCoalesce    bool   `yaml:"auto_coalesce"`
	ForeignKey      bool   `yaml:"foreign_key"`
	ColumnName      string `yaml:"column_name"`
	DefaultValue    string `yaml:"default_value"`
	IndexType       string `yaml:"index_type"`
	Reference       string `yaml:"reference"`
	ReferencedField string `yaml:"referenced_field"`
	CorrelatesWith  string `yaml:"correlates_with"`
	Comment         string `yaml:"comment"`
}

type declarationFile struct {
	Models []Declaration `yaml:"models"`
}

// LoadDeclarations reads a YAML file of model declarations, builds their catalogs
// and registers them.
func LoadDeclarations(path string) ([]*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading models file: %w", err)
	}
	return ParseDeclarations(data)
}

// ParseDeclarations is LoadDeclarations over an in-memory document.
func ParseDeclarations(data []byte) ([]*Catalog, error) {
	var f declarationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing models file: %w", err)
	}

	cats := make([]*Catalog, 0, len(f.Models))
	for _, decl := range f.Models {
		c, err := decl.Catalog()
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	if err := Register(cats...); err != nil {
		return nil, err
	}
	return cats, nil
}

// Catalog builds the catalog of the declaration.
func (d Declaration) Catalog() (*Catalog, error) {
	if d.RenameAll != "" {
		if _, err := convention(d.RenameAll); err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
	}

	columns := make([]Column, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Ignore {
			continue
		}
		typ, err := ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Name, f.Name, err)
		}
		it, err := ParseIndexType(f.IndexType)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Name, f.Name, err)
		}

		col := Column{
			Name:            f.Name,
			ColumnName:      f.ColumnName,
			Type:            typ,
			PrimaryKey:      f.PrimaryKey,
			AutoIncrement:   f.AutoIncrement,
			NotNull:         f.NotNull,
			Unique:          f.Unique,
			ReadOnly:        f.ReadOnly,
			WriteOnly:       f.WriteOnly,
			Snapshot:        f.Snapshot,
			Generated:       f.Generated,
			Editable:        f.Editable,
			AutoCoalesce:    f.AutoCoalesce,
			ForeignKey:      f.ForeignKey,
			Default:         f.DefaultValue,
			IndexType:       it,
			Reference:       f.Reference,
			ReferencedField: f.ReferencedField,
			CorrelatesWith:  f.CorrelatesWith,
			Comment:         f.Comment,
		}
		if col.ColumnName == "" {
			col.ColumnName = toSnake(f.Name)
		}
		if d.RenameAll != "" {
			col.Name = Rename(col.Name, d.RenameAll)
		}
		columns = append(columns, col)
	}

	return NewCatalog(Options{
		Model:        d.Name,
		Table:        d.Table,
		RenameAll:    d.RenameAll,
		AutoRename:   d.AutoRename,
		AutoCoalesce: d.AutoCoalesce,
	}, columns)
}
