package schema

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/shopspring/decimal"
)

// TagName is the struct tag holding column annotations.
const TagName = "orm"

// TableNamer lets a record type name its table.
type TableNamer interface {
	TableName() string
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	bytesType   = reflect.TypeFor[[]byte]()
	textType    = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Reflect builds the catalog of a struct type from its orm tags.
//
// Table-level annotations go on a blank field:
//
//	type Task struct {
//		_         struct{}  `orm:"table=tasks,rename_all=camelCase"`
//		ID        uuid.UUID `orm:"primary_key,default_value=uuid-v7"`
//		Name      string    `orm:"not_null,editable"`
//		CreatedAt time.Time `orm:"default_value=now,index_type=btree"`
//	}
func Reflect(t reflect.Type) (*Catalog, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", t)
	}

	opts := Options{Model: t.Name()}
	if opts.Model == "" {
		return nil, fmt.Errorf("model must be a named struct type")
	}
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		opts.Table = namer.TableName()
	}

	var columns []Column
	if err := collectFields(t, nil, &opts, &columns); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Model, err)
	}
	if opts.RenameAll != "" {
		for i := range columns {
			columns[i].Name = Rename(columns[i].Name, opts.RenameAll)
		}
	}

	c, err := NewCatalog(opts, columns)
	if err != nil {
		return nil, err
	}
	c.goType = t
	return c, nil
}

func collectFields(t reflect.Type, parent []int, opts *Options, columns *[]Column) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, hasTag := f.Tag.Lookup(TagName)
		index := append(append([]int{}, parent...), i)

		if f.Name == "_" {
			if hasTag {
				if err := applyTableTag(tag, opts); err != nil {
					return err
				}
			}
			continue
		}
		if f.Anonymous && !hasTag && f.Type.Kind() == reflect.Struct {
			if err := collectFields(f.Type, index, opts, columns); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() || tag == "-" {
			continue
		}

		col := Column{
			Name:       toSnake(f.Name),
			ColumnName: toSnake(f.Name),
			index:      index,
		}
		typ, err := goType(f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		col.Type = typ

		ignore, err := applyFieldTag(tag, &col)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if ignore {
			continue
		}
		*columns = append(*columns, col)
	}
	return nil
}

func applyTableTag(tag string, opts *Options) error {
	entries, err := parseTag(tag)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.key {
		case "table", "table_name":
			opts.Table = e.value
		case "model":
			opts.Model = e.value
		case "rename_all":
			if _, err := convention(e.value); err != nil {
				return err
			}
			opts.RenameAll = e.value
		case "auto_rename":
			opts.AutoRename = true
		case "auto_coalesce":
			opts.AutoCoalesce = true
		default:
			return fmt.Errorf("unknown table annotation %q", e.key)
		}
	}
	return nil
}

// applyFieldTag applies field annotations and reports whether the field is ignored.
func applyFieldTag(tag string, col *Column) (bool, error) {
	entries, err := parseTag(tag)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		switch e.key {
		case "ignore":
			return true, nil
		case "primary_key":
			col.PrimaryKey = true
		case "auto_increment":
			col.AutoIncrement = true
		case "not_null":
			col.NotNull = true
		case "unique":
			col.Unique = true
		case "read_only":
			col.ReadOnly = true
		case "write_only":
			col.WriteOnly = true
		case "snapshot":
			col.Snapshot = true
		case "generated":
			col.Generated = true
		case "editable":
			col.Editable = true
		case "auto_coalesce":
			col.AutoCoalesce = true
		case "foreign_key":
			col.ForeignKey = true
		case "column_name":
			col.ColumnName = e.value
		case "default_value":
			col.Default = e.value
		case "index_type":
			it, err := ParseIndexType(e.value)
			if err != nil {
				return false, err
			}
			col.IndexType = it
		case "reference":
			col.Reference = e.value
		case "referenced_field":
			col.ReferencedField = e.value
		case "correlates_with":
			col.CorrelatesWith = e.value
		case "comment":
			col.Comment = e.value
		case "type":
			override, err := ParseType(e.value)
			if err != nil {
				return false, err
			}
			override.Optional = override.Optional || col.Type.Optional
			col.Type = override
		default:
			return false, fmt.Errorf("unknown annotation %q", e.key)
		}
	}
	return false, nil
}

type tagEntry struct {
	key   string
	value string
}

// parseTag splits "a,b=c,d='x,y'" into entries. Single quotes protect commas.
func parseTag(tag string) ([]tagEntry, error) {
	var entries []tagEntry
	var buf strings.Builder
	quoted := false
	flush := func() error {
		part := strings.TrimSpace(buf.String())
		buf.Reset()
		if part == "" {
			return nil
		}
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'' {
			value = value[1 : len(value)-1]
		}
		if key == "" {
			return fmt.Errorf("malformed tag %q", tag)
		}
		entries = append(entries, tagEntry{key: key, value: value})
		return nil
	}
	for _, r := range tag {
		switch {
		case r == '\'':
			quoted = !quoted
			buf.WriteRune(r)
		case r == ',' && !quoted:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			buf.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in tag %q", tag)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

// goType maps a Go field type to a column type.
func goType(t reflect.Type) (Type, error) {
	var typ Type
	if t.Kind() == reflect.Pointer {
		typ.Optional = true
		t = t.Elem()
	}
	k, err := goKind(t)
	if err != nil {
		return Type{}, err
	}
	typ.Kind = k
	if k == Array {
		elem, err := goKind(t.Elem())
		if err != nil {
			return Type{}, err
		}
		if elem == Array || elem == JSON {
			return Type{}, fmt.Errorf("unsupported array element %s", t.Elem())
		}
		typ.Elem = elem
	}
	return typ, nil
}

func goKind(t reflect.Type) (Kind, error) {
	switch t {
	case timeType:
		return DateTime, nil
	case uuidType:
		return UUID, nil
	case decimalType:
		return Decimal, nil
	case bytesType:
		return Bytes, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool, nil
	case reflect.Int8:
		return Int8, nil
	case reflect.Int16:
		return Int16, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int, reflect.Int64:
		return Int64, nil
	case reflect.Uint8:
		return Uint8, nil
	case reflect.Uint16:
		return Uint16, nil
	case reflect.Uint32:
		return Uint32, nil
	case reflect.Uint, reflect.Uint64:
		return Uint64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	case reflect.String:
		return String, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Bytes, nil
		}
		return Array, nil
	case reflect.Map, reflect.Struct, reflect.Interface:
		return JSON, nil
	case reflect.Array:
		if reflect.PointerTo(t).Implements(textType) {
			return String, nil
		}
	}
	return Invalid, fmt.Errorf("unsupported field type %s", t)
}

// Rename converts a name to the given case convention.
// Unknown conventions leave the name unchanged.
func Rename(name, conv string) string {
	fn, err := convention(conv)
	if err != nil {
		return name
	}
	return fn(name)
}

func convention(name string) (func(string) string, error) {
	switch name {
	case "snake_case":
		return strcase.ToSnake, nil
	case "camelCase":
		return strcase.ToLowerCamel, nil
	case "PascalCase":
		return strcase.ToCamel, nil
	case "kebab-case":
		return strcase.ToKebab, nil
	case "SCREAMING_SNAKE_CASE":
		return strcase.ToScreamingSnake, nil
	case "lowercase":
		return func(s string) string { return strings.ToLower(strings.ReplaceAll(s, "_", "")) }, nil
	case "UPPERCASE":
		return func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "_", "")) }, nil
	}
	return nil, fmt.Errorf("unknown case convention %q", name)
}

func toSnake(s string) string {
	return strcase.ToSnake(s)
}
