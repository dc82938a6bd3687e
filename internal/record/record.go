// Package record moves values between model structs, driver rows and input maps,
// driven by the model's catalog.
package record

import (
	"fmt"
	"reflect"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// structValue returns the addressable struct behind a pointer to a model.
func structValue(cat *schema.Catalog, model any) (reflect.Value, error) {
	rv := reflect.ValueOf(model)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%s: expected a non-nil pointer, got %T", cat.Model(), model)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s: expected a pointer to a struct, got %T", cat.Model(), model)
	}
	if gt := cat.GoType(); gt != nil && gt != rv.Type() {
		return reflect.Value{}, fmt.Errorf("%s: catalog belongs to %s, got %s", cat.Model(), gt, rv.Type())
	}
	return rv, nil
}

// field returns the struct field of col, or an invalid value for declared catalogs.
func field(rv reflect.Value, col *schema.Column) reflect.Value {
	if col.FieldIndex() == nil {
		return reflect.Value{}
	}
	return rv.FieldByIndex(col.FieldIndex())
}

// Get returns the value of col in model.
func Get(cat *schema.Catalog, model any, col *schema.Column) (any, error) {
	rv, err := structValue(cat, model)
	if err != nil {
		return nil, err
	}
	f := field(rv, col)
	if !f.IsValid() {
		return nil, nil
	}
	return f.Interface(), nil
}

// Set assigns v to col in model, converting it to the field type.
func Set(cat *schema.Catalog, model any, col *schema.Column, v any) error {
	rv, err := structValue(cat, model)
	if err != nil {
		return err
	}
	f := field(rv, col)
	if !f.IsValid() {
		return &errs.UnknownColumnError{Model: cat.Model(), Name: col.Name}
	}
	if err := assign(f, col.Type.Kind, v); err != nil {
		return fmt.Errorf("%s.%s: %w", cat.Model(), col.Name, err)
	}
	return nil
}

// PrimaryKey returns the primary key value of model.
func PrimaryKey(cat *schema.Catalog, model any) (any, error) {
	return Get(cat, model, cat.PrimaryKey())
}

// Values encodes the given columns of model for binding. Errors carry the 1-based
// position of the failing parameter.
func Values(cat *schema.Catalog, model any, cols []*schema.Column, d *dialect.Dialect) ([]any, error) {
	rv, err := structValue(cat, model)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(cols))
	for i, col := range cols {
		var v any
		if f := field(rv, col); f.IsValid() {
			v = f.Interface()
		}
		enc, err := codec.Encode(col.Type, v, d)
		if err != nil {
			return nil, &errs.BindError{Index: i + 1, Err: fmt.Errorf("%s: %w", col.Name, err)}
		}
		out[i] = enc
	}
	return out, nil
}

// IsZero reports whether col holds the zero value of its field type.
func IsZero(cat *schema.Catalog, model any, col *schema.Column) bool {
	rv, err := structValue(cat, model)
	if err != nil {
		return false
	}
	f := field(rv, col)
	return !f.IsValid() || f.IsZero()
}

// Snapshot collects the snapshot columns and primary key of model.
func Snapshot(cat *schema.Catalog, model any) (codec.Snapshot, error) {
	id, err := PrimaryKey(cat, model)
	if err != nil {
		return codec.Snapshot{}, err
	}
	s := codec.Snapshot{Model: cat.Model(), ID: id, Fields: make(map[string]any)}
	for _, col := range cat.SnapshotColumns() {
		v, err := Get(cat, model, col)
		if err != nil {
			return codec.Snapshot{}, err
		}
		s.Fields[col.Name] = v
	}
	return s, nil
}
