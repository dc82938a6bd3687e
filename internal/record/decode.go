package record

import (
	"encoding"
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

var (
	timeType          = reflect.TypeFor[time.Time]()
	textUnmarshalType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// decodeColumn reads col from row. The second result is false when the row does
// not carry the column and the column does not coalesce.
func decodeColumn(col *schema.Column, row driver.Row, index int, d *dialect.Dialect) (any, bool, error) {
	raw, ok := row.Get(col.ColumnName)
	if !ok {
		if col.Coalesce() {
			return codec.Zero(col.Type), true, nil
		}
		return nil, false, nil
	}
	v, err := codec.Decode(col.Type, raw, d)
	if err != nil {
		return nil, false, &errs.DecodeError{Column: col.ColumnName, Row: index, Err: err}
	}
	if v == nil && col.Coalesce() {
		v = codec.Zero(col.Type)
	}
	return v, true, nil
}

// DecodeRow fills the struct behind model from row. Write-only columns and columns
// absent from the row are left untouched. index is the 0-based row position,
// reported in decode errors.
func DecodeRow(cat *schema.Catalog, d *dialect.Dialect, row driver.Row, index int, model any) error {
	rv, err := structValue(cat, model)
	if err != nil {
		return err
	}
	for _, col := range cat.ReadableColumns() {
		v, ok, err := decodeColumn(col, row, index, d)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		f := field(rv, col)
		if !f.IsValid() {
			continue
		}
		if v == nil && f.Kind() != reflect.Pointer && f.Kind() != reflect.Interface &&
			f.Kind() != reflect.Map && f.Kind() != reflect.Slice {
			return &errs.DecodeError{Column: col.ColumnName, Row: index, Err: errs.ErrNull}
		}
		if err := assign(f, col.Type.Kind, v); err != nil {
			return &errs.DecodeError{Column: col.ColumnName, Row: index, Err: err}
		}
	}
	return nil
}

// DecodeMap decodes row into a map keyed by logical column names. Row columns
// outside the catalog, such as aggregates and joined paths, are kept under their
// result name, renamed by the catalog's case convention.
func DecodeMap(cat *schema.Catalog, d *dialect.Dialect, row driver.Row, index int) (map[string]any, error) {
	out := make(map[string]any, len(row.Columns()))
	seen := make(map[string]bool, len(row.Columns()))
	for _, col := range cat.ReadableColumns() {
		seen[col.ColumnName] = true
		v, ok, err := decodeColumn(col, row, index, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out[col.Name] = v
		}
	}
	for _, name := range row.Columns() {
		if seen[name] {
			continue
		}
		if col, ok := cat.Column(name); ok && col.WriteOnly {
			continue
		}
		raw, _ := row.Get(name)
		if b, ok := raw.([]byte); ok {
			raw = string(b)
		}
		key := name
		if cat.RenameAll() != "" {
			key = schema.Rename(name, cat.RenameAll())
		}
		out[key] = raw
	}
	return out, nil
}

// assign stores v into f, converting between compatible representations.
func assign(f reflect.Value, kind schema.Kind, v any) error {
	if v == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	ft := f.Type()
	if ft.Kind() == reflect.Pointer {
		elem := reflect.New(ft.Elem())
		if err := assign(elem.Elem(), kind, v); err != nil {
			return err
		}
		f.Set(elem)
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(ft) {
		f.Set(rv)
		return nil
	}

	switch {
	case ft.Kind() == reflect.String && rv.Type() == timeType:
		ts := v.(time.Time)
		switch kind {
		case schema.Date:
			f.SetString(ts.Format("2006-01-02"))
		case schema.Time:
			f.SetString(ts.Format("15:04:05.999999"))
		default:
			f.SetString(ts.Format(time.RFC3339Nano))
		}
		return nil
	case ft.Kind() == reflect.String && rv.Kind() != reflect.String:
		if s, ok := v.(fmt.Stringer); ok {
			f.SetString(s.String())
			return nil
		}
	case reflect.PointerTo(ft).Implements(textUnmarshalType) && rv.Kind() == reflect.String:
		return f.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(rv.String()))
	case isNumber(ft.Kind()) && isNumber(rv.Kind()):
		return assignNumber(f, rv)
	case ft.Kind() == reflect.Slice && rv.Kind() == reflect.Slice:
		out := reflect.MakeSlice(ft, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := assign(out.Index(i), kind, rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		f.Set(out)
		return nil
	}

	if rv.Type().ConvertibleTo(ft) && rv.Kind() == ft.Kind() {
		f.Set(rv.Convert(ft))
		return nil
	}
	switch ft.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Interface:
		// JSON columns decode to generic values; round-trip them into the field type
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, f.Addr().Interface())
	}
	return fmt.Errorf("cannot assign %T to %s", v, ft)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// assignNumber converts between numeric kinds, refusing values the field cannot hold.
func assignNumber(f, rv reflect.Value) error {
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		switch {
		case rv.CanInt():
			i = rv.Int()
		case rv.CanUint():
			u := rv.Uint()
			if u > 1<<63-1 {
				return fmt.Errorf("%d: %w", u, errs.ErrOutOfRange)
			}
			i = int64(u)
		default:
			fl := rv.Float()
			if fl != float64(int64(fl)) {
				return fmt.Errorf("%v is not an integer", fl)
			}
			i = int64(fl)
		}
		if f.OverflowInt(i) {
			return fmt.Errorf("%d: %w", i, errs.ErrOutOfRange)
		}
		f.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var u uint64
		switch {
		case rv.CanUint():
			u = rv.Uint()
		case rv.CanInt():
			if rv.Int() < 0 {
				return fmt.Errorf("%d: %w", rv.Int(), errs.ErrOutOfRange)
			}
			u = uint64(rv.Int())
		default:
			fl := rv.Float()
			if fl < 0 || fl != float64(uint64(fl)) {
				return fmt.Errorf("%v: %w", fl, errs.ErrOutOfRange)
			}
			u = uint64(fl)
		}
		if f.OverflowUint(u) {
			return fmt.Errorf("%d: %w", u, errs.ErrOutOfRange)
		}
		f.SetUint(u)
	default:
		switch {
		case rv.CanInt():
			f.SetFloat(float64(rv.Int()))
		case rv.CanUint():
			f.SetFloat(float64(rv.Uint()))
		default:
			f.SetFloat(rv.Float())
		}
	}
	return nil
}
