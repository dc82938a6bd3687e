package record

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// ReadMap reads caller input into model and validates it. Keys are logical or
// physical column names; unknown keys and read-only or generated columns are ignored.
// Every rejected field is reported in one ValidationError.
func ReadMap(cat *schema.Catalog, d *dialect.Dialect, data map[string]any, model any) error {
	rv, err := structValue(cat, model)
	if err != nil {
		return err
	}

	verr := &errs.ValidationError{}
	for _, col := range cat.Columns() {
		v, ok := data[col.Name]
		if !ok {
			if v, ok = data[col.ColumnName]; !ok {
				continue
			}
		}
		if col.ReadOnly || col.Generated {
			continue
		}
		f := field(rv, &col)
		if !f.IsValid() {
			continue
		}
		if err := readField(f, &col, v, d); err != nil {
			verr.Add(col.Name, err.Error())
		}
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

func readField(f reflect.Value, col *schema.Column, v any, d *dialect.Dialect) error {
	if v == nil {
		if !col.Type.Optional && col.NotNull {
			return errors.New("should not be null")
		}
		f.Set(reflect.Zero(f.Type()))
		return nil
	}

	v, err := normalizeInput(col, f.Type(), v, d)
	if err != nil {
		return err
	}
	if col.NotNull && col.Type.Kind == schema.String {
		if s, ok := v.(string); ok && s == "" {
			return errors.New("should be nonempty")
		}
	}

	target := reflect.New(f.Type())
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ZeroFields:       true,
		TagName:          "json",
		Result:           target.Interface(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	f.Set(target.Elem())
	return nil
}

// normalizeInput converts values mapstructure has no rule for, such as timestamps
// and decimals given as text or numbers, and checks integer ranges.
func normalizeInput(col *schema.Column, ft reflect.Type, v any, d *dialect.Dialect) (any, error) {
	for ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	if ft.Kind() == reflect.String {
		return v, nil
	}
	k := col.Type.Kind
	switch {
	case k.IsInteger():
		if _, err := codec.Encode(schema.Type{Kind: k}, v, d); err != nil {
			return nil, err
		}
	case k == schema.DateTime || k == schema.Date:
		if _, ok := v.(time.Time); ok {
			return v, nil
		}
		return codec.Decode(schema.Type{Kind: k}, v, d)
	case k == schema.Decimal || k == schema.UUID:
		return codec.Decode(schema.Type{Kind: k}, v, d)
	}
	return v, nil
}
