package record

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/sqlmodel/internal/schema"
)

// ApplyDefaults fills zero fields that carry a runtime default: "now", "uuid-v7",
// or "fn:Method" naming a method of the model that returns the value.
func ApplyDefaults(cat *schema.Catalog, model any, now time.Time) error {
	for i := range cat.Columns() {
		col := &cat.Columns()[i]
		if !col.HasRuntimeDefault() || !IsZero(cat, model, col) {
			continue
		}
		v, err := defaultValue(col, model, now)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", cat.Model(), col.Name, err)
		}
		if err := Set(cat, model, col, v); err != nil {
			return err
		}
	}
	return nil
}

func defaultValue(col *schema.Column, model any, now time.Time) (any, error) {
	if name, ok := col.DefaultFunc(); ok {
		m := reflect.ValueOf(model).MethodByName(name)
		if !m.IsValid() {
			return nil, fmt.Errorf("default method %s is not defined", name)
		}
		if m.Type().NumIn() != 0 || m.Type().NumOut() == 0 || m.Type().NumOut() > 2 {
			return nil, fmt.Errorf("default method %s must take no arguments and return a value", name)
		}
		out := m.Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			err, ok := out[1].Interface().(error)
			if !ok {
				return nil, fmt.Errorf("default method %s must return an error second", name)
			}
			return nil, err
		}
		return out[0].Interface(), nil
	}

	switch col.Default {
	case schema.DefaultNow:
		switch {
		case col.Type.Kind == schema.DateTime || col.Type.Kind == schema.Date:
			return now, nil
		case col.Type.Kind.IsInteger():
			return now.UnixMilli(), nil
		}
		return now.Format(time.RFC3339Nano), nil
	case schema.DefaultUUIDv7:
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		if col.Type.Kind == schema.UUID {
			return id, nil
		}
		return id.String(), nil
	}
	return nil, nil
}
