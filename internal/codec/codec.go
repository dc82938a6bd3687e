// Package codec maps domain values to driver values and back.
//
// Every column kind has an Encode and a Decode rule, parameterised by the dialect:
//   - unsigned integers travel at their own width where the engine has unsigned
//     columns; elsewhere as the signed integer of equal width when they fit,
//     widened to int64 otherwise, and never by reinterpreting the sign bit
//   - decimal and uuid travel as text where the engine has no native type
//   - datetime travels as RFC 3339 text where DatetimeAsText is set, as epoch milliseconds otherwise
//   - arrays use the engine's array type or a JSON array
//
// SQL NULL decodes to nil; the caller applies the column's coalescing rule with Zero.
package codec

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05.999999"
)

// Encode maps a native value of type t to the value bound to the driver.
func Encode(t schema.Type, v any, d *dialect.Dialect) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	if t.Kind == schema.Array {
		return encodeArray(t.Elem, v, d)
	}
	return encodeScalar(t.Kind, v, d)
}

func encodeScalar(k schema.Kind, v any, d *dialect.Dialect) (any, error) {
	v, err := unwrapValuer(v)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	switch {
	case k == schema.Bool:
		return toBool(v)
	case k.IsSigned():
		i, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return narrowSigned(k, i)
	case k.IsUnsigned():
		u, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		return encodeUnsigned(k, u, d)
	case k == schema.Float32:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case k == schema.Float64:
		return toFloat64(v)
	case k == schema.Decimal:
		dec, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		if d.NativeDecimal {
			return dec, nil
		}
		return dec.String(), nil
	case k == schema.String:
		return toString(v)
	case k == schema.Bytes:
		return toBytes(v)
	case k == schema.UUID:
		id, err := toUUID(v)
		if err != nil {
			return nil, err
		}
		if d.NativeUUID {
			return id, nil
		}
		return id.String(), nil
	case k == schema.DateTime:
		ts, err := toTime(v)
		if err != nil {
			return nil, err
		}
		if d.DatetimeAsText {
			return ts.Format(time.RFC3339Nano), nil
		}
		return ts.UnixMilli(), nil
	case k == schema.Date:
		if s, ok := v.(string); ok {
			return s, nil
		}
		ts, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return ts.Format(dateLayout), nil
	case k == schema.Time:
		if s, ok := v.(string); ok {
			return s, nil
		}
		ts, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return ts.Format(timeLayout), nil
	case k == schema.JSON:
		return encodeJSON(v)
	}
	return nil, fmt.Errorf("unsupported kind %s", k)
}

func narrowSigned(k schema.Kind, i int64) (any, error) {
	bits := k.Bits()
	if bits < 64 {
		limit := int64(1) << (bits - 1)
		if i < -limit || i >= limit {
			return nil, fmt.Errorf("%d does not fit %s: %w", i, k, errs.ErrOutOfRange)
		}
	}
	switch k {
	case schema.Int8:
		return int8(i), nil
	case schema.Int16:
		return int16(i), nil
	case schema.Int32:
		return int32(i), nil
	}
	return i, nil
}

// encodeUnsigned keeps the value, never its bit pattern. Engines with unsigned
// columns take it at its own width; elsewhere values above the signed
// counterpart's range are widened to int64.
func encodeUnsigned(k schema.Kind, u uint64, d *dialect.Dialect) (any, error) {
	if d.NativeUnsigned {
		return narrowUnsigned(k, u)
	}
	bits := k.Bits()
	if bits < 64 && u >= uint64(1)<<bits {
		return nil, fmt.Errorf("%d does not fit %s: %w", u, k, errs.ErrOutOfRange)
	}
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%d exceeds the signed 64-bit range: %w", u, errs.ErrOutOfRange)
	}
	if bits < 64 && u >= uint64(1)<<(bits-1) {
		return int64(u), nil
	}
	return narrowSigned(k.Signed(), int64(u))
}

func encodeJSON(v any) (any, error) {
	switch x := v.(type) {
	case json.RawMessage:
		return string(x), nil
	case []byte:
		if json.Valid(x) {
			return string(x), nil
		}
	case string:
		if json.Valid([]byte(x)) {
			return x, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

func encodeArray(elem schema.Kind, v any, d *dialect.Dialect) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		// already a JSON array
		items, err := decodeJSONArray(rv.String())
		if err != nil {
			return nil, err
		}
		rv = reflect.ValueOf(items)
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot encode %T as array", v)
	}

	items := make([]any, rv.Len())
	for i := range items {
		item, err := encodeScalar(elem, rv.Index(i).Interface(), d)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = item
	}

	if d.NativeArray {
		return nativeArray(elem, items), nil
	}
	b, err := json.Marshal(jsonFriendly(items))
	if err != nil {
		return nil, fmt.Errorf("encode array: %w", err)
	}
	return string(b), nil
}

// nativeArray builds the typed slice a driver maps to an engine array.
func nativeArray(elem schema.Kind, items []any) any {
	switch {
	case elem == schema.Bool:
		return typedSlice[bool](items)
	case elem.IsInteger():
		out := make([]int64, len(items))
		for i, item := range items {
			out[i], _ = toInt64(item)
		}
		return out
	case elem == schema.Float32 || elem == schema.Float64:
		out := make([]float64, len(items))
		for i, item := range items {
			out[i], _ = toFloat64(item)
		}
		return out
	case elem == schema.UUID:
		out := make([][16]byte, len(items))
		for i, item := range items {
			id, _ := toUUID(item)
			out[i] = id
		}
		return out
	case elem == schema.Bytes:
		return typedSlice[[]byte](items)
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = toString(item)
	}
	return out
}

func typedSlice[T any](items []any) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i], _ = item.(T)
	}
	return out
}

func jsonFriendly(items []any) []any {
	for i, item := range items {
		switch x := item.(type) {
		case uuid.UUID:
			items[i] = x.String()
		case decimal.Decimal:
			items[i] = x.String()
		}
	}
	return items
}

// Decode maps a driver value to the native value of type t. SQL NULL yields nil.
func Decode(t schema.Type, raw any, d *dialect.Dialect) (any, error) {
	raw = deref(raw)
	if raw == nil {
		return nil, nil
	}
	if t.Kind == schema.Array {
		return decodeArray(t.Elem, raw, d)
	}
	return decodeScalar(t.Kind, raw, d)
}

func decodeScalar(k schema.Kind, raw any, d *dialect.Dialect) (any, error) {
	raw, err := unwrapValuer(raw)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	switch {
	case k == schema.Bool:
		return toBool(raw)
	case k.IsSigned():
		i, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return narrowSigned(k, i)
	case k.IsUnsigned():
		u, err := toUint64(raw)
		if err != nil {
			return nil, err
		}
		return narrowUnsigned(k, u)
	case k == schema.Float32:
		f, err := toFloat64(raw)
		return float32(f), err
	case k == schema.Float64:
		return toFloat64(raw)
	case k == schema.Decimal:
		return toDecimal(raw)
	case k == schema.String:
		return toString(raw)
	case k == schema.Bytes:
		return decodeBytes(raw, d)
	case k == schema.UUID:
		return toUUID(raw)
	case k == schema.DateTime, k == schema.Date:
		return toTime(raw)
	case k == schema.Time:
		if ts, ok := raw.(time.Time); ok {
			return ts.Format(timeLayout), nil
		}
		return toString(raw)
	case k == schema.JSON:
		return decodeJSON(raw)
	}
	return nil, fmt.Errorf("unsupported kind %s", k)
}

func narrowUnsigned(k schema.Kind, u uint64) (any, error) {
	bits := k.Bits()
	if bits < 64 && u >= uint64(1)<<bits {
		return nil, fmt.Errorf("%d does not fit %s: %w", u, k, errs.ErrOutOfRange)
	}
	switch k {
	case schema.Uint8:
		return uint8(u), nil
	case schema.Uint16:
		return uint16(u), nil
	case schema.Uint32:
		return uint32(u), nil
	}
	return u, nil
}

func decodeJSON(raw any) (any, error) {
	var text []byte
	switch x := raw.(type) {
	case string:
		text = []byte(x)
	case []byte:
		text = x
	default:
		// engines with a JSON type hand back decoded values
		return raw, nil
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(string(text)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers turns json.Number into int64 where exact, float64 otherwise.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeNumbers(item)
		}
	case []any:
		for i, item := range x {
			x[i] = normalizeNumbers(item)
		}
	}
	return v
}

func decodeJSONArray(s string) ([]any, error) {
	v, err := decodeJSON(s)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %T", v)
	}
	return items, nil
}

func decodeArray(elem schema.Kind, raw any, d *dialect.Dialect) (any, error) {
	var items []any
	switch x := raw.(type) {
	case []any:
		items = x
	case string:
		list, err := decodeJSONArray(x)
		if err != nil {
			return nil, err
		}
		items = list
	case []byte:
		list, err := decodeJSONArray(string(x))
		if err != nil {
			return nil, err
		}
		items = list
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("cannot decode %T as array", raw)
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	out := make([]any, len(items))
	for i, item := range items {
		v, err := Decode(schema.Type{Kind: elem}, item, d)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Zero returns the value a coalescing column takes for SQL NULL.
func Zero(t schema.Type) any {
	switch k := t.Kind; {
	case k == schema.Bool:
		return false
	case k.IsSigned():
		v, _ := narrowSigned(k, 0)
		return v
	case k.IsUnsigned():
		v, _ := narrowUnsigned(k, 0)
		return v
	case k == schema.Float32:
		return float32(0)
	case k == schema.Float64:
		return float64(0)
	case k == schema.Decimal:
		return decimal.Zero
	case k == schema.String, k == schema.Time:
		return ""
	case k == schema.Bytes:
		return []byte{}
	case k == schema.UUID:
		return uuid.Nil
	case k == schema.DateTime, k == schema.Date:
		return time.Time{}
	case k == schema.JSON:
		return map[string]any{}
	case k == schema.Array:
		return []any{}
	}
	return nil
}
