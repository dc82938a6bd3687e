// Package mutation renders caller-supplied updates into the body of a SET clause.
//
// An update is an ordered list of (field, value) entries. A value is either a plain
// value assigned to the field, or a single-entry operator object:
//
//	{"$inc": 2}  age = age + 2
//	{"$mul": 2}  age = age * 2
//	{"$min": 2}  age = LEAST(age, 2)
//	{"$max": 2}  age = GREATEST(age, 2)
//
// Fields outside the catalog's editable columns or the mutation's whitelist are
// skipped, and so are objects carrying an unknown $ operator.
package mutation

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// Operator is an update operator key
type Operator string

const (
	Inc Operator = "$inc"
	Mul Operator = "$mul"
	Min Operator = "$min"
	Max Operator = "$max"
)

// Entry is one field update.
type Entry struct {
	Field string
	Value any
}

// Mutation is an ordered list of updates and an optional whitelist of fields
// the caller permits to change.
type Mutation struct {
	Fields  []string
	Updates []Entry
}

// New returns an empty mutation restricted to fields. No fields means no whitelist.
func New(fields ...string) *Mutation {
	return &Mutation{Fields: fields}
}

// Set assigns v to field.
func (m *Mutation) Set(field string, v any) *Mutation {
	m.Updates = append(m.Updates, Entry{Field: field, Value: v})
	return m
}

func (m *Mutation) Inc(field string, v any) *Mutation { return m.apply(field, Inc, v) }
func (m *Mutation) Mul(field string, v any) *Mutation { return m.apply(field, Mul, v) }
func (m *Mutation) Min(field string, v any) *Mutation { return m.apply(field, Min, v) }
func (m *Mutation) Max(field string, v any) *Mutation { return m.apply(field, Max, v) }

func (m *Mutation) apply(field string, op Operator, v any) *Mutation {
	return m.Set(field, map[string]any{string(op): v})
}

// Permits reports whether the whitelist allows field.
func (m *Mutation) Permits(field string) bool {
	if len(m.Fields) == 0 {
		return true
	}
	for _, f := range m.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Get returns the value of the last update of field.
func (m *Mutation) Get(field string) (any, bool) {
	for i := len(m.Updates) - 1; i >= 0; i-- {
		if m.Updates[i].Field == field {
			return m.Updates[i].Value, true
		}
	}
	return nil, false
}

// Parse reads a JSON object into a mutation, keeping the key order of the document.
func Parse(doc []byte, fields ...string) (*Mutation, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse mutation: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("mutation must be a JSON object")
	}

	m := New(fields...)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse mutation: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("mutation key must be a string, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to parse mutation field %s: %w", key, err)
		}
		m.Set(key, normalize(v))
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse mutation: %w", err)
	}
	return m, nil
}

// normalize turns json.Number into int64 when integral, float64 otherwise.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, item := range x {
			x[k] = normalize(item)
		}
	case []any:
		for i, item := range x {
			x[i] = normalize(item)
		}
	}
	return v
}

// FormatUpdates renders the SET body of m against cat, or "" when no entry applies.
func FormatUpdates(m *Mutation, cat *schema.Catalog, d *dialect.Dialect) (string, error) {
	parts := make([]string, 0, len(m.Updates))
	for _, e := range m.Updates {
		s, ok, err := formatEntry(m, e, cat, d)
		if err != nil {
			return "", err
		}
		if ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}

// Applied returns the fields of m that FormatUpdates emits, in order.
func Applied(m *Mutation, cat *schema.Catalog) []string {
	var out []string
	for _, e := range m.Updates {
		if col, ok := target(m, e.Field, cat); ok {
			if obj, isObj := e.Value.(map[string]any); isObj {
				if _, _, known := operator(obj); !known && hasOperatorKey(obj) {
					continue
				}
			}
			out = append(out, col.Name)
		}
	}
	return out
}

func target(m *Mutation, field string, cat *schema.Catalog) (*schema.Column, bool) {
	col, ok := cat.Column(field)
	if !ok || !cat.IsEditable(field) {
		return nil, false
	}
	if !m.Permits(field) && !m.Permits(col.Name) {
		return nil, false
	}
	return col, true
}

func formatEntry(m *Mutation, e Entry, cat *schema.Catalog, d *dialect.Dialect) (string, bool, error) {
	col, ok := target(m, e.Field, cat)
	if !ok {
		return "", false, nil
	}
	name := cat.FormatColumn(col, d)

	obj, isObj := e.Value.(map[string]any)
	if !isObj {
		lit, err := codec.Literal(col.Type, e.Value, d)
		if err != nil {
			return "", false, fmt.Errorf("field %s: %w", col.Name, err)
		}
		return name + " = " + lit, true, nil
	}

	op, v, known := operator(obj)
	if !known {
		if hasOperatorKey(obj) {
			return "", false, nil
		}
		// a plain object is a JSON value
		lit, err := codec.Literal(col.Type, obj, d)
		if err != nil {
			return "", false, fmt.Errorf("field %s: %w", col.Name, err)
		}
		return name + " = " + lit, true, nil
	}

	lit, err := operand(col, v, d)
	if err != nil {
		return "", false, fmt.Errorf("field %s: %w", col.Name, err)
	}
	switch op {
	case Inc:
		return fmt.Sprintf("%s = %s + %s", name, name, lit), true, nil
	case Mul:
		return fmt.Sprintf("%s = %s * %s", name, name, lit), true, nil
	case Min:
		return fmt.Sprintf("%s = %s", name, d.Least(name, lit)), true, nil
	case Max:
		return fmt.Sprintf("%s = %s", name, d.Greatest(name, lit)), true, nil
	}
	return "", false, nil
}

// operand renders an operator argument as a numeric literal. Its sign and
// fraction are kept whatever the column kind, so $inc: -1 decrements an
// unsigned column.
func operand(col *schema.Column, v any, d *dialect.Dialect) (string, error) {
	if col.Type.Kind == schema.Decimal {
		return codec.Literal(schema.Type{Kind: schema.Decimal}, v, d)
	}
	var kind schema.Kind
	switch x := v.(type) {
	case decimal.Decimal:
		kind = schema.Decimal
	case json.Number:
		kind = numberKind(x.String())
	case string:
		kind = numberKind(strings.TrimSpace(x))
	default:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			kind = schema.Int64
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			kind = schema.Uint64
		case reflect.Float32, reflect.Float64:
			kind = schema.Float64
		}
	}
	if kind == schema.Invalid {
		return "", fmt.Errorf("operand %v is not a number", v)
	}
	return codec.Literal(schema.Type{Kind: kind}, v, d)
}

func numberKind(s string) schema.Kind {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return schema.Int64
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return schema.Float64
	}
	return schema.Invalid
}

// operator recognises a single-entry object holding a known operator.
func operator(obj map[string]any) (Operator, any, bool) {
	if len(obj) != 1 {
		return "", nil, false
	}
	for k, v := range obj {
		switch op := Operator(k); op {
		case Inc, Mul, Min, Max:
			return op, v, true
		}
	}
	return "", nil, false
}

func hasOperatorKey(obj map[string]any) bool {
	for k := range obj {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}
