package codec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// Literal renders v as an SQL literal of type t. The value is first encoded,
// so a literal and a bound parameter carry the same representation.
func Literal(t schema.Type, v any, d *dialect.Dialect) (string, error) {
	if t.Kind == schema.Array && d.NativeArray {
		return arrayLiteral(t.Elem, v, d)
	}
	enc, err := Encode(t, v, d)
	if err != nil {
		return "", err
	}
	return formatLiteral(enc, d), nil
}

func formatLiteral(v any, d *dialect.Dialect) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case decimal.Decimal:
		return x.String()
	case uuid.UUID:
		return d.QuoteString(x.String())
	case []byte:
		if d.Name == dialect.Postgres {
			return `'\x` + hex.EncodeToString(x) + `'`
		}
		return "X'" + hex.EncodeToString(x) + "'"
	case string:
		return d.QuoteString(x)
	case time.Time:
		return d.QuoteString(x.UTC().Format(time.RFC3339Nano))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return d.QuoteString(fmt.Sprint(v))
	}
	return d.QuoteString(string(b))
}

func arrayLiteral(elem schema.Kind, v any, d *dialect.Dialect) (string, error) {
	enc, err := Encode(schema.Type{Kind: schema.Array, Elem: elem}, v, d)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return "NULL", nil
	}
	items, err := decodeArray(elem, enc, d)
	if err != nil {
		return "", err
	}
	if len(items.([]any)) == 0 {
		return "'{}'", nil
	}

	parts := make([]string, 0, len(items.([]any)))
	for _, item := range items.([]any) {
		lit, err := Literal(schema.Type{Kind: elem}, item, d)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return "ARRAY[" + strings.Join(parts, ", ") + "]", nil
}
