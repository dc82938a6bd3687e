package codec

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

func kind(k schema.Kind) schema.Type { return schema.Type{Kind: k} }

func TestEncodeUnsigned(t *testing.T) {
	tests := []struct {
		name string
		k    schema.Kind
		in   any
		want any
	}{
		{"u8 fits i8", schema.Uint8, uint8(100), int8(100)},
		{"u8 widens", schema.Uint8, uint8(200), int64(200)},
		{"u16 widens", schema.Uint16, uint16(60000), int64(60000)},
		{"u32 fits i32", schema.Uint32, uint32(7), int32(7)},
		{"u32 widens", schema.Uint32, uint32(4_000_000_000), int64(4_000_000_000)},
		{"u64 fits", schema.Uint64, uint64(1 << 40), int64(1 << 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(kind(tt.k), tt.in, dialect.SQLiteDialect)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		k    schema.Kind
		in   any
	}{
		{"i8 overflow", schema.Int8, 200},
		{"u16 overflow", schema.Uint16, 70000},
		{"u64 above int64", schema.Uint64, uint64(math.MaxUint64)},
		{"negative unsigned", schema.Uint32, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(kind(tt.k), tt.in, dialect.PostgresDialect)
			if !errors.Is(err, errs.ErrOutOfRange) {
				t.Errorf("Encode() error = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestUnsignedRoundTrip(t *testing.T) {
	for _, d := range []*dialect.Dialect{dialect.PostgresDialect, dialect.MySQLDialect, dialect.SQLiteDialect, dialect.DuckDBDialect} {
		t.Run(string(d.Name), func(t *testing.T) {
			enc, err := Encode(kind(schema.Uint32), uint32(4_000_000_000), d)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(kind(schema.Uint32), enc, d)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != uint32(4_000_000_000) {
				t.Errorf("round trip = %#v", got)
			}
		})
	}
}

func TestNativeUnsigned(t *testing.T) {
	tests := []struct {
		name string
		k    schema.Kind
		in   any
		want any
	}{
		{"u8", schema.Uint8, uint8(200), uint8(200)},
		{"u32", schema.Uint32, uint32(4_000_000_000), uint32(4_000_000_000)},
		{"u64 max", schema.Uint64, uint64(math.MaxUint64), uint64(math.MaxUint64)},
	}
	for _, d := range []*dialect.Dialect{dialect.MySQLDialect, dialect.DuckDBDialect} {
		for _, tt := range tests {
			t.Run(string(d.Name)+"/"+tt.name, func(t *testing.T) {
				enc, err := Encode(kind(tt.k), tt.in, d)
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				if enc != tt.want {
					t.Errorf("Encode() = %#v, want %#v", enc, tt.want)
				}
				got, err := Decode(kind(tt.k), enc, d)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("round trip = %#v, want %#v", got, tt.want)
				}
			})
		}
	}

	// the text protocol hands unsigned values back as digits
	got, err := Decode(kind(schema.Uint64), []byte("18446744073709551615"), dialect.MySQLDialect)
	if err != nil || got != uint64(math.MaxUint64) {
		t.Errorf("Decode(text) = %#v, %v", got, err)
	}

	lit, err := Literal(kind(schema.Uint64), uint64(math.MaxUint64), dialect.MySQLDialect)
	if err != nil || lit != "18446744073709551615" {
		t.Errorf("Literal() = %s, %v", lit, err)
	}
}

func TestDecodeUnsignedRejectsOverflow(t *testing.T) {
	if _, err := Decode(kind(schema.Uint8), int64(300), dialect.SQLiteDialect); !errors.Is(err, errs.ErrOutOfRange) {
		t.Errorf("Decode() error = %v, want ErrOutOfRange", err)
	}
}

func TestDateTime(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 30, 0, 123_000_000, time.UTC)

	enc, err := Encode(kind(schema.DateTime), ts, dialect.SQLiteDialect)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if enc != ts.UnixMilli() {
		t.Errorf("sqlite datetime = %#v, want epoch milliseconds", enc)
	}
	back, err := Decode(kind(schema.DateTime), enc, dialect.SQLiteDialect)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !back.(time.Time).Equal(ts) {
		t.Errorf("decoded %v, want %v", back, ts)
	}

	enc, err = Encode(kind(schema.DateTime), ts, dialect.PostgresDialect)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if enc != "2024-03-09T10:30:00.123Z" {
		t.Errorf("postgres datetime = %#v", enc)
	}
}

func TestNativeTypes(t *testing.T) {
	id := uuid.MustParse("0190d1c4-3a5e-7b2c-9f00-0123456789ab")
	price := decimal.RequireFromString("12.50")

	tests := []struct {
		name string
		t    schema.Type
		in   any
		d    *dialect.Dialect
		want any
	}{
		{"uuid native", kind(schema.UUID), id, dialect.PostgresDialect, id},
		{"uuid text", kind(schema.UUID), id, dialect.SQLiteDialect, id.String()},
		{"decimal native", kind(schema.Decimal), price, dialect.MySQLDialect, price},
		{"decimal text", kind(schema.Decimal), price, dialect.SQLiteDialect, "12.5"},
		{"pointer", kind(schema.String), ptr("x"), dialect.SQLiteDialect, "x"},
		{"nil pointer", kind(schema.String), (*string)(nil), dialect.SQLiteDialect, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.t, tt.in, tt.d)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestArrays(t *testing.T) {
	arr := schema.Type{Kind: schema.Array, Elem: schema.Int64}

	enc, err := Encode(arr, []int64{1, 2, 3}, dialect.SQLiteDialect)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if enc != "[1,2,3]" {
		t.Errorf("sqlite array = %#v, want JSON text", enc)
	}
	got, err := Decode(arr, enc, dialect.SQLiteDialect)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if want := []any{int64(1), int64(2), int64(3)}; !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %#v, want %#v", got, want)
	}

	lit, err := Literal(arr, []int64{4, 5}, dialect.PostgresDialect)
	if err != nil {
		t.Fatalf("Literal() error = %v", err)
	}
	if lit != "ARRAY[4, 5]" {
		t.Errorf("Literal() = %s", lit)
	}
}

func TestBytesHexPrefix(t *testing.T) {
	tests := []struct {
		name   string
		decode bool
		d      *dialect.Dialect
		want   []byte
	}{
		{"encode keeps text", false, dialect.PostgresDialect, []byte(`\x41`)},
		{"sqlite decode keeps text", true, dialect.SQLiteDialect, []byte(`\x41`)},
		{"postgres bytea text", true, dialect.PostgresDialect, []byte("A")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got any
			var err error
			if tt.decode {
				got, err = Decode(kind(schema.Bytes), `\x41`, tt.d)
			} else {
				got, err = Encode(kind(schema.Bytes), `\x41`, tt.d)
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	got, err := Decode(kind(schema.JSON), `{"a": 1, "b": [1.5, "x"]}`, dialect.SQLiteDialect)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := map[string]any{"a": int64(1), "b": []any{1.5, "x"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %#v, want %#v", got, want)
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		t    schema.Type
		in   any
		d    *dialect.Dialect
		want string
	}{
		{"string", kind(schema.String), "it's", dialect.PostgresDialect, "'it''s'"},
		{"mysql backslash", kind(schema.String), `a\b`, dialect.MySQLDialect, `'a\\b'`},
		{"unsigned", kind(schema.Uint32), 2, dialect.SQLiteDialect, "2"},
		{"bool", kind(schema.Bool), true, dialect.SQLiteDialect, "TRUE"},
		{"null", kind(schema.String), nil, dialect.SQLiteDialect, "NULL"},
		{"bytes postgres", kind(schema.Bytes), []byte{0xde, 0xad}, dialect.PostgresDialect, `'\xdead'`},
		{"bytes sqlite", kind(schema.Bytes), []byte{0xde, 0xad}, dialect.SQLiteDialect, "X'dead'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.t, tt.in, tt.d)
			if err != nil {
				t.Fatalf("Literal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Literal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestZero(t *testing.T) {
	if got := Zero(kind(schema.Uint16)); got != uint16(0) {
		t.Errorf("Zero(u16) = %#v", got)
	}
	if got := Zero(kind(schema.String)); got != "" {
		t.Errorf("Zero(string) = %#v", got)
	}
}

func TestSnapshot(t *testing.T) {
	id := uuid.New()
	s := Snapshot{Model: "Note", ID: id, Fields: map[string]any{"title": "x", "owner_id": int64(3)}}

	a, err := EncodeSnapshot(s)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}
	b, _ := EncodeSnapshot(s)
	if string(a) != string(b) {
		t.Error("equal snapshots should encode to equal bytes")
	}

	got, err := DecodeSnapshot(a)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if got.Model != "Note" || got.Version != SnapshotVersion || got.ID != id.String() {
		t.Errorf("decoded %+v", got)
	}
	if got.Fields["title"] != "x" {
		t.Errorf("fields = %#v", got.Fields)
	}

	if _, err := DecodeSnapshot([]byte{0xc1}); err == nil {
		t.Error("DecodeSnapshot() expected error for garbage")
	}
}
