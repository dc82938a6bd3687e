package schema

import (
	"fmt"
	"strings"
)

// Kind is the domain type of a column
type Kind int

const (
	Invalid Kind = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Decimal
	String
	Bytes
	UUID
	DateTime
	Date
	Time
	JSON
	Array
)

var kindNames = map[Kind]string{
	Bool:     "bool",
	Int8:     "i8",
	Int16:    "i16",
	Int32:    "i32",
	Int64:    "i64",
	Uint8:    "u8",
	Uint16:   "u16",
	Uint32:   "u32",
	Uint64:   "u64",
	Float32:  "f32",
	Float64:  "f64",
	Decimal:  "decimal",
	String:   "string",
	Bytes:    "bytes",
	UUID:     "uuid",
	DateTime: "datetime",
	Date:     "date",
	Time:     "time",
	JSON:     "json",
	Array:    "array",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// IsSigned reports signed integer kinds.
func (k Kind) IsSigned() bool {
	return k >= Int8 && k <= Int64
}

// IsUnsigned reports unsigned integer kinds.
func (k Kind) IsUnsigned() bool {
	return k >= Uint8 && k <= Uint64
}

// IsInteger reports any integer kind.
func (k Kind) IsInteger() bool {
	return k.IsSigned() || k.IsUnsigned()
}

// IsNumeric reports integer, float and decimal kinds.
func (k Kind) IsNumeric() bool {
	return k.IsInteger() || k == Float32 || k == Float64 || k == Decimal
}

// Bits returns the width of integer kinds, 0 otherwise.
func (k Kind) Bits() int {
	switch k {
	case Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32:
		return 32
	case Int64, Uint64:
		return 64
	}
	return 0
}

// Signed maps an unsigned kind to the signed kind of equal width.
func (k Kind) Signed() Kind {
	if k.IsUnsigned() {
		return k - (Uint8 - Int8)
	}
	return k
}

// Type is the full type of a column: a kind, the element kind for arrays,
// and whether the value is optional.
type Type struct {
	Kind     Kind
	Elem     Kind
	Optional bool
}

func (t Type) String() string {
	s := t.Kind.String()
	if t.Kind == Array {
		s = fmt.Sprintf("array<%s>", t.Elem)
	}
	if t.Optional {
		s = fmt.Sprintf("option<%s>", s)
	}
	return s
}

// ParseType parses the textual form produced by Type.String, e.g. "option<array<string>>".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	var t Type
	if inner, ok := unwrap(s, "option"); ok {
		t.Optional = true
		s = inner
	}
	if inner, ok := unwrap(s, "array"); ok {
		elem, err := parseKind(inner)
		if err != nil {
			return Type{}, err
		}
		if elem == Array {
			return Type{}, fmt.Errorf("nested arrays are not supported: %s", s)
		}
		t.Kind = Array
		t.Elem = elem
		return t, nil
	}
	k, err := parseKind(s)
	if err != nil {
		return Type{}, err
	}
	t.Kind = k
	return t, nil
}

func unwrap(s, name string) (string, bool) {
	if strings.HasPrefix(s, name+"<") && strings.HasSuffix(s, ">") {
		return s[len(name)+1 : len(s)-1], true
	}
	return s, false
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "int":
		return Int64, nil
	case "uint":
		return Uint64, nil
	case "float", "double":
		return Float64, nil
	case "text", "str":
		return String, nil
	case "timestamp":
		return DateTime, nil
	case "map", "object":
		return JSON, nil
	}
	for k, name := range kindNames {
		if name == s && k != Array {
			return k, nil
		}
	}
	return Invalid, fmt.Errorf("unknown type: %s", s)
}
