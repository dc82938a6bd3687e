package mutation

import (
	"reflect"
	"testing"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/schema"
)

type Account struct {
	ID      int64          `orm:"primary_key,auto_increment"`
	Name    string         `orm:"not_null"`
	Age     uint32         `orm:"comment='age in years'"`
	Secret  string         `orm:"write_only"`
	Role    string         `orm:"read_only"`
	Version int64          `orm:"generated"`
	Data    map[string]any `orm:"column_name=payload"`
}

func accountCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat, err := schema.For[Account]()
	if err != nil {
		t.Fatalf("Account catalog: %v", err)
	}
	return cat
}

func TestFormatUpdates(t *testing.T) {
	cat := accountCatalog(t)

	tests := []struct {
		name     string
		dialect  *dialect.Dialect
		mutation *Mutation
		want     string
	}{
		{
			name:    "whitelist and unknown operators",
			dialect: dialect.PostgresDialect,
			mutation: New("name", "age").
				Set("name", "x").
				Inc("age", 2).
				Set("secret", "y").
				Set("weird", map[string]any{"$wat": 1}),
			want: "name = 'x', age = age + 2",
		},
		{
			name:    "unknown operator on a known field is skipped",
			dialect: dialect.PostgresDialect,
			mutation: New().
				Set("age", map[string]any{"$wat": 1}).
				Set("name", "y"),
			want: "name = 'y'",
		},
		{
			name:     "read-only, generated and key columns are never updated",
			dialect:  dialect.PostgresDialect,
			mutation: New().Set("role", "admin").Set("version", 3).Set("id", 9).Set("name", "z"),
			want:     "name = 'z'",
		},
		{
			name:     "operators",
			dialect:  dialect.PostgresDialect,
			mutation: New().Mul("age", 3).Min("age", 10).Max("age", 1),
			want:     "age = age * 3, age = LEAST(age, 10), age = GREATEST(age, 1)",
		},
		{
			name:     "decrement of an unsigned column",
			dialect:  dialect.PostgresDialect,
			mutation: New().Set("name", "n").Inc("age", -1),
			want:     "name = 'n', age = age + -1",
		},
		{
			name:     "fractional multiplier",
			dialect:  dialect.MySQLDialect,
			mutation: New().Mul("age", 1.5).Max("age", "7"),
			want:     "age = age * 1.5, age = GREATEST(age, 7)",
		},
		{
			name:     "scalar min and max",
			dialect:  dialect.SQLiteDialect,
			mutation: New().Min("age", 10).Max("age", 1),
			want:     "age = MIN(age, 10), age = MAX(age, 1)",
		},
		{
			name:     "plain object is a json value",
			dialect:  dialect.SQLiteDialect,
			mutation: New().Set("data", map[string]any{"a": 1}),
			want:     `payload = '{"a":1}'`,
		},
		{
			name:     "physical names are accepted",
			dialect:  dialect.MySQLDialect,
			mutation: New().Set("payload", nil),
			want:     "payload = NULL",
		},
		{
			name:     "quotes are escaped",
			dialect:  dialect.SQLiteDialect,
			mutation: New().Set("name", "o'brien"),
			want:     "name = 'o''brien'",
		},
		{
			name:     "nothing applies",
			dialect:  dialect.SQLiteDialect,
			mutation: New("name").Set("age", 1),
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatUpdates(tt.mutation, cat, tt.dialect)
			if err != nil {
				t.Fatalf("FormatUpdates() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatUpdates() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatUpdatesOutOfRange(t *testing.T) {
	cat := accountCatalog(t)
	if _, err := FormatUpdates(New().Set("age", -1), cat, dialect.SQLiteDialect); err == nil {
		t.Error("FormatUpdates() should reject a negative unsigned value")
	}
}

func TestParse(t *testing.T) {
	doc := []byte(`{"name": "x", "age": {"$inc": 2}, "secret": "y", "weird": {"$wat": 1}, "data": {"k": [1, 2.5]}}`)
	m, err := Parse(doc, "name", "age")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var fields []string
	for _, e := range m.Updates {
		fields = append(fields, e.Field)
	}
	if want := []string{"name", "age", "secret", "weird", "data"}; !reflect.DeepEqual(fields, want) {
		t.Errorf("Parse() order = %v, want %v", fields, want)
	}
	if v, _ := m.Get("age"); !reflect.DeepEqual(v, map[string]any{"$inc": int64(2)}) {
		t.Errorf("Get(age) = %#v", v)
	}
	if v, _ := m.Get("data"); !reflect.DeepEqual(v, map[string]any{"k": []any{int64(1), 2.5}}) {
		t.Errorf("Get(data) = %#v", v)
	}

	got, err := FormatUpdates(m, accountCatalog(t), dialect.PostgresDialect)
	if err != nil {
		t.Fatalf("FormatUpdates() error = %v", err)
	}
	if want := "name = 'x', age = age + 2"; got != want {
		t.Errorf("FormatUpdates() = %q, want %q", got, want)
	}
	if applied := Applied(m, accountCatalog(t)); !reflect.DeepEqual(applied, []string{"name", "age"}) {
		t.Errorf("Applied() = %v", applied)
	}
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, doc := range []string{`[1, 2]`, `"x"`, `{"a": }`} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("Parse(%s) should fail", doc)
		}
	}
}

func TestFormatUpdatesRejectsNonNumericOperand(t *testing.T) {
	cat := accountCatalog(t)
	if _, err := FormatUpdates(New().Inc("age", "ten"), cat, dialect.SQLiteDialect); err == nil {
		t.Error("FormatUpdates() expected error for a non-numeric operand")
	}
}
