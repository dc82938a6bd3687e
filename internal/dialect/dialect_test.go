package dialect

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		in      string
		want    *Dialect
		wantErr bool
	}{
		{"postgres", PostgresDialect, false},
		{"PostgreSQL", PostgresDialect, false},
		{"mariadb", MySQLDialect, false},
		{" sqlite3 ", SQLiteDialect, false},
		{"duckdb", DuckDBDialect, false},
		{"oracle", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Lookup(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Lookup(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBind(t *testing.T) {
	if got := PostgresDialect.Bind(3); got != "$3" {
		t.Errorf("postgres Bind(3) = %s", got)
	}
	if got := MySQLDialect.Bind(3); got != "?" {
		t.Errorf("mysql Bind(3) = %s", got)
	}
}

func TestFormatIdentifier(t *testing.T) {
	tests := []struct {
		d    *Dialect
		in   string
		want string
	}{
		{PostgresDialect, "name", "name"},
		{PostgresDialect, "user", `"user"`},
		{PostgresDialect, "createdAt", `"createdAt"`},
		{MySQLDialect, "order", "`order`"},
		{MySQLDialect, "we`ird", "`we``ird`"},
	}
	for _, tt := range tests {
		t.Run(string(tt.d.Name)+"/"+tt.in, func(t *testing.T) {
			if got := tt.d.FormatIdentifier(tt.in); got != tt.want {
				t.Errorf("FormatIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuoteIdentifierDotted(t *testing.T) {
	if got := PostgresDialect.QuoteIdentifier("owner.name"); got != `"owner"."name"` {
		t.Errorf("QuoteIdentifier() = %s", got)
	}
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		d             *Dialect
		limit, offset int
		want          string
	}{
		{SQLiteDialect, 0, 0, ""},
		{SQLiteDialect, 10, 0, "LIMIT 10"},
		{SQLiteDialect, 10, 20, "LIMIT 10 OFFSET 20"},
		{PostgresDialect, 0, 5, "OFFSET 5"},
		{MySQLDialect, 0, 5, "LIMIT 18446744073709551615 OFFSET 5"},
	}
	for _, tt := range tests {
		if got := tt.d.LimitOffset(tt.limit, tt.offset); got != tt.want {
			t.Errorf("%s LimitOffset(%d, %d) = %q, want %q", tt.d.Name, tt.limit, tt.offset, got, tt.want)
		}
	}
}

func TestLeastGreatest(t *testing.T) {
	if got := SQLiteDialect.Least("a", "1"); got != "MIN(a, 1)" {
		t.Errorf("sqlite Least = %s", got)
	}
	if got := PostgresDialect.Greatest("a", "1"); got != "GREATEST(a, 1)" {
		t.Errorf("postgres Greatest = %s", got)
	}
}

func TestUpsert(t *testing.T) {
	tests := []struct {
		name string
		d    *Dialect
		set  []string
		want string
	}{
		{"postgres", PostgresDialect, []string{"name", "age"}, "ON CONFLICT (id) DO UPDATE SET name = excluded.name, age = excluded.age"},
		{"postgres nothing to set", PostgresDialect, nil, "ON CONFLICT (id) DO NOTHING"},
		{"mysql", MySQLDialect, []string{"name"}, "ON DUPLICATE KEY UPDATE name = VALUES(name)"},
		{"mysql nothing to set", MySQLDialect, nil, "ON DUPLICATE KEY UPDATE id = id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Upsert("id", tt.set); got != tt.want {
				t.Errorf("Upsert() = %s, want %s", got, tt.want)
			}
		})
	}
}
