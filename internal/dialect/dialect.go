// Package dialect describes the SQL engines the model runtime can target.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Name identifies a SQL engine
type Name string

const (
	Postgres Name = "postgres"
	MySQL    Name = "mysql"
	SQLite   Name = "sqlite"
	DuckDB   Name = "duckdb"
)

// PlaceholderStyle selects how bound parameters are written
type PlaceholderStyle int

const (
	// Question writes every parameter as ?
	Question PlaceholderStyle = iota
	// Dollar writes parameters as $1, $2, ...
	Dollar
)

// Dialect is the small value that parameterises statement formatting and the
// value codec for one engine. Dialect values are shared and must not be modified.
type Dialect struct {
	Name        Name
	Placeholder PlaceholderStyle
	QuoteChar   byte

	// NativeUUID and NativeDecimal report column types the engine stores natively.
	// Values of kinds without native support travel as text.
	NativeUUID    bool
	NativeDecimal bool
	// NativeArray reports engine arrays; otherwise arrays travel as JSON text.
	NativeArray bool
	// NativeUnsigned reports UNSIGNED integer column types. Unsigned values then
	// travel at their own width instead of as the signed counterpart.
	NativeUnsigned bool
	// DatetimeAsText transports datetimes as text; otherwise as epoch milliseconds.
	DatetimeAsText bool

	SupportsILike bool
	// IndexIfNotExists reports support for CREATE INDEX IF NOT EXISTS.
	IndexIfNotExists bool
	// GinFallback is the index method used for gin indexes, empty if none exists.
	GinFallback string
	// ScalarMinMax uses MIN(a, b)/MAX(a, b) instead of LEAST/GREATEST.
	ScalarMinMax bool
	// Returning reads generated keys with INSERT ... RETURNING; the engine reports
	// no last insert id.
	Returning bool
}

var (
	PostgresDialect = &Dialect{
		Name:             Postgres,
		Placeholder:      Dollar,
		QuoteChar:        '"',
		NativeUUID:       true,
		NativeDecimal:    true,
		NativeArray:      true,
		DatetimeAsText:   true,
		SupportsILike:    true,
		IndexIfNotExists: true,
		GinFallback:      "gin",
		Returning:        true,
	}

	MySQLDialect = &Dialect{
		Name:           MySQL,
		Placeholder:    Question,
		QuoteChar:      '`',
		NativeDecimal:  true,
		NativeUnsigned: true,
	}

	SQLiteDialect = &Dialect{
		Name:             SQLite,
		Placeholder:      Question,
		QuoteChar:        '"',
		IndexIfNotExists: true,
		ScalarMinMax:     true,
	}

	DuckDBDialect = &Dialect{
		Name:             DuckDB,
		Placeholder:      Question,
		QuoteChar:        '"',
		NativeUnsigned:   true,
		SupportsILike:    true,
		IndexIfNotExists: true,
		Returning:        true,
	}
)

// Lookup returns the dialect registered under name.
// "postgresql" and "sqlite3" are accepted as aliases.
func Lookup(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return PostgresDialect, nil
	case "mysql", "mariadb":
		return MySQLDialect, nil
	case "sqlite", "sqlite3":
		return SQLiteDialect, nil
	case "duckdb":
		return DuckDBDialect, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
}

// Bind returns the placeholder for the n-th parameter (1-based).
func (d *Dialect) Bind(n int) string {
	if d.Placeholder == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// QuoteIdentifier always quotes name, doubling any embedded quote character.
// Dotted names are quoted per segment.
func (d *Dialect) QuoteIdentifier(name string) string {
	q := string(d.QuoteChar)
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// FormatIdentifier quotes name only when it is not a plain lower-case identifier
// or collides with a reserved word.
func (d *Dialect) FormatIdentifier(name string) string {
	if isPlainIdentifier(name) && !reserved[name] {
		return name
	}
	return d.QuoteIdentifier(name)
}

// QuoteString renders s as a string literal.
func (d *Dialect) QuoteString(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	if d.Name == MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + s + "'"
}

// LimitOffset renders the pagination clause, or "" when neither is set.
func (d *Dialect) LimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		if d.Name == MySQL {
			// MySQL has no OFFSET without LIMIT
			return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", offset)
		}
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}

// Least renders the smaller of two expressions.
func (d *Dialect) Least(a, b string) string {
	if d.ScalarMinMax {
		return fmt.Sprintf("MIN(%s, %s)", a, b)
	}
	return fmt.Sprintf("LEAST(%s, %s)", a, b)
}

// Greatest renders the larger of two expressions.
func (d *Dialect) Greatest(a, b string) string {
	if d.ScalarMinMax {
		return fmt.Sprintf("MAX(%s, %s)", a, b)
	}
	return fmt.Sprintf("GREATEST(%s, %s)", a, b)
}

// Upsert renders the conflict clause that follows an INSERT for the given key column,
// assigning every column in set from the proposed row.
func (d *Dialect) Upsert(key string, set []string) string {
	assign := make([]string, 0, len(set))
	if d.Name == MySQL {
		for _, c := range set {
			assign = append(assign, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		if len(assign) == 0 {
			assign = append(assign, fmt.Sprintf("%s = %s", key, key))
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(assign, ", ")
	}

	for _, c := range set {
		assign = append(assign, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	if len(assign) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", key)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(assign, ", "))
}

func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var reserved = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "between": true, "by": true,
	"case": true, "check": true, "column": true, "constraint": true, "create": true,
	"default": true, "desc": true, "distinct": true, "else": true, "end": true,
	"from": true, "group": true, "having": true, "in": true, "index": true,
	"insert": true, "into": true, "is": true, "join": true, "key": true, "like": true,
	"limit": true, "not": true, "null": true, "offset": true, "on": true, "or": true,
	"order": true, "primary": true, "references": true, "select": true, "set": true,
	"table": true, "then": true, "to": true, "union": true, "unique": true,
	"update": true, "user": true, "using": true, "values": true, "when": true,
	"where": true, "with": true,
}
