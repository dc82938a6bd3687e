package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/sqlmodel/internal/dialect"
)

// CreateTableSQL renders the CREATE TABLE statement for the catalog.
// Columns appear in declaration order.
func (c *Catalog) CreateTableSQL(d *dialect.Dialect) string {
	defs := make([]string, 0, len(c.columns))
	for i := range c.columns {
		defs = append(defs, "  "+c.fieldDefinition(&c.columns[i], d))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);",
		c.FormatTable(d), strings.Join(defs, ",\n"))
}

// CreateIndexesSQL renders one CREATE INDEX statement per indexed column.
// Index types the dialect cannot express are skipped; Omissions lists them.
func (c *Catalog) CreateIndexesSQL(d *dialect.Dialect) []string {
	var stmts []string
	for i := range c.columns {
		col := &c.columns[i]
		if col.IndexType == NoIndex {
			continue
		}
		if stmt, ok := c.indexDefinition(col, d); ok {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// Omission is a declared column feature the DDL of a dialect leaves out.
type Omission struct {
	Column  string
	Feature string
}

// Omissions lists what CreateTableSQL and CreateIndexesSQL leave out for d.
func (c *Catalog) Omissions(d *dialect.Dialect) []Omission {
	var out []Omission
	for i := range c.columns {
		col := &c.columns[i]
		if col.PrimaryKey && col.AutoIncrement && d.Name == dialect.DuckDB {
			out = append(out, Omission{Column: col.ColumnName, Feature: "auto_increment"})
		}
		if col.IndexType == NoIndex {
			continue
		}
		if _, ok := c.indexDefinition(col, d); !ok {
			out = append(out, Omission{Column: col.ColumnName, Feature: "index_type=" + string(col.IndexType)})
		}
	}
	return out
}

// IndexName returns the generated name of the index on col.
func (c *Catalog) IndexName(col *Column) string {
	return fmt.Sprintf("%s_%s_index", c.table, col.ColumnName)
}

func (c *Catalog) indexDefinition(col *Column, d *dialect.Dialect) (string, bool) {
	table := c.FormatTable(d)
	name := d.FormatIdentifier(c.IndexName(col))
	field := c.FormatColumn(col, d)
	ifNotExists := ""
	if d.IndexIfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}

	switch d.Name {
	case dialect.Postgres:
		switch col.IndexType {
		case TextIndex:
			return fmt.Sprintf("CREATE INDEX %s%s ON %s USING gin (to_tsvector('simple', %s));",
				ifNotExists, name, table, field), true
		case Gin:
			if d.GinFallback == "" {
				return "", false
			}
			return fmt.Sprintf("CREATE INDEX %s%s ON %s USING %s (%s);",
				ifNotExists, name, table, d.GinFallback, field), true
		default:
			return fmt.Sprintf("CREATE INDEX %s%s ON %s USING %s (%s);",
				ifNotExists, name, table, col.IndexType, field), true
		}
	case dialect.MySQL:
		switch col.IndexType {
		case TextIndex:
			return fmt.Sprintf("CREATE FULLTEXT INDEX %s ON %s (%s);", name, table, field), true
		case Gin:
			return "", false
		default:
			return fmt.Sprintf("CREATE INDEX %s ON %s (%s) USING %s;",
				name, table, field, strings.ToUpper(string(col.IndexType))), true
		}
	default:
		switch col.IndexType {
		case TextIndex, Gin:
			return "", false
		default:
			return fmt.Sprintf("CREATE INDEX %s%s ON %s (%s);", ifNotExists, name, table, field), true
		}
	}
}

func (c *Catalog) fieldDefinition(col *Column, d *dialect.Dialect) string {
	def := fmt.Sprintf("%s %s", c.FormatColumn(col, d), ColumnType(d, col))

	if col.PrimaryKey {
		def += " PRIMARY KEY"
		if col.AutoIncrement {
			switch d.Name {
			case dialect.MySQL:
				def += " AUTO_INCREMENT"
			case dialect.SQLite:
				def += " AUTOINCREMENT"
			}
		}
	} else {
		if col.NotNull {
			def += " NOT NULL"
		}
		if col.Unique {
			def += " UNIQUE"
		}
	}

	if value, ok := DefaultSQL(d, col); ok {
		def += " DEFAULT " + value
	}

	if col.ForeignKey && col.Reference != "" {
		if target, ok := Lookup(col.Reference); ok {
			field := target.PrimaryKey()
			if col.ReferencedField != "" {
				if f, ok := target.Column(col.ReferencedField); ok {
					field = f
				}
			}
			def += fmt.Sprintf(" REFERENCES %s(%s)", target.FormatTable(d), target.FormatColumn(field, d))
		}
	}
	return def
}

// DefaultSQL renders the DEFAULT expression of col, if the database computes it.
// Runtime defaults such as uuid-v7 or fn: methods have no SQL form.
func DefaultSQL(d *dialect.Dialect, col *Column) (string, bool) {
	value := col.Default
	if value == "" || value == DefaultUUIDv7 {
		return "", false
	}
	if _, ok := col.DefaultFunc(); ok {
		return "", false
	}
	if strings.HasPrefix(value, "(") {
		return value, true
	}
	if strings.EqualFold(value, "null") {
		return "NULL", true
	}

	kind := col.Type.Kind
	switch value {
	case DefaultNow:
		return nowSQL(d, kind), true
	case DefaultEpoch:
		if kind == DateTime && !d.DatetimeAsText {
			return "0", true
		}
		return "'epoch'", true
	}

	switch {
	case kind == Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			if b {
				return "TRUE", true
			}
			return "FALSE", true
		}
	case kind.IsNumeric():
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return value, true
		}
	}

	literal := d.QuoteString(value)
	if d.Name == dialect.Postgres {
		switch kind {
		case UUID:
			return literal + "::uuid", true
		case JSON:
			return literal + "::jsonb", true
		}
	}
	if d.Name == dialect.MySQL && (kind == JSON || kind == Array || col.Type.Kind == String && !isShortString(d, col)) {
		// MySQL only accepts expression defaults on TEXT and JSON columns
		return "(" + literal + ")", true
	}
	return literal, true
}

func nowSQL(d *dialect.Dialect, kind Kind) string {
	switch kind {
	case Date:
		if d.Name == dialect.MySQL {
			return "(CURRENT_DATE)"
		}
		return "CURRENT_DATE"
	case Time:
		if d.Name == dialect.MySQL {
			return "(CURRENT_TIME)"
		}
		return "CURRENT_TIME"
	}
	switch d.Name {
	case dialect.Postgres:
		return "now()"
	case dialect.MySQL:
		return "(CAST(UNIX_TIMESTAMP(NOW(3)) * 1000 AS SIGNED))"
	case dialect.SQLite:
		return "(CAST(unixepoch('subsec') * 1000 AS INTEGER))"
	default:
		return "(epoch_ms(now()))"
	}
}

// ColumnType returns the dialect column type of col.
// Unsigned kinds use the signed type of equal width unless the dialect has
// unsigned columns.
func ColumnType(d *dialect.Dialect, col *Column) string {
	kind, elem := storedKind(d, col.Type.Kind), storedKind(d, col.Type.Elem)
	switch d.Name {
	case dialect.Postgres:
		if kind == Array {
			return postgresType(elem, false) + "[]"
		}
		return postgresType(kind, col.AutoIncrement)
	case dialect.MySQL:
		return mysqlType(kind, isShortString(d, col))
	case dialect.SQLite:
		return sqliteType(kind)
	default:
		return duckdbType(kind)
	}
}

func storedKind(d *dialect.Dialect, k Kind) Kind {
	if k.IsUnsigned() && !d.NativeUnsigned {
		return k.Signed()
	}
	return k
}

// isShortString reports MySQL string columns that must be VARCHAR to be keyed or indexed.
func isShortString(d *dialect.Dialect, col *Column) bool {
	return d.Name == dialect.MySQL && (col.PrimaryKey || col.Unique || col.IndexType == BTree ||
		col.IndexType == Hash || col.Reference != "")
}

func postgresType(k Kind, serial bool) string {
	switch k {
	case Bool:
		return "BOOLEAN"
	case Int8, Int16:
		if serial {
			return "SMALLSERIAL"
		}
		return "SMALLINT"
	case Int32:
		if serial {
			return "SERIAL"
		}
		return "INT"
	case Int64:
		if serial {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case Float32:
		return "REAL"
	case Float64:
		return "DOUBLE PRECISION"
	case Decimal:
		return "NUMERIC"
	case Bytes:
		return "BYTEA"
	case UUID:
		return "UUID"
	case DateTime:
		return "TIMESTAMPTZ"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case JSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func mysqlType(k Kind, short bool) string {
	switch k {
	case Bool:
		return "BOOLEAN"
	case Int8:
		return "TINYINT"
	case Int16:
		return "SMALLINT"
	case Int32:
		return "INT"
	case Int64:
		return "BIGINT"
	case Uint8:
		return "TINYINT UNSIGNED"
	case Uint16:
		return "SMALLINT UNSIGNED"
	case Uint32:
		return "INT UNSIGNED"
	case Uint64:
		return "BIGINT UNSIGNED"
	case Float32:
		return "FLOAT"
	case Float64:
		return "DOUBLE"
	case Decimal:
		return "DECIMAL(38, 10)"
	case Bytes:
		return "BLOB"
	case UUID:
		return "VARCHAR(36)"
	case DateTime:
		return "BIGINT"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case JSON, Array:
		return "JSON"
	default:
		if short {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}

func sqliteType(k Kind) string {
	switch {
	case k == Bool:
		return "BOOLEAN"
	case k.IsInteger(), k == DateTime:
		return "INTEGER"
	case k == Float32, k == Float64:
		return "REAL"
	case k == Bytes:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func duckdbType(k Kind) string {
	switch k {
	case Bool:
		return "BOOLEAN"
	case Int8:
		return "TINYINT"
	case Int16:
		return "SMALLINT"
	case Int32:
		return "INTEGER"
	case Int64, DateTime:
		return "BIGINT"
	case Uint8:
		return "UTINYINT"
	case Uint16:
		return "USMALLINT"
	case Uint32:
		return "UINTEGER"
	case Uint64:
		return "UBIGINT"
	case Float32:
		return "FLOAT"
	case Float64:
		return "DOUBLE"
	case Decimal:
		return "DECIMAL(38, 10)"
	case Bytes:
		return "BLOB"
	case UUID:
		return "UUID"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case JSON, Array:
		return "JSON"
	default:
		return "VARCHAR"
	}
}
