package db

import (
	"context"
	"fmt"

	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/schema"
)

const varcharType = "varchar"

// postgresInspector reads tables of one PostgreSQL schema
type postgresInspector struct {
	drv    driver.Driver
	schema string
}

func (e *postgresInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := fetch(ctx, e.drv, query, e.schema)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, text(row, "table_name"))
	}
	return tables, nil
}

func (e *postgresInspector) Table(ctx context.Context, name string) (*schema.TableLayout, error) {
	return readTable(ctx, e, name)
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength int64) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength > 0 {
			return fmt.Sprintf("varchar(%d)", charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength > 0 {
			return fmt.Sprintf("char(%d)", charMaxLength)
		}
		return "char"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[])
		if len(udtName) > 0 && udtName[0] == '_' {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

func (e *postgresInspector) columns(ctx context.Context, table string) ([]schema.ColumnLayout, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.constraint_column_usage ccu
					ON tc.constraint_name = ccu.constraint_name
					AND tc.table_schema = ccu.table_schema
				WHERE tc.table_schema = $1
					AND tc.table_name = $2
					AND tc.constraint_type = 'UNIQUE'
					AND ccu.column_name = c.column_name
			) AS is_unique,
			c.udt_name,
			c.character_maximum_length
		FROM information_schema.columns c
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}

	columns := make([]schema.ColumnLayout, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, schema.ColumnLayout{
			Name:         text(row, "column_name"),
			Type:         normalizePostgresType(text(row, "data_type"), text(row, "udt_name"), number(row, "character_maximum_length")),
			Nullable:     text(row, "is_nullable") == "YES",
			DefaultValue: optionalText(row, "column_default"),
			IsUnique:     flag(row, "is_unique"),
		})
	}
	return columns, nil
}

func (e *postgresInspector) primaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE kcu.table_schema = $1
			AND kcu.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var pk []string
	for _, row := range rows {
		pk = append(pk, text(row, "column_name"))
	}
	return pk, nil
}

func (e *postgresInspector) relations(ctx context.Context, table string) ([]schema.RelationLayout, error) {
	query := `
		SELECT
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var relations []schema.RelationLayout
	for _, row := range rows {
		relations = append(relations, schema.RelationLayout{
			SourceColumn: text(row, "column_name"),
			TargetTable:  text(row, "foreign_table_name"),
			TargetColumn: text(row, "foreign_column_name"),
			Cardinality:  "N:1",
		})
	}
	return relations, nil
}

func (e *postgresInspector) indexes(ctx context.Context, table string) ([]schema.IndexLayout, error) {
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			am.amname AS method,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique, am.amname
		ORDER BY i.relname
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var indexes []schema.IndexLayout
	for _, row := range rows {
		indexes = append(indexes, schema.IndexLayout{
			Name:     text(row, "index_name"),
			Columns:  list(row, "column_names"),
			Method:   text(row, "method"),
			IsUnique: flag(row, "is_unique"),
		})
	}
	return indexes, nil
}
