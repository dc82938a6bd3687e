package db

import (
	"context"
	"strings"

	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// mysqlInspector reads tables of one MySQL database
type mysqlInspector struct {
	drv    driver.Driver
	schema string
}

func (e *mysqlInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name AS name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := fetch(ctx, e.drv, query, e.schema)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, text(row, "name"))
	}
	return tables, nil
}

func (e *mysqlInspector) Table(ctx context.Context, name string) (*schema.TableLayout, error) {
	return readTable(ctx, e, name)
}

func (e *mysqlInspector) columns(ctx context.Context, table string) ([]schema.ColumnLayout, error) {
	// information_schema names come back upper-case on MySQL 8, so every column is aliased
	query := `
		SELECT
			c.column_name AS name,
			c.column_type AS type,
			c.is_nullable AS nullable,
			c.column_default AS default_value,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
					AND tc.table_name = kcu.table_name
				WHERE tc.table_schema = ?
					AND tc.table_name = ?
					AND tc.constraint_type = 'UNIQUE'
					AND kcu.column_name = c.column_name
			) AS is_unique,
			c.extra AS extra
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table, e.schema, table)
	if err != nil {
		return nil, err
	}

	columns := make([]schema.ColumnLayout, 0, len(rows))
	for _, row := range rows {
		col := schema.ColumnLayout{
			Name:         text(row, "name"),
			Type:         text(row, "type"),
			Nullable:     text(row, "nullable") == "YES",
			DefaultValue: optionalText(row, "default_value"),
			IsUnique:     flag(row, "is_unique"),
		}
		if strings.Contains(text(row, "extra"), "auto_increment") {
			col.Roles = append(col.Roles, "auto_increment")
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func (e *mysqlInspector) primaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name AS name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var pk []string
	for _, row := range rows {
		pk = append(pk, text(row, "name"))
	}
	return pk, nil
}

func (e *mysqlInspector) relations(ctx context.Context, table string) ([]schema.RelationLayout, error) {
	query := `
		SELECT
			kcu.column_name AS source_column,
			kcu.referenced_table_name AS target_table,
			kcu.referenced_column_name AS target_column
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var relations []schema.RelationLayout
	for _, row := range rows {
		relations = append(relations, schema.RelationLayout{
			SourceColumn: text(row, "source_column"),
			TargetTable:  text(row, "target_table"),
			TargetColumn: text(row, "target_column"),
			Cardinality:  "N:1",
		})
	}
	return relations, nil
}

func (e *mysqlInspector) indexes(ctx context.Context, table string) ([]schema.IndexLayout, error) {
	query := `
		SELECT
			s.index_name AS name,
			s.non_unique = 0 AS is_unique,
			LOWER(s.index_type) AS method,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index) AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name, s.non_unique, s.index_type
		ORDER BY s.index_name
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var indexes []schema.IndexLayout
	for _, row := range rows {
		indexes = append(indexes, schema.IndexLayout{
			Name:     text(row, "name"),
			Columns:  list(row, "column_names"),
			Method:   text(row, "method"),
			IsUnique: flag(row, "is_unique"),
		})
	}
	return indexes, nil
}
