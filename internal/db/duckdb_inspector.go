package db

import (
	"context"
	"strings"

	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// duckdbInspector reads tables from information_schema and the duckdb_* catalog functions
type duckdbInspector struct {
	drv    driver.Driver
	schema string
}

func (e *duckdbInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
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
		tables = append(tables, text(row, "table_name"))
	}
	return tables, nil
}

func (e *duckdbInspector) Table(ctx context.Context, name string) (*schema.TableLayout, error) {
	return readTable(ctx, e, name)
}

func (e *duckdbInspector) constraints(ctx context.Context, table, kind string) ([]driver.Row, error) {
	query := `
		SELECT constraint_column_names, referenced_table, referenced_column_names
		FROM duckdb_constraints()
		WHERE schema_name = ? AND table_name = ? AND constraint_type = ?
		ORDER BY constraint_index
	`
	return fetch(ctx, e.drv, query, e.schema, table, kind)
}

func (e *duckdbInspector) columns(ctx context.Context, table string) ([]schema.ColumnLayout, error) {
	query := `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	uniques, err := e.constraints(ctx, table, "UNIQUE")
	if err != nil {
		return nil, err
	}
	unique := make(map[string]bool)
	for _, u := range uniques {
		if cols := list(u, "constraint_column_names"); len(cols) == 1 {
			unique[cols[0]] = true
		}
	}

	columns := make([]schema.ColumnLayout, 0, len(rows))
	for _, row := range rows {
		name := text(row, "column_name")
		columns = append(columns, schema.ColumnLayout{
			Name:         name,
			Type:         strings.ToLower(text(row, "data_type")),
			Nullable:     text(row, "is_nullable") == "YES",
			DefaultValue: optionalText(row, "column_default"),
			IsUnique:     unique[name],
		})
	}
	return columns, nil
}

func (e *duckdbInspector) primaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := e.constraints(ctx, table, "PRIMARY KEY")
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return list(rows[0], "constraint_column_names"), nil
}

func (e *duckdbInspector) relations(ctx context.Context, table string) ([]schema.RelationLayout, error) {
	rows, err := e.constraints(ctx, table, "FOREIGN KEY")
	if err != nil {
		return nil, err
	}
	var relations []schema.RelationLayout
	for _, row := range rows {
		source := list(row, "constraint_column_names")
		target := list(row, "referenced_column_names")
		for i := range source {
			rel := schema.RelationLayout{
				SourceColumn: source[i],
				TargetTable:  text(row, "referenced_table"),
				Cardinality:  "N:1",
			}
			if i < len(target) {
				rel.TargetColumn = target[i]
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (e *duckdbInspector) indexes(ctx context.Context, table string) ([]schema.IndexLayout, error) {
	query := `
		SELECT index_name, is_unique, expressions
		FROM duckdb_indexes()
		WHERE schema_name = ? AND table_name = ?
		ORDER BY index_name
	`
	rows, err := fetch(ctx, e.drv, query, e.schema, table)
	if err != nil {
		return nil, err
	}
	var indexes []schema.IndexLayout
	for _, row := range rows {
		indexes = append(indexes, schema.IndexLayout{
			Name:     text(row, "index_name"),
			Columns:  expressionColumns(list(row, "expressions")),
			IsUnique: flag(row, "is_unique"),
		})
	}
	return indexes, nil
}

// expressionColumns strips the list brackets and quotes DuckDB prints around
// index expressions, e.g. ["name", 'age'].
func expressionColumns(exprs []string) []string {
	out := make([]string, 0, len(exprs))
	for _, e := range exprs {
		e = strings.Trim(strings.TrimSpace(e), `[]"' `)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
