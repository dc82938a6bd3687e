package db

import (
	"context"
	"slices"
	"strings"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// sqliteInspector reads tables through SQLite pragmas
type sqliteInspector struct {
	drv driver.Driver
}

func (e *sqliteInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	rows, err := fetch(ctx, e.drv, query)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, text(row, "name"))
	}
	return tables, nil
}

func (e *sqliteInspector) Table(ctx context.Context, name string) (*schema.TableLayout, error) {
	return readTable(ctx, e, name)
}

func (e *sqliteInspector) pragma(ctx context.Context, name, arg string) ([]driver.Row, error) {
	return fetch(ctx, e.drv, "PRAGMA "+name+"("+dialect.SQLiteDialect.QuoteIdentifier(arg)+")")
}

func (e *sqliteInspector) columns(ctx context.Context, table string) ([]schema.ColumnLayout, error) {
	rows, err := e.pragma(ctx, "table_info", table)
	if err != nil {
		return nil, err
	}
	indexes, err := e.indexes(ctx, table)
	if err != nil {
		return nil, err
	}

	columns := make([]schema.ColumnLayout, 0, len(rows))
	for _, row := range rows {
		col := schema.ColumnLayout{
			Name:         text(row, "name"),
			Type:         text(row, "type"),
			Nullable:     number(row, "notnull") == 0,
			DefaultValue: optionalText(row, "dflt_value"),
		}
		// primary keys are reported separately
		if number(row, "pk") == 0 {
			col.IsUnique = slices.ContainsFunc(indexes, func(idx schema.IndexLayout) bool {
				return idx.IsUnique && len(idx.Columns) == 1 && idx.Columns[0] == col.Name
			})
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func (e *sqliteInspector) primaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := e.pragma(ctx, "table_info", table)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, func(a, b driver.Row) int {
		return int(number(a, "pk") - number(b, "pk"))
	})
	var pk []string
	for _, row := range rows {
		if number(row, "pk") > 0 {
			pk = append(pk, text(row, "name"))
		}
	}
	return pk, nil
}

func (e *sqliteInspector) relations(ctx context.Context, table string) ([]schema.RelationLayout, error) {
	rows, err := e.pragma(ctx, "foreign_key_list", table)
	if err != nil {
		return nil, err
	}
	var relations []schema.RelationLayout
	for _, row := range rows {
		relations = append(relations, schema.RelationLayout{
			SourceColumn: text(row, "from"),
			TargetTable:  text(row, "table"),
			TargetColumn: text(row, "to"),
			Cardinality:  "N:1",
		})
	}
	return relations, nil
}

func (e *sqliteInspector) indexes(ctx context.Context, table string) ([]schema.IndexLayout, error) {
	rows, err := e.pragma(ctx, "index_list", table)
	if err != nil {
		return nil, err
	}

	var indexes []schema.IndexLayout
	for _, row := range rows {
		name := text(row, "name")
		// Skip auto-generated primary key indexes
		if strings.HasPrefix(name, "sqlite_autoindex") && text(row, "origin") == "pk" {
			continue
		}
		info, err := e.pragma(ctx, "index_info", name)
		if err != nil {
			return nil, err
		}
		var columns []string
		for _, c := range info {
			if !c.IsNull("name") {
				columns = append(columns, text(c, "name"))
			}
		}
		if len(columns) > 0 {
			indexes = append(indexes, schema.IndexLayout{
				Name:     name,
				Columns:  columns,
				IsUnique: number(row, "unique") == 1,
			})
		}
	}
	return indexes, nil
}
