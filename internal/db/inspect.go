package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// inspectConcurrency bounds the tables read at once.
const inspectConcurrency = 4

// Inspector reads the live layout of a database.
type Inspector interface {
	// TableNames lists the base tables of the inspected schema
	TableNames(ctx context.Context) ([]string, error)
	// Table reads one table. It returns nil when the table does not exist.
	Table(ctx context.Context, name string) (*schema.TableLayout, error)
}

// NewInspector returns the inspector matching the driver's dialect. schemaName
// selects the PostgreSQL schema or MySQL database; it is ignored elsewhere.
func NewInspector(drv driver.Driver, schemaName string) (Inspector, error) {
	switch drv.Dialect().Name {
	case dialect.Postgres:
		if schemaName == "" {
			schemaName = "public"
		}
		return &postgresInspector{drv: drv, schema: schemaName}, nil
	case dialect.MySQL:
		if schemaName == "" {
			if c, ok := drv.(*MySQLClient); ok {
				schemaName = c.Database()
			}
		}
		if schemaName == "" {
			return nil, fmt.Errorf("mysql inspection needs a database name")
		}
		return &mysqlInspector{drv: drv, schema: schemaName}, nil
	case dialect.SQLite:
		return &sqliteInspector{drv: drv}, nil
	case dialect.DuckDB:
		if schemaName == "" {
			schemaName = "main"
		}
		return &duckdbInspector{drv: drv, schema: schemaName}, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", drv.Dialect().Name)
}

// Inspect reads the given tables, or every table when none are given. Tables
// that do not exist are left out of the layout.
func Inspect(ctx context.Context, in Inspector, tables []string) (*schema.Layout, error) {
	if len(tables) == 0 {
		names, err := in.TableNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
		tables = names
	}

	found := make([]*schema.TableLayout, len(tables))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(inspectConcurrency)
	for i, name := range tables {
		g.Go(func() error {
			t, err := in.Table(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to extract table %s: %w", name, err)
			}
			found[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l := &schema.Layout{}
	for _, t := range found {
		if t != nil {
			l.Tables = append(l.Tables, *t)
		}
	}
	return l, nil
}

// tableReader is the per-engine part of reading one table.
type tableReader interface {
	columns(ctx context.Context, table string) ([]schema.ColumnLayout, error)
	primaryKey(ctx context.Context, table string) ([]string, error)
	relations(ctx context.Context, table string) ([]schema.RelationLayout, error)
	indexes(ctx context.Context, table string) ([]schema.IndexLayout, error)
}

func readTable(ctx context.Context, r tableReader, name string) (*schema.TableLayout, error) {
	columns, err := r.columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, nil
	}
	table := &schema.TableLayout{Name: name, Columns: columns}

	if table.PrimaryKey, err = r.primaryKey(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	if table.Relations, err = r.relations(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to extract relations: %w", err)
	}
	if table.Indexes, err = r.indexes(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	return table, nil
}

func fetch(ctx context.Context, drv driver.Driver, query string, args ...any) ([]driver.Row, error) {
	return driver.Collect(drv.FetchAll(ctx, query, args...))
}

func text(row driver.Row, name string) string {
	v, _ := row.Get(name)
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(v)
}

func optionalText(row driver.Row, name string) *string {
	if row.IsNull(name) {
		return nil
	}
	s := text(row, name)
	return &s
}

func flag(row driver.Row, name string) bool {
	v, _ := row.Get(name)
	switch v := v.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int32:
		return v != 0
	case int:
		return v != 0
	}
	b, _ := strconv.ParseBool(text(row, name))
	return b
}

func number(row driver.Row, name string) int64 {
	v, _ := row.Get(name)
	switch v := v.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	n, _ := strconv.ParseInt(text(row, name), 10, 64)
	return n
}

// list reads an array column, or a comma-joined one from engines without arrays.
func list(row driver.Row, name string) []string {
	v, _ := row.Get(name)
	switch v := v.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	s := text(row, name)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
