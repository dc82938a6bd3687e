package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/driver/drivertest"
)

// sqliteCatalog answers the pragmas of a two-table database.
func sqliteCatalog(query string, _ []any) ([]driver.Row, error) {
	switch {
	case strings.Contains(query, "sqlite_master"):
		return []driver.Row{
			driver.RowOf(map[string]any{"name": "orders"}),
			driver.RowOf(map[string]any{"name": "users"}),
		}, nil
	case query == `PRAGMA table_info("users")`:
		return []driver.Row{
			pragmaColumn(0, "id", "INTEGER", 0, nil, 1),
			pragmaColumn(1, "username", "TEXT", 1, nil, 0),
			pragmaColumn(2, "status", "TEXT", 0, "'active'", 0),
		}, nil
	case query == `PRAGMA table_info("orders")`:
		return []driver.Row{
			pragmaColumn(0, "id", "INTEGER", 1, nil, 1),
			pragmaColumn(1, "user_id", "INTEGER", 1, nil, 0),
		}, nil
	case query == `PRAGMA index_list("users")`:
		return []driver.Row{
			driver.RowOf(map[string]any{"seq": int64(0), "name": "sqlite_autoindex_users_1", "unique": int64(1), "origin": "u", "partial": int64(0)}),
		}, nil
	case query == `PRAGMA index_info("sqlite_autoindex_users_1")`:
		return []driver.Row{driver.RowOf(map[string]any{"seqno": int64(0), "cid": int64(1), "name": "username"})}, nil
	case query == `PRAGMA foreign_key_list("orders")`:
		return []driver.Row{
			driver.RowOf(map[string]any{"id": int64(0), "seq": int64(0), "table": "users", "from": "user_id", "to": "id"}),
		}, nil
	case strings.HasPrefix(query, "PRAGMA"):
		return nil, nil
	}
	return nil, errors.New("unexpected query: " + query)
}

func pragmaColumn(cid int64, name, typ string, notNull int64, dflt any, pk int64) driver.Row {
	return driver.RowOf(map[string]any{
		"cid": cid, "name": name, "type": typ, "notnull": notNull, "dflt_value": dflt, "pk": pk,
	})
}

func TestInspectSQLite(t *testing.T) {
	fake := drivertest.New(dialect.SQLiteDialect)
	fake.FetchFunc = sqliteCatalog

	in, err := NewInspector(fake, "")
	if err != nil {
		t.Fatalf("NewInspector() error: %v", err)
	}
	layout, err := Inspect(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if len(layout.Tables) != 2 || layout.Tables[0].Name != "orders" || layout.Tables[1].Name != "users" {
		t.Fatalf("Inspect() tables = %+v", layout.Tables)
	}

	users := layout.FindTable("users")
	if got := users.PrimaryKey; len(got) != 1 || got[0] != "id" {
		t.Errorf("users primary key = %v, want [id]", got)
	}
	if col := users.FindColumn("username"); col == nil || col.Nullable || !col.IsUnique {
		t.Errorf("username = %+v, want NOT NULL unique", col)
	}
	if col := users.FindColumn("status"); col == nil || col.DefaultValue == nil || *col.DefaultValue != "'active'" {
		t.Errorf("status = %+v, want default 'active'", col)
	}

	orders := layout.FindTable("orders")
	if len(orders.Relations) != 1 {
		t.Fatalf("orders relations = %+v", orders.Relations)
	}
	rel := orders.Relations[0]
	if rel.SourceColumn != "user_id" || rel.TargetTable != "users" || rel.TargetColumn != "id" {
		t.Errorf("orders relation = %+v", rel)
	}
}

func TestInspectSkipsMissingTables(t *testing.T) {
	fake := drivertest.New(dialect.SQLiteDialect)
	fake.FetchFunc = sqliteCatalog
	in, _ := NewInspector(fake, "")

	layout, err := Inspect(context.Background(), in, []string{"users", "ghost"})
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if len(layout.Tables) != 1 || layout.Tables[0].Name != "users" {
		t.Errorf("Inspect() tables = %+v, want only users", layout.Tables)
	}
}

func TestInspectPropagatesErrors(t *testing.T) {
	fake := drivertest.New(dialect.SQLiteDialect)
	fake.FetchFunc = func(string, []any) ([]driver.Row, error) { return nil, errors.New("disk I/O error") }
	in, _ := NewInspector(fake, "")

	if _, err := Inspect(context.Background(), in, nil); err == nil {
		t.Fatal("Inspect() expected error")
	}
}

func TestNewInspectorMySQLNeedsDatabase(t *testing.T) {
	if _, err := NewInspector(drivertest.New(dialect.MySQLDialect), ""); err == nil {
		t.Fatal("NewInspector() expected error without a database name")
	}
	if _, err := NewInspector(drivertest.New(dialect.MySQLDialect), "app"); err != nil {
		t.Fatalf("NewInspector() error: %v", err)
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want []string
	}{
		{"array", []any{"a", "b"}, []string{"a", "b"}},
		{"strings", []string{"x"}, []string{"x"}},
		{"comma joined", []byte("a,b,c"), []string{"a", "b", "c"}},
		{"null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := list(driver.RowOf(map[string]any{"c": tt.v}), "c")
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("list() = %v, want %v", got, tt.want)
			}
		})
	}
}
