package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/schema"
)

func layoutOf(names ...string) *schema.Layout {
	l := &schema.Layout{}
	for _, n := range names {
		l.Tables = append(l.Tables, schema.TableLayout{Name: n})
	}
	return l
}

func tableNames(l *schema.Layout) []string {
	out := make([]string, len(l.Tables))
	for i, t := range l.Tables {
		out[i] = t.Name
	}
	return out
}

func TestFilterExcludedTables(t *testing.T) {
	tests := []struct {
		name        string
		layout      *schema.Layout
		excludeList []string
		wantTables  []string
	}{
		{
			name:        "exclude single table",
			layout:      layoutOf("users", "posts", "comments"),
			excludeList: []string{"posts"},
			wantTables:  []string{"users", "comments"},
		},
		{
			name:        "exclude multiple tables",
			layout:      layoutOf("users", "posts", "comments", "likes"),
			excludeList: []string{"posts", "likes"},
			wantTables:  []string{"users", "comments"},
		},
		{
			name:        "exclude no tables",
			layout:      layoutOf("users", "posts"),
			excludeList: []string{},
			wantTables:  []string{"users", "posts"},
		},
		{
			name:        "exclude non-existent table",
			layout:      layoutOf("users", "posts"),
			excludeList: []string{"products"},
			wantTables:  []string{"users", "posts"},
		},
		{
			name:        "exclude all tables",
			layout:      layoutOf("users", "posts"),
			excludeList: []string{"users", "posts"},
			wantTables:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filterExcludedTables(tt.layout, tt.excludeList)
			got := tableNames(tt.layout)
			if strings.Join(got, ",") != strings.Join(tt.wantTables, ",") {
				t.Errorf("filterExcludedTables() = %v, want %v", got, tt.wantTables)
			}
		})
	}
}

func TestKeepTables(t *testing.T) {
	l := layoutOf("users", "posts", "comments")
	keepTables(l, []string{"comments", "users", "missing"})
	if got := strings.Join(tableNames(l), ","); got != "users,comments" {
		t.Errorf("keepTables() = %s, want users,comments", got)
	}
}

func TestParseTableList(t *testing.T) {
	tests := []struct {
		name       string
		tablesStr  string
		wantTables []string
	}{
		{
			name:       "single table",
			tablesStr:  "users",
			wantTables: []string{"users"},
		},
		{
			name:       "multiple tables",
			tablesStr:  "users,posts,comments",
			wantTables: []string{"users", "posts", "comments"},
		},
		{
			name:       "tables with spaces",
			tablesStr:  "users, posts, comments",
			wantTables: []string{"users", "posts", "comments"},
		},
		{
			name:       "empty string",
			tablesStr:  "",
			wantTables: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTables := parseTableList(tt.tablesStr)

			if len(gotTables) != len(tt.wantTables) {
				t.Errorf("parseTableList() returned %d tables, want %d", len(gotTables), len(tt.wantTables))
				return
			}
			for i, table := range gotTables {
				if table != tt.wantTables[i] {
					t.Errorf("parseTableList() table[%d] = %s, want %s", i, table, tt.wantTables[i])
				}
			}
		})
	}
}

const models = `
models:
  - name: Crate
    fields:
      - {name: id, type: i64, primary_key: true, auto_increment: true}
      - {name: label, type: string, not_null: true, index_type: btree}
`

func TestWriteDDL(t *testing.T) {
	cats, err := schema.ParseDeclarations([]byte(models))
	if err != nil {
		t.Fatalf("ParseDeclarations() error = %v", err)
	}

	var buf bytes.Buffer
	writeDDL(&buf, dialect.SQLiteDialect, cats)
	want := "CREATE TABLE IF NOT EXISTS crate (\n" +
		"  id INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
		"  label TEXT NOT NULL\n" +
		");\n" +
		"CREATE INDEX IF NOT EXISTS crate_label_index ON crate (label);\n"
	if buf.String() != want {
		t.Errorf("writeDDL() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestDDLCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(models), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLMODEL_DATABASE_URL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"ddl", "--dialect", "mysql", "--models", path})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("ddl error = %v", err)
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS crate (",
		"id BIGINT PRIMARY KEY AUTO_INCREMENT",
		"CREATE INDEX crate_label_index ON crate (label) USING BTREE;",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q should contain %q", out.String(), want)
		}
	}
}
