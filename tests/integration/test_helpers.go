//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/tordrt/sqlmodel"
	"github.com/tordrt/sqlmodel/internal/db"
	"github.com/tordrt/sqlmodel/internal/schema"
)

type Project struct {
	_     struct{} `orm:"table=it_project"`
	ID    int64    `orm:"primary_key,auto_increment"`
	Title string   `orm:"not_null,unique"`
}

type Task struct {
	_            struct{}  `orm:"table=it_task"`
	ID           int64     `orm:"primary_key,auto_increment"`
	ProjectID    int64     `orm:"reference=Project,index_type=btree"`
	ProjectTitle string    `orm:"correlates_with=project_id,referenced_field=title"`
	Name         string    `orm:"not_null"`
	Manhours     uint32    `orm:"editable"`
	CreatedAt    time.Time `orm:"default_value=now"`
}

// openTestDB connects to url and recreates the test tables.
func openTestDB(t *testing.T, url string) *sqlmodel.DB {
	t.Helper()
	ctx := context.Background()

	var logs bytes.Buffer
	d, err := sqlmodel.Open(ctx, url, &sqlmodel.Options{
		Logger:   slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Checksum: bytes.Repeat([]byte{7}, 32),
	})
	if err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	t.Cleanup(func() {
		if t.Failed() {
			t.Log(logs.String())
		}
		_ = d.Close()
	})

	for _, table := range []string{"it_task", "it_project"} {
		if _, err := d.Driver().Execute(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			t.Fatalf("failed to drop %s: %v", table, err)
		}
	}

	projects, err := sqlmodel.CatalogOf[Project]()
	if err != nil {
		t.Fatalf("CatalogOf(Project) error = %v", err)
	}
	tasks, err := sqlmodel.CatalogOf[Task]()
	if err != nil {
		t.Fatalf("CatalogOf(Task) error = %v", err)
	}
	if err := d.CreateTables(ctx, projects, tasks); err != nil {
		t.Fatalf("CreateTables() error = %v", err)
	}
	// a second pass must be a no-op
	if err := d.CreateTables(ctx, projects, tasks); err != nil {
		t.Fatalf("CreateTables() second pass error = %v", err)
	}
	return d
}

// runLifecycle drives inserts, reads, updates and deletes through d.
// manhours is stored and read back unchanged.
func runLifecycle(t *testing.T, d *sqlmodel.DB, manhours uint32) {
	t.Helper()
	ctx := context.Background()

	projects, err := sqlmodel.For[Project](d)
	if err != nil {
		t.Fatalf("For(Project) error = %v", err)
	}
	tasks, err := sqlmodel.For[Task](d)
	if err != nil {
		t.Fatalf("For(Task) error = %v", err)
	}

	p := &Project{Title: "apollo"}
	if err := projects.Insert(ctx, p); err != nil {
		t.Fatalf("Insert(project) error = %v", err)
	}
	if p.ID == 0 {
		t.Fatal("Insert(project) did not store the generated key")
	}

	task, err := tasks.InsertMap(ctx, map[string]any{
		"project_id": p.ID,
		"name":       "design review",
		"manhours":   manhours,
	})
	if err != nil {
		t.Fatalf("InsertMap(task) error = %v", err)
	}
	if task.ProjectTitle != "apollo" {
		t.Errorf("ProjectTitle = %q, want apollo", task.ProjectTitle)
	}

	got, err := tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Manhours != manhours {
		t.Errorf("Manhours = %d, want %d", got.Manhours, manhours)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled by its default")
	}

	if _, err := tasks.InsertMap(ctx, map[string]any{"project_id": p.ID + 1000, "name": "orphan"}); err == nil {
		t.Error("InsertMap() with a missing project should fail")
	}

	n, err := tasks.UpdateMany(ctx, sqlmodel.Eq("project_id", p.ID), sqlmodel.NewMutation().Inc("manhours", 2))
	if err != nil {
		t.Fatalf("UpdateMany() error = %v", err)
	}
	if n != 1 {
		t.Errorf("UpdateMany() affected %d rows, want 1", n)
	}
	got, err = tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Manhours != manhours+2 {
		t.Errorf("Manhours after increment = %d, want %d", got.Manhours, manhours+2)
	}

	count, err := tasks.Count(ctx, sqlmodel.Like("name", "design%"))
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	n, err = tasks.DeleteMany(ctx, sqlmodel.Eq("project_id", p.ID))
	if err != nil {
		t.Fatalf("DeleteMany() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteMany() affected %d rows, want 1", n)
	}
	if _, err := tasks.FindByID(ctx, task.ID); !errors.Is(err, sqlmodel.ErrNotFound) {
		t.Errorf("FindByID() after delete error = %v, want ErrNotFound", err)
	}
}

// verifyNoDrift checks that the live tables match the declarations.
func verifyNoDrift(t *testing.T, d *sqlmodel.DB, schemaName string) {
	t.Helper()

	projects, _ := sqlmodel.CatalogOf[Project]()
	tasks, _ := sqlmodel.CatalogOf[Task]()
	drifts, err := d.Check(context.Background(), schemaName, projects, tasks)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	for _, drift := range drifts {
		t.Errorf("unexpected drift: %s", drift)
	}
}

// inspectTables reads the live layout of the test tables.
func inspectTables(t *testing.T, d *sqlmodel.DB, schemaName string) *schema.Layout {
	t.Helper()

	in, err := db.NewInspector(d.Driver(), schemaName)
	if err != nil {
		t.Fatalf("NewInspector() error = %v", err)
	}
	l, err := db.Inspect(context.Background(), in, []string{"it_project", "it_task"})
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	return l
}

// verifyTablesExist checks that all expected tables are present in the layout
func verifyTablesExist(t *testing.T, l *schema.Layout, expectedTables []string) {
	t.Helper()

	if len(l.Tables) != len(expectedTables) {
		t.Errorf("Expected %d tables, got %d", len(expectedTables), len(l.Tables))
	}
	for _, tableName := range expectedTables {
		if l.FindTable(tableName) == nil {
			t.Errorf("Expected table %s not found in layout", tableName)
		}
	}
}

// verifyColumns checks that expected columns exist in a table
func verifyColumns(t *testing.T, table *schema.TableLayout, expectedColumns []string) {
	t.Helper()

	columnMap := make(map[string]bool)
	for _, col := range table.Columns {
		columnMap[col.Name] = true
	}
	for _, colName := range expectedColumns {
		if !columnMap[colName] {
			t.Errorf("Expected column %s not found in %s table", colName, table.Name)
		}
	}
}

// verifyPrimaryKey checks that a table has the expected primary key
func verifyPrimaryKey(t *testing.T, table *schema.TableLayout, expectedPK []string) {
	t.Helper()

	if len(table.PrimaryKey) != len(expectedPK) {
		t.Errorf("Expected primary key %v, got %v", expectedPK, table.PrimaryKey)
		return
	}
	for i, pk := range expectedPK {
		if table.PrimaryKey[i] != pk {
			t.Errorf("Expected primary key %v, got %v", expectedPK, table.PrimaryKey)
			return
		}
	}
}

// verifyUniqueConstraint checks that a column has a unique constraint
func verifyUniqueConstraint(t *testing.T, l *schema.Layout, tableName, columnName string) {
	t.Helper()

	table := l.FindTable(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}
	for _, col := range table.Columns {
		if col.Name == columnName {
			if !col.IsUnique {
				t.Errorf("Expected %s column to have unique constraint", columnName)
			}
			return
		}
	}
	t.Errorf("Column %s not found in table %s", columnName, tableName)
}

// verifyIndexOn checks that some index covers exactly the expected columns
func verifyIndexOn(t *testing.T, l *schema.Layout, tableName string, expectedColumns []string) {
	t.Helper()

	table := l.FindTable(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}
	for _, idx := range table.Indexes {
		if len(idx.Columns) != len(expectedColumns) {
			continue
		}
		match := true
		for i, col := range expectedColumns {
			if idx.Columns[i] != col {
				match = false
				break
			}
		}
		if match {
			return
		}
	}
	t.Errorf("Expected index on %v in %s table not found", expectedColumns, tableName)
}

// runInspection checks the layout CreateTables produced.
func runInspection(t *testing.T, d *sqlmodel.DB, schemaName string) {
	t.Helper()

	l := inspectTables(t, d, schemaName)
	verifyTablesExist(t, l, []string{"it_project", "it_task"})

	table := l.FindTable("it_task")
	if table == nil {
		t.Fatal("it_task table not found")
	}
	verifyPrimaryKey(t, table, []string{"id"})
	verifyColumns(t, table, []string{"id", "project_id", "project_title", "name", "manhours", "created_at"})
	verifyUniqueConstraint(t, l, "it_project", "title")
	verifyIndexOn(t, l, "it_task", []string{"project_id"})
}
