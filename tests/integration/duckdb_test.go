//go:build integration
// +build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
)

// DuckDB has no auto-increment keys, so only the DDL and inspection are exercised.
func TestDuckDBInspection(t *testing.T) {
	d := openTestDB(t, "duckdb://"+filepath.Join(t.TempDir(), "test.duckdb"))
	runInspection(t, d, "")
	verifyNoDrift(t, d, "")

	if _, err := d.Driver().Execute(context.Background(), "INSERT INTO it_project (id, title) VALUES (1, 'apollo')"); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	row, err := d.Driver().FetchOne(context.Background(), "SELECT title FROM it_project WHERE id = 1")
	if err != nil {
		t.Fatalf("FetchOne() error = %v", err)
	}
	if got, _ := row.Get("title"); got != "apollo" {
		t.Errorf("title = %#v, want apollo", got)
	}
}
