package db

import (
	"slices"
	"testing"

	"github.com/tordrt/sqlmodel/internal/schema"
)

func TestCompare(t *testing.T) {
	declared := &schema.Layout{Tables: []schema.TableLayout{
		{
			Name:       "account",
			PrimaryKey: []string{"id"},
			Columns: []schema.ColumnLayout{
				{Name: "id", Type: "INTEGER"},
				{Name: "name", Type: "TEXT"},
				{Name: "email", Type: "TEXT", Nullable: true},
			},
			Indexes: []schema.IndexLayout{{Name: "account_email_index", Columns: []string{"email"}}},
		},
		{Name: "audit", PrimaryKey: []string{"id"}, Columns: []schema.ColumnLayout{{Name: "id"}}},
	}}
	live := &schema.Layout{Tables: []schema.TableLayout{
		{
			Name:       "account",
			PrimaryKey: []string{"id"},
			Columns: []schema.ColumnLayout{
				{Name: "id", Type: "INTEGER", Nullable: true},
				{Name: "name", Type: "TEXT", Nullable: true},
				{Name: "legacy", Type: "TEXT", Nullable: true},
			},
		},
	}}

	var got []string
	for _, d := range Compare(declared, live) {
		got = append(got, d.String())
	}
	want := []string{
		"account.name: nullability (declared NOT NULL, found NULL)",
		"account.email: missing column",
		"account.legacy: undeclared column (TEXT)",
		"account.email: missing index (account_email_index)",
		"audit: missing table",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Compare() =\n%q\nwant\n%q", got, want)
	}
}

func TestCompareInSync(t *testing.T) {
	l := &schema.Layout{Tables: []schema.TableLayout{{
		Name:    "account",
		Columns: []schema.ColumnLayout{{Name: "id"}, {Name: "name", Nullable: true}},
		Indexes: []schema.IndexLayout{{Name: "i", Columns: []string{"name"}}},
	}}}
	if drift := Compare(l, l); len(drift) != 0 {
		t.Errorf("Compare() of identical layouts = %v, want none", drift)
	}
}
