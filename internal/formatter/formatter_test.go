package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/sqlmodel/internal/schema"
)

func sampleLayout() *schema.Layout {
	def := "0"
	return &schema.Layout{Tables: []schema.TableLayout{
		{
			Name:       "project",
			Model:      "Project",
			PrimaryKey: []string{"id"},
			Columns: []schema.ColumnLayout{
				{Name: "id", Type: "BIGSERIAL", Roles: []string{"auto_increment"}},
				{Name: "name", Type: "VARCHAR(255)", IsUnique: true},
			},
		},
		{
			Name:       "task",
			Model:      "Task",
			PrimaryKey: []string{"id"},
			Columns: []schema.ColumnLayout{
				{Name: "id", Type: "BIGSERIAL"},
				{Name: "project_id", Type: "BIGINT", Nullable: true},
				{Name: "manhours", Type: "DOUBLE PRECISION", DefaultValue: &def},
			},
			Relations: []schema.RelationLayout{{SourceColumn: "project_id", TargetTable: "project", TargetColumn: "id", Cardinality: "N:1"}},
			Indexes:   []schema.IndexLayout{{Name: "task_project_id_index", Columns: []string{"project_id"}, Method: "btree"}},
		},
	}}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextFormatter(&buf).Format(sampleLayout()); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"TABLE project [Project] (PK: id)\n",
		"  id: BIGSERIAL NOT NULL [auto_increment]\n",
		"  name: VARCHAR(255) UNIQUE NOT NULL\n",
		"  project_id: BIGINT\n",
		"  manhours: DOUBLE PRECISION NOT NULL DEFAULT 0\n",
		"    project_id → project.id (N:1)\n",
		"    task_project_id_index (project_id) USING btree\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q\n%s", want, out)
		}
	}
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownFormatter(&buf).Format(sampleLayout()); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Database Schema\n",
		"## task\n",
		"Model: `Task`\n",
		"- **id:** BIGSERIAL, PK, NOT NULL, `auto_increment`\n",
		"- **manhours:** DOUBLE PRECISION, NOT NULL, DEFAULT 0\n",
		"- project_id → project.id (N:1)\n",
		"- task_project_id_index on (project_id) using btree\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q\n%s", want, out)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New("yaml", &bytes.Buffer{}); err == nil {
		t.Error("New(yaml) expected error")
	}
	if f, err := New(FormatText, &bytes.Buffer{}); err != nil || f == nil {
		t.Errorf("New(text) = %v, %v", f, err)
	}
}

func TestMultiFileFormatter(t *testing.T) {
	for _, format := range []string{FormatMarkdown, FormatText} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			if err := NewMultiFileFormatter(dir, format).Format(sampleLayout()); err != nil {
				t.Fatalf("Format() error: %v", err)
			}

			ext := ".txt"
			if format == FormatMarkdown {
				ext = ".md"
			}
			for _, name := range []string{"_overview", "project", "task"} {
				if _, err := os.Stat(filepath.Join(dir, name+ext)); err != nil {
					t.Errorf("expected file %s%s: %v", name, ext, err)
				}
			}

			overview, _ := os.ReadFile(filepath.Join(dir, "_overview"+ext))
			if !strings.Contains(string(overview), "(references: project)") {
				t.Errorf("overview missing task references:\n%s", overview)
			}
			project, _ := os.ReadFile(filepath.Join(dir, "project"+ext))
			if !strings.Contains(string(project), "task.project_id → id (N:1)") {
				t.Errorf("project file missing incoming reference:\n%s", project)
			}
		})
	}
}

func TestMultiFileFormatterRejectsUnknownFormat(t *testing.T) {
	if err := NewMultiFileFormatter(t.TempDir(), "html").Format(sampleLayout()); err == nil {
		t.Error("Format() expected error for unknown format")
	}
}
