package formatter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/sqlmodel/internal/schema"
)

// MarkdownFormatter formats a layout as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the layout in markdown format
func (f *MarkdownFormatter) Format(l *schema.Layout) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range l.Tables {
		f.FormatTable(table)
	}
	return nil
}

// FormatTable formats a single table (used by the multi-file formatter)
func (f *MarkdownFormatter) FormatTable(table schema.TableLayout) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	if table.Model != "" && table.Model != table.Name {
		_, _ = fmt.Fprintf(f.writer, "Model: `%s`\n\n", table.Model)
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		if constraints := formatConstraints(col, table.PrimaryKey); constraints != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, constraints)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s (%s)\n",
				rel.SourceColumn,
				rel.TargetTable,
				rel.TargetColumn,
				rel.Cardinality)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Idx")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			line := fmt.Sprintf("- %s on (%s)", idx.Name, strings.Join(idx.Columns, ", "))
			if idx.Method != "" {
				line += " using " + idx.Method
			}
			if idx.IsUnique {
				line += ", unique"
			}
			_, _ = fmt.Fprintln(f.writer, line)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func formatConstraints(col schema.ColumnLayout, primaryKey []string) string {
	var constraints []string

	if slices.Contains(primaryKey, col.Name) {
		constraints = append(constraints, "PK")
	}
	if col.IsUnique {
		constraints = append(constraints, "UNIQUE")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}
	for _, role := range col.Roles {
		constraints = append(constraints, "`"+role+"`")
	}

	return strings.Join(constraints, ", ")
}
