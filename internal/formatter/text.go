package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/sqlmodel/internal/schema"
)

// TextFormatter formats a layout as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the layout in compact text format
func (f *TextFormatter) Format(l *schema.Layout) error {
	for i, table := range l.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.FormatTable(table)
	}
	return nil
}

// FormatTable writes a single table
func (f *TextFormatter) FormatTable(table schema.TableLayout) {
	header := "TABLE " + table.Name
	if table.Model != "" && table.Model != table.Name {
		header += " [" + table.Model + "]"
	}
	if len(table.PrimaryKey) > 0 {
		header += fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	_, _ = fmt.Fprintln(f.writer, header)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatTextColumn(col))
	}

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONS:")
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s (%s)\n", rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.Cardinality)
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			suffix := ""
			if idx.Method != "" {
				suffix += " USING " + idx.Method
			}
			if idx.IsUnique {
				suffix += " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), suffix)
		}
	}
}

func formatTextColumn(col schema.ColumnLayout) string {
	parts := []string{col.Name + ":", col.Type}

	if col.IsUnique {
		parts = append(parts, "UNIQUE")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}
	if len(col.Roles) > 0 {
		parts = append(parts, "["+strings.Join(col.Roles, ", ")+"]")
	}

	return strings.Join(parts, " ")
}
