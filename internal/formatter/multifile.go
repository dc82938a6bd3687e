package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tordrt/sqlmodel/internal/schema"
)

const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Formatter writes a whole layout to one stream
type Formatter interface {
	Format(l *schema.Layout) error
}

// New returns the single-stream formatter for format.
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case FormatText:
		return NewTextFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	}
	return nil, fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
}

// MultiFileFormatter writes a layout to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes an overview plus one file per table
func (f *MultiFileFormatter) Format(l *schema.Layout) error {
	if f.OutputFormat != FormatMarkdown && f.OutputFormat != FormatText {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", f.OutputFormat)
	}
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, l) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range l.Tables {
		if err := f.writeFile(table.Name, func(w io.Writer) { f.writeTable(w, table, l) }); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.fileExtension()))
	if err != nil {
		return err
	}
	write(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, l *schema.Layout) {
	sorted := slices.Clone(l.Tables)
	slices.SortFunc(sorted, func(a, b schema.TableLayout) int { return strings.Compare(a.Name, b.Name) })

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", f.fileExtension())
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", f.fileExtension())
	}

	for _, table := range sorted {
		line := table.Name
		if f.OutputFormat == FormatMarkdown {
			line = "- **" + table.Name + "**"
		}
		if len(table.Relations) > 0 {
			var targets []string
			for _, rel := range table.Relations {
				targets = append(targets, rel.TargetTable)
			}
			line += fmt.Sprintf(" (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func (f *MultiFileFormatter) writeTable(w io.Writer, table schema.TableLayout, l *schema.Layout) {
	if f.OutputFormat == FormatText {
		NewTextFormatter(w).FormatTable(table)
	} else {
		NewMarkdownFormatter(w).FormatTable(table)
	}

	incoming := findIncomingRelations(table.Name, l)
	if len(incoming) == 0 {
		return
	}
	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "### Referenced by\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "\n  REFERENCED BY:\n")
	}
	for _, rel := range incoming {
		prefix := "- "
		if f.OutputFormat == FormatText {
			prefix = "    "
		}
		_, _ = fmt.Fprintf(w, "%s%s.%s → %s (%s)\n", prefix, rel.SourceTable, rel.SourceColumn, rel.TargetColumn, rel.Cardinality)
	}
}

// IncomingRelation represents a relationship pointing to this table
type IncomingRelation struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Cardinality  string
}

// findIncomingRelations finds all references pointing to this table
func findIncomingRelations(tableName string, l *schema.Layout) []IncomingRelation {
	var incoming []IncomingRelation
	for _, table := range l.Tables {
		for _, rel := range table.Relations {
			if rel.TargetTable == tableName {
				incoming = append(incoming, IncomingRelation{
					SourceTable:  table.Name,
					SourceColumn: rel.SourceColumn,
					TargetTable:  rel.TargetTable,
					TargetColumn: rel.TargetColumn,
					Cardinality:  rel.Cardinality,
				})
			}
		}
	}
	return incoming
}

func (f *MultiFileFormatter) fileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
