package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/sqlmodel"
	"github.com/tordrt/sqlmodel/internal/config"
	"github.com/tordrt/sqlmodel/internal/db"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/formatter"
	"github.com/tordrt/sqlmodel/internal/schema"
	"github.com/tordrt/sqlmodel/internal/vault"
)

var (
	configPath     string
	dbURL          string
	modelFiles     []string
	dialectName    string
	outputFile     string
	outputDir      string
	tables         string
	excludeTables  string
	format         string
	splitThreshold int
	live           bool
	modelName      string

	cfg    *config.Config
	logger *slog.Logger
)

// errDrift makes check exit non-zero without printing a usage message.
var errDrift = errors.New("schema drift detected")

var rootCmd = &cobra.Command{
	Use:   "sqlmodel",
	Short: "Manage tables declared as sqlmodel models",
	Long: `sqlmodel renders DDL and documentation for declared models, creates their tables,
and checks a live PostgreSQL, MySQL, SQLite or DuckDB database against the declarations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbURL != "" {
			cfg.DatabaseURL = dbURL
		}
		if len(modelFiles) > 0 {
			cfg.Models = modelFiles
		}
		level, err := cfg.Level()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print CREATE TABLE and CREATE INDEX statements for the declared models",
	RunE:  runDDL,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Describe the declared models, or the live database with --live",
	RunE:  runDocs,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the declared models with the live database",
	RunE:  runCheck,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create missing tables and indexes for the declared models",
	RunE:  runApply,
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Encrypt or verify a password with a model's key",
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <password>",
	Short: "Print the encrypted form of a password",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncrypt,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <password> <encrypted>",
	Short: "Exit non-zero unless the password matches",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Database URL, overrides database_url")
	rootCmd.PersistentFlags().StringSliceVarP(&modelFiles, "models", "m", nil, "Model declaration files, overrides models")

	ddlCmd.Flags().StringVar(&dialectName, "dialect", "", "Target dialect: postgres, mysql, sqlite or duckdb (default: from the database URL)")

	docsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	docsCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	docsCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	docsCmd.Flags().StringVarP(&excludeTables, "exclude", "x", "", "Tables to leave out (comma-separated)")
	docsCmd.Flags().StringVarP(&format, "format", "f", formatter.FormatText, "Output format: text or markdown")
	docsCmd.Flags().IntVar(&splitThreshold, "split-threshold", 0, "Split into multiple files when table count exceeds this (requires --output-dir)")
	docsCmd.Flags().BoolVar(&live, "live", false, "Inspect the database instead of the declarations")
	docsCmd.Flags().StringVar(&dialectName, "dialect", "", "Dialect used for declared column types (default: from the database URL)")

	passwordCmd.PersistentFlags().StringVar(&modelName, "model", "", "Model whose key seals the password")
	_ = passwordCmd.MarkPersistentFlagRequired("model")
	passwordCmd.AddCommand(encryptCmd, verifyCmd)

	rootCmd.AddCommand(ddlCmd, docsCmd, checkCmd, applyCmd, passwordCmd)
}

// loadModels reads every configured declaration file.
func loadModels() ([]*schema.Catalog, error) {
	if len(cfg.Models) == 0 {
		return nil, errors.New("no model files given (use --models or models in the config)")
	}
	var cats []*schema.Catalog
	for _, path := range cfg.Models {
		c, err := schema.LoadDeclarations(path)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c...)
	}
	return cats, nil
}

// targetDialect picks the dialect from --dialect, else from the database URL.
func targetDialect() (*dialect.Dialect, error) {
	if dialectName != "" {
		return dialect.Lookup(dialectName)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("--dialect or a database URL is required")
	}
	name, _, err := db.ParseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return dialect.Lookup(string(name))
}

func openDB(ctx context.Context) (*sqlmodel.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	checksum, err := cfg.ChecksumBytes()
	if err != nil {
		return nil, err
	}
	return sqlmodel.Open(ctx, cfg.DatabaseURL, &sqlmodel.Options{
		Logger:        logger,
		SlowThreshold: cfg.SlowThreshold,
		InfoThreshold: cfg.InfoThreshold,
		Namespace:     cfg.Namespace,
		Checksum:      checksum,
	})
}

func closeDB(d *sqlmodel.DB) {
	if err := d.Close(); err != nil {
		logger.Warn("failed to close database connection", slog.String("error", err.Error()))
	}
}

func runDDL(cmd *cobra.Command, args []string) error {
	d, err := targetDialect()
	if err != nil {
		return err
	}
	cats, err := loadModels()
	if err != nil {
		return err
	}
	writeDDL(cmd.OutOrStdout(), d, cats)
	for _, cat := range cats {
		for _, o := range cat.Omissions(d) {
			logger.LogAttrs(cmd.Context(), slog.LevelWarn, "declared feature is not supported by the dialect, skipping",
				slog.String("model_name", cat.Model()),
				slog.String("column", o.Column),
				slog.String("feature", o.Feature),
				slog.String("dialect", string(d.Name)))
		}
	}
	return nil
}

func writeDDL(w io.Writer, d *dialect.Dialect, cats []*schema.Catalog) {
	for i, cat := range cats {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w, cat.CreateTableSQL(d))
		for _, stmt := range cat.CreateIndexesSQL(d) {
			_, _ = fmt.Fprintln(w, stmt)
		}
	}
}

func runDocs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	tableList := parseTableList(tables)
	var layout *schema.Layout
	if live {
		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB(d)

		in, err := db.NewInspector(d.Driver(), cfg.Schema)
		if err != nil {
			return err
		}
		layout, err = db.Inspect(ctx, in, tableList)
		if err != nil {
			return fmt.Errorf("failed to inspect schema: %w", err)
		}
	} else {
		d, err := targetDialect()
		if err != nil {
			return err
		}
		cats, err := loadModels()
		if err != nil {
			return err
		}
		layout = schema.LayoutOf(d, cats...)
		if len(tableList) > 0 {
			keepTables(layout, tableList)
		}
	}
	filterExcludedTables(layout, parseTableList(excludeTables))

	shouldSplit := outputDir != "" && (splitThreshold == 0 || len(layout.Tables) > splitThreshold)
	if shouldSplit {
		if err := formatter.NewMultiFileFormatter(outputDir, format).Format(layout); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}

	writer := cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Warn("failed to close output file", slog.String("error", err.Error()))
			}
		}()
		writer = f
	}

	f, err := formatter.New(format, writer)
	if err != nil {
		return err
	}
	if err := f.Format(layout); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cats, err := loadModels()
	if err != nil {
		return err
	}
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB(d)

	drifts, err := d.Check(ctx, cfg.Schema, cats...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, drift := range drifts {
		_, _ = fmt.Fprintln(out, drift.String())
	}
	if len(drifts) > 0 {
		return fmt.Errorf("%w: %d difference(s)", errDrift, len(drifts))
	}
	_, _ = fmt.Fprintln(out, "schema in sync")
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cats, err := loadModels()
	if err != nil {
		return err
	}
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB(d)
	return d.CreateTables(ctx, cats...)
}

// passwordVault derives the key of --model for the configured engine. Only the
// URL scheme is read; no connection is made.
func passwordVault() (*vault.Vault, error) {
	d, err := targetDialect()
	if err != nil {
		return nil, err
	}
	checksum, err := cfg.ChecksumBytes()
	if err != nil {
		return nil, err
	}
	return vault.New(string(d.Name), cfg.Namespace+modelName, checksum)
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	v, err := passwordVault()
	if err != nil {
		return err
	}
	enc, err := v.EncryptPassword(args[0])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), enc)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	v, err := passwordVault()
	if err != nil {
		return err
	}
	if !v.VerifyPassword(args[0], args[1]) {
		return errors.New("password does not match")
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	list := strings.Split(s, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

func keepTables(l *schema.Layout, names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	filtered := l.Tables[:0]
	for _, t := range l.Tables {
		if keep[t.Name] {
			filtered = append(filtered, t)
		}
	}
	l.Tables = filtered
}

func filterExcludedTables(l *schema.Layout, exclude []string) {
	if len(exclude) == 0 {
		return
	}
	skip := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		skip[n] = true
	}
	filtered := make([]schema.TableLayout, 0, len(l.Tables))
	for _, t := range l.Tables {
		if !skip[t.Name] {
			filtered = append(filtered, t)
		}
	}
	l.Tables = filtered
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
