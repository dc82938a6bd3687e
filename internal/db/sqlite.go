package db

import (
	"context"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlmodel/internal/dialect"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	*SQLClient
}

// NewSQLiteClient creates a new SQLite client
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	c, err := openSQL(ctx, "sqlite3", path, dialect.SQLiteDialect)
	if err != nil {
		return nil, err
	}

	// every connection to :memory: opens its own database
	if path == "" || strings.Contains(path, ":memory:") {
		c.db.SetMaxOpenConns(1)
	}

	return &SQLiteClient{SQLClient: c}, nil
}
