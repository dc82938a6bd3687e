package db

import (
	"context"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tordrt/sqlmodel/internal/dialect"
)

// DuckDBClient manages the connection to DuckDB. An empty path opens an
// in-memory database.
type DuckDBClient struct {
	*SQLClient
}

// NewDuckDBClient creates a new DuckDB client
func NewDuckDBClient(ctx context.Context, path string) (*DuckDBClient, error) {
	c, err := openSQL(ctx, "duckdb", path, dialect.DuckDBDialect)
	if err != nil {
		return nil, err
	}

	if path == "" {
		c.db.SetMaxOpenConns(1)
	}

	return &DuckDBClient{SQLClient: c}, nil
}
