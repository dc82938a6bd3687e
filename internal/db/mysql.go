package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/sqlmodel/internal/dialect"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	*SQLClient
	database string
}

// NewMySQLClient creates a new MySQL client. connString is a go-sql-driver DSN
// such as user:pass@tcp(host:3306)/dbname.
func NewMySQLClient(ctx context.Context, connString string) (*MySQLClient, error) {
	cfg, err := mysql.ParseDSN(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	c, err := openSQL(ctx, "mysql", cfg.FormatDSN(), dialect.MySQLDialect)
	if err != nil {
		return nil, err
	}

	return &MySQLClient{SQLClient: c, database: cfg.DBName}, nil
}

// Database returns the schema name selected by the DSN
func (c *MySQLClient) Database() string {
	return c.database
}

// erDupKeyName is the MySQL error number for an index name already in use.
const erDupKeyName = 1061

// IsDuplicateIndex reports a CREATE INDEX that failed because the index exists.
// Only MySQL, which lacks CREATE INDEX IF NOT EXISTS, reports it.
func IsDuplicateIndex(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupKeyName
}
