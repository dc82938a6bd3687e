package db

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/errs"
)

// PostgresClient runs statements against PostgreSQL through a pgx pool.
type PostgresClient struct {
	pool *pgxpool.Pool
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool}, nil
}

func (c *PostgresClient) Dialect() *dialect.Dialect { return dialect.PostgresDialect }

// Execute runs a statement. PostgreSQL reports no insert id; inserts that need
// one use RETURNING through FetchOne.
func (c *PostgresClient) Execute(ctx context.Context, query string, args ...any) (driver.Result, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return driver.Result{}, errs.Driver(err)
	}
	return driver.Result{RowsAffected: tag.RowsAffected()}, nil
}

func (c *PostgresClient) FetchAll(ctx context.Context, query string, args ...any) iter.Seq2[driver.Row, error] {
	return func(yield func(driver.Row, error) bool) {
		rows, err := c.pool.Query(ctx, query, args...)
		if err != nil {
			yield(nil, errs.Driver(err))
			return
		}
		defer rows.Close()

		columns := fieldNames(rows.FieldDescriptions())
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				yield(nil, errs.Driver(err))
				return
			}
			if !yield(driver.NewMapRow(columns, values), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, errs.Driver(err))
		}
	}
}

func (c *PostgresClient) FetchOne(ctx context.Context, query string, args ...any) (driver.Row, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Driver(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Driver(err)
		}
		return nil, nil
	}
	values, err := rows.Values()
	if err != nil {
		return nil, errs.Driver(err)
	}
	return driver.NewMapRow(fieldNames(rows.FieldDescriptions()), values), nil
}

// Close closes the pool
func (c *PostgresClient) Close() error {
	c.pool.Close()
	return nil
}

// Pool returns the underlying pool
func (c *PostgresClient) Pool() *pgxpool.Pool {
	return c.pool
}

func fieldNames(fields []pgconn.FieldDescription) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
