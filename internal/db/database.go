package db

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/errs"
)

// SQLClient adapts a database/sql handle to the model driver port.
// The MySQL, SQLite and DuckDB clients share it.
type SQLClient struct {
	db      *sql.DB
	dialect *dialect.Dialect
}

func openSQL(ctx context.Context, driverName, dsn string, d *dialect.Dialect) (*SQLClient, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLClient{db: db, dialect: d}, nil
}

func (c *SQLClient) Dialect() *dialect.Dialect { return c.dialect }

func (c *SQLClient) Execute(ctx context.Context, query string, args ...any) (driver.Result, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return driver.Result{}, errs.Driver(err)
	}
	var out driver.Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	// not every engine reports insert ids
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func (c *SQLClient) FetchAll(ctx context.Context, query string, args ...any) iter.Seq2[driver.Row, error] {
	return func(yield func(driver.Row, error) bool) {
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, errs.Driver(err))
			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, errs.Driver(err))
			return
		}
		for rows.Next() {
			row, err := scanRow(rows, columns)
			if err != nil {
				yield(nil, errs.Driver(err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, errs.Driver(err))
		}
	}
}

func (c *SQLClient) FetchOne(ctx context.Context, query string, args ...any) (driver.Row, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Driver(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, errs.Driver(rows.Err())
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Driver(err)
	}
	row, err := scanRow(rows, columns)
	if err != nil {
		return nil, errs.Driver(err)
	}
	return row, nil
}

// Close closes the database connection
func (c *SQLClient) Close() error {
	return c.db.Close()
}

// DB returns the underlying database handle
func (c *SQLClient) DB() *sql.DB {
	return c.db
}

func scanRow(rows *sql.Rows, columns []string) (driver.Row, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		// the driver may reuse the buffer on the next Scan
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return driver.NewMapRow(columns, values), nil
}
