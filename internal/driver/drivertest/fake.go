// Package drivertest provides an in-memory driver that records every statement.
package drivertest

import (
	"context"
	"iter"
	"sync"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
)

// Call is one recorded statement.
type Call struct {
	Fetch bool
	Query string
	Args  []any
}

// Fake is a driver.Driver answering from callbacks. Without callbacks, Execute
// affects one row and fetches return no rows.
type Fake struct {
	D         *dialect.Dialect
	ExecFunc  func(query string, args []any) (driver.Result, error)
	FetchFunc func(query string, args []any) ([]driver.Row, error)

	mu     sync.Mutex
	calls  []Call
	closed bool
}

// New returns a fake for dialect d.
func New(d *dialect.Dialect) *Fake {
	return &Fake{D: d}
}

func (f *Fake) Dialect() *dialect.Dialect { return f.D }

func (f *Fake) record(fetch bool, query string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Fetch: fetch, Query: query, Args: args})
}

// Calls returns the statements recorded so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Execute(ctx context.Context, query string, args ...any) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return driver.Result{}, err
	}
	f.record(false, query, args)
	if f.ExecFunc == nil {
		return driver.Result{RowsAffected: 1}, nil
	}
	return f.ExecFunc(query, args)
}

func (f *Fake) fetch(ctx context.Context, query string, args []any) ([]driver.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.record(true, query, args)
	if f.FetchFunc == nil {
		return nil, nil
	}
	return f.FetchFunc(query, args)
}

func (f *Fake) FetchAll(ctx context.Context, query string, args ...any) iter.Seq2[driver.Row, error] {
	return func(yield func(driver.Row, error) bool) {
		rows, err := f.fetch(ctx, query, args)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (f *Fake) FetchOne(ctx context.Context, query string, args ...any) (driver.Row, error) {
	rows, err := f.fetch(ctx, query, args)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
