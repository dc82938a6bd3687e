// Package hook carries the per-query context and the lifecycle hooks run around
// every statement.
package hook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Action names the kind of statement a query context belongs to
type Action string

const (
	Scan   Action = "scan"
	Count  Action = "count"
	Insert Action = "insert"
	Update Action = "update"
	Upsert Action = "upsert"
	Delete Action = "delete"
)

// QueryContext is owned by the calling goroutine for the lifetime of one query.
type QueryContext struct {
	ID        uuid.UUID
	Model     string
	Action    Action
	Query     string
	Args      []any
	StartTime time.Time
	// Tag is an optional caller label included in the query logs.
	Tag string

	LastInsertID int64
	RowsAffected int64
	Rows         int
	Success      bool
	Cancelled    bool
	Err          error
}

// NewContext starts a query context; the ID is a time-ordered UUID.
func NewContext(model string, action Action, query string, args []any) *QueryContext {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &QueryContext{
		ID:        id,
		Model:     model,
		Action:    action,
		Query:     query,
		Args:      args,
		StartTime: time.Now(),
	}
}

// SetQuery records the statement once it is rendered.
func (c *QueryContext) SetQuery(query string, args []any) {
	c.Query = query
	c.Args = args
}

// SetResult records a successful execution.
func (c *QueryContext) SetResult(rowsAffected, lastInsertID int64) {
	c.RowsAffected = rowsAffected
	c.LastInsertID = lastInsertID
	c.Success = true
}

// RecordError records a failed execution. A context cancellation marks the query
// cancelled instead of failed.
func (c *QueryContext) RecordError(err error) {
	if err == nil {
		return
	}
	c.Err = err
	c.Success = false
	if errors.Is(err, context.Canceled) {
		c.Cancelled = true
	}
}

// Cancel marks the query cancelled by the caller.
func (c *QueryContext) Cancel() {
	c.Cancelled = true
	c.Success = false
}

func (c *QueryContext) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}

// FormatArgs renders the bound arguments for logging.
func (c *QueryContext) FormatArgs() string {
	parts := make([]string, len(c.Args))
	for i, arg := range c.Args {
		switch v := arg.(type) {
		case nil:
			parts[i] = "NULL"
		case string:
			parts[i] = fmt.Sprintf("%q", v)
		case []byte:
			parts[i] = fmt.Sprintf("<%d bytes>", len(v))
		default:
			if b, err := json.Marshal(v); err == nil {
				parts[i] = string(b)
			} else {
				parts[i] = fmt.Sprint(v)
			}
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
