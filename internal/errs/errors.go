// Package errs defines the error kinds reported by the model runtime.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrOutOfRange is reported when an integer does not fit the declared column width,
// most notably an unsigned column receiving a negative value.
var ErrOutOfRange = errors.New("value out of range")

// ErrNotFound is reported when a lookup by primary key or a single-row query
// matches nothing.
var ErrNotFound = errors.New("no matching row")

// ErrNull is reported when SQL NULL reaches a non-nullable field without coalescing.
var ErrNull = errors.New("unexpected NULL value")

// UnknownColumnError reports a reference to a field absent from a catalog.
type UnknownColumnError struct {
	Model string
	Name  string
}

func (e *UnknownColumnError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("unknown column %q", e.Name)
	}
	return fmt.Sprintf("unknown column %q in model %s", e.Name, e.Model)
}

// DecodeError reports a driver value that could not be converted for a column.
type DecodeError struct {
	Column string
	Row    int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode column %q at row %d: %v", e.Column, e.Row, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BindError reports a value that could not be bound to a placeholder.
// Index is 1-based, matching the placeholder position.
type BindError struct {
	Index int
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind parameter %d: %v", e.Index, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ReferenceMissingError reports a referenced row that could not be found.
type ReferenceMissingError struct {
	Model string
	ID    any
}

func (e *ReferenceMissingError) Error() string {
	return fmt.Sprintf("referenced %s %v does not exist", e.Model, e.ID)
}

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field error, keeping the first message for a field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// DriverError wraps an error returned by the database driver.
type DriverError struct {
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error: %v", e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// Driver wraps err as a DriverError unless it is nil or already one.
func Driver(err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Err: err}
}
