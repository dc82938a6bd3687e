package hook

import (
	"context"
)

// Model types opt into lifecycle hooks by implementing any of the interfaces below.
// A missing hook is a no-op.

// BeforeScanner runs before a read query is sent.
type BeforeScanner interface {
	BeforeScan(ctx context.Context, qc *QueryContext) error
}

// AfterScanner runs after the rows of a read query are consumed.
type AfterScanner interface {
	AfterScan(ctx context.Context, qc *QueryContext) error
}

// BeforeValidator may enrich the input of an insert, update or upsert before it is read.
type BeforeValidator interface {
	BeforeValidate(ctx context.Context, data map[string]any) error
}

// AfterValidator runs once the input has been read into the model.
type AfterValidator interface {
	AfterValidate(ctx context.Context) error
}

type BeforeInserter interface {
	BeforeInsert(ctx context.Context, qc *QueryContext) error
}

type AfterInserter interface {
	AfterInsert(ctx context.Context, qc *QueryContext, success bool) error
}

type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context, qc *QueryContext) error
}

type AfterUpdater interface {
	AfterUpdate(ctx context.Context, qc *QueryContext, success bool) error
}

type BeforeUpserter interface {
	BeforeUpsert(ctx context.Context, qc *QueryContext) error
}

type AfterUpserter interface {
	AfterUpsert(ctx context.Context, qc *QueryContext, success bool) error
}

type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, qc *QueryContext) error
}

type AfterDeleter interface {
	AfterDelete(ctx context.Context, qc *QueryContext, success bool) error
}

// AfterDecoder may rewrite a row decoded into a generic map, for example to rename keys.
type AfterDecoder interface {
	AfterDecode(row map[string]any)
}

// Before runs the before hook of model matching action. It completes before any
// statement for the action is sent.
func Before(ctx context.Context, action Action, model any, qc *QueryContext) error {
	switch action {
	case Scan, Count:
		if h, ok := model.(BeforeScanner); ok {
			return h.BeforeScan(ctx, qc)
		}
	case Insert:
		if h, ok := model.(BeforeInserter); ok {
			return h.BeforeInsert(ctx, qc)
		}
	case Update:
		if h, ok := model.(BeforeUpdater); ok {
			return h.BeforeUpdate(ctx, qc)
		}
	case Upsert:
		if h, ok := model.(BeforeUpserter); ok {
			return h.BeforeUpsert(ctx, qc)
		}
	case Delete:
		if h, ok := model.(BeforeDeleter); ok {
			return h.BeforeDelete(ctx, qc)
		}
	}
	return nil
}

// After runs the after hook of model matching action, on success and on failure.
func After(ctx context.Context, action Action, model any, qc *QueryContext) error {
	switch action {
	case Scan, Count:
		if h, ok := model.(AfterScanner); ok {
			return h.AfterScan(ctx, qc)
		}
	case Insert:
		if h, ok := model.(AfterInserter); ok {
			return h.AfterInsert(ctx, qc, qc.Success)
		}
	case Update:
		if h, ok := model.(AfterUpdater); ok {
			return h.AfterUpdate(ctx, qc, qc.Success)
		}
	case Upsert:
		if h, ok := model.(AfterUpserter); ok {
			return h.AfterUpsert(ctx, qc, qc.Success)
		}
	case Delete:
		if h, ok := model.(AfterDeleter); ok {
			return h.AfterDelete(ctx, qc, qc.Success)
		}
	}
	return nil
}
