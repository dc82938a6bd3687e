package sqlmodel

import (
	"github.com/tordrt/sqlmodel/internal/db"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/hook"
	"github.com/tordrt/sqlmodel/internal/mutation"
	"github.com/tordrt/sqlmodel/internal/query"
	"github.com/tordrt/sqlmodel/internal/schema"
)

type (
	Catalog   = schema.Catalog
	Column    = schema.Column
	Layout    = schema.Layout
	Query     = query.Builder
	Statement = query.Statement
	Predicate = query.Predicate
	Aggregate = query.Aggregate
	Field     = query.Field
	Mutation  = mutation.Mutation
	Dialect   = dialect.Dialect
	Driver    = driver.Driver
	Row       = driver.Row
	Result    = driver.Result
	Drift     = db.Drift

	QueryContext = hook.QueryContext
	Action       = hook.Action
)

// Hook interfaces a model may implement.
type (
	BeforeScanner   = hook.BeforeScanner
	AfterScanner    = hook.AfterScanner
	BeforeValidator = hook.BeforeValidator
	AfterValidator  = hook.AfterValidator
	BeforeInserter  = hook.BeforeInserter
	AfterInserter   = hook.AfterInserter
	BeforeUpdater   = hook.BeforeUpdater
	AfterUpdater    = hook.AfterUpdater
	BeforeUpserter  = hook.BeforeUpserter
	AfterUpserter   = hook.AfterUpserter
	BeforeDeleter   = hook.BeforeDeleter
	AfterDeleter    = hook.AfterDeleter
	AfterDecoder    = hook.AfterDecoder
)

// Error types; match them with errors.As.
type (
	UnknownColumnError    = errs.UnknownColumnError
	DecodeError           = errs.DecodeError
	BindError             = errs.BindError
	ReferenceMissingError = errs.ReferenceMissingError
	ValidationError       = errs.ValidationError
	DriverError           = errs.DriverError
)

var (
	ErrNotFound   = errs.ErrNotFound
	ErrOutOfRange = errs.ErrOutOfRange
	ErrNull       = errs.ErrNull
)

// Filter constructors. left is a field path such as "owner.name" or an aggregate.
var (
	Eq        = query.Eq
	Ne        = query.Ne
	Lt        = query.Lt
	Le        = query.Le
	Gt        = query.Gt
	Ge        = query.Ge
	In        = query.In
	NotIn     = query.NotIn
	Like      = query.Like
	ILike     = query.ILike
	Between   = query.Between
	IsNull    = query.IsNull
	IsNotNull = query.IsNotNull
	And       = query.And
	Or        = query.Or
	Not       = query.Not
	True      = query.True
	False     = query.False
	Raw       = query.Raw
)

// Projection constructors.
var (
	Col           = query.Col
	CountAll      = query.CountAll
	Count         = query.Count
	CountDistinct = query.CountDistinct
	Sum           = query.Sum
	Avg           = query.Avg
	Min           = query.Min
	Max           = query.Max
)

// NewMutation starts an update document restricted to fields; no fields permits all.
func NewMutation(fields ...string) *Mutation { return mutation.New(fields...) }

// ParseMutation reads a JSON update document such as {"score": {"$inc": 1}}.
func ParseMutation(doc []byte, fields ...string) (*Mutation, error) {
	return mutation.Parse(doc, fields...)
}

// CatalogOf returns the reflected catalog of T.
func CatalogOf[T any]() (*Catalog, error) { return schema.For[T]() }

// LoadDeclarations reads model declarations from a YAML file.
func LoadDeclarations(path string) ([]*Catalog, error) { return schema.LoadDeclarations(path) }
