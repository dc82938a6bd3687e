package query

import (
	"strings"
)

// AggFunc is an aggregate function
type AggFunc string

const (
	AggCount AggFunc = "count"
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// Aggregate is a projection of the form agg(field[, distinct]) with an optional alias.
type Aggregate struct {
	Func     AggFunc
	Field    string
	Distinct bool
	alias    string
}

// CountAll is count(*), aliased "count" by default.
func CountAll() *Aggregate { return &Aggregate{Func: AggCount, Field: "*"} }

func Count(field string) *Aggregate { return &Aggregate{Func: AggCount, Field: field} }

// CountDistinct is count(distinct field), aliased {field}_distinct by default.
func CountDistinct(field string) *Aggregate {
	return &Aggregate{Func: AggCount, Field: field, Distinct: true}
}

func Sum(field string) *Aggregate { return &Aggregate{Func: AggSum, Field: field} }
func Avg(field string) *Aggregate { return &Aggregate{Func: AggAvg, Field: field} }
func Min(field string) *Aggregate { return &Aggregate{Func: AggMin, Field: field} }
func Max(field string) *Aggregate { return &Aggregate{Func: AggMax, Field: field} }

// As returns a copy of a with the given alias.
func (a *Aggregate) As(alias string) *Aggregate {
	c := *a
	c.alias = alias
	return &c
}

// Alias returns the explicit alias or the default {field}_{agg}.
func (a *Aggregate) Alias() string {
	if a.alias != "" {
		return a.alias
	}
	if a.Field == "*" {
		return string(a.Func)
	}
	field := strings.ReplaceAll(a.Field, ".", "__")
	if a.Distinct {
		return field + "_distinct"
	}
	return field + "_" + string(a.Func)
}

// Field is a projected column path with an optional alias.
type Field struct {
	Path  string
	alias string
}

// Col projects a column by path; "owner_id.name" follows the owner_id reference.
func Col(path string) Field { return Field{Path: path} }

// As returns a copy of f with the given alias.
func (f Field) As(alias string) Field {
	f.alias = alias
	return f
}

// Alias returns the explicit alias, the joined path for reference paths, or "".
func (f Field) Alias() string {
	if f.alias != "" {
		return f.alias
	}
	if strings.Contains(f.Path, ".") {
		return strings.ReplaceAll(f.Path, ".", "__")
	}
	return ""
}
