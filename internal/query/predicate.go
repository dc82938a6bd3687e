package query

import (
	"reflect"
)

// Op is a comparison operator
type Op string

const (
	OpEq        Op = "="
	OpNe        Op = "<>"
	OpLt        Op = "<"
	OpLe        Op = "<="
	OpGt        Op = ">"
	OpGe        Op = ">="
	OpIn        Op = "IN"
	OpNotIn     Op = "NOT IN"
	OpLike      Op = "LIKE"
	OpILike     Op = "ILIKE"
	OpBetween   Op = "BETWEEN"
	OpIsNull    Op = "IS NULL"
	OpIsNotNull Op = "IS NOT NULL"
)

// Predicate is a node of a filter tree.
type Predicate interface {
	predicate()
}

type andNode struct{ items []Predicate }
type orNode struct{ items []Predicate }
type notNode struct{ item Predicate }
type constNode struct{ value bool }

type cmpNode struct {
	left  any // string path or *Aggregate
	op    Op
	value any
}

type rawNode struct {
	template string
	vars     map[string]any
}

func (andNode) predicate()   {}
func (orNode) predicate()    {}
func (notNode) predicate()   {}
func (constNode) predicate() {}
func (cmpNode) predicate()   {}
func (rawNode) predicate()   {}

// And matches rows matching every item. An empty And matches all rows.
func And(items ...Predicate) Predicate { return andNode{items: items} }

// Or matches rows matching any item. An empty Or matches no rows.
func Or(items ...Predicate) Predicate { return orNode{items: items} }

// Not negates p.
func Not(p Predicate) Predicate { return notNode{item: p} }

// True matches all rows.
func True() Predicate { return constNode{value: true} }

// False matches no rows.
func False() Predicate { return constNode{value: false} }

// Cmp compares left, a field path or an aggregate, with value.
func Cmp(left any, op Op, value any) Predicate {
	return cmpNode{left: left, op: op, value: value}
}

// Eq matches left = value; a nil value matches IS NULL.
func Eq(left any, value any) Predicate {
	if isNil(value) {
		return cmpNode{left: left, op: OpIsNull}
	}
	return cmpNode{left: left, op: OpEq, value: value}
}

// Ne matches left <> value; a nil value matches IS NOT NULL.
func Ne(left any, value any) Predicate {
	if isNil(value) {
		return cmpNode{left: left, op: OpIsNotNull}
	}
	return cmpNode{left: left, op: OpNe, value: value}
}

func Lt(left any, value any) Predicate { return cmpNode{left: left, op: OpLt, value: value} }
func Le(left any, value any) Predicate { return cmpNode{left: left, op: OpLe, value: value} }
func Gt(left any, value any) Predicate { return cmpNode{left: left, op: OpGt, value: value} }
func Ge(left any, value any) Predicate { return cmpNode{left: left, op: OpGe, value: value} }

// In matches left against the elements of a slice. An empty slice matches nothing.
func In(left any, values any) Predicate { return cmpNode{left: left, op: OpIn, value: values} }

// NotIn is the negation of In. An empty slice matches everything.
func NotIn(left any, values any) Predicate { return cmpNode{left: left, op: OpNotIn, value: values} }

// Like takes the pattern verbatim; no wildcards are added.
func Like(left any, pattern string) Predicate {
	return cmpNode{left: left, op: OpLike, value: pattern}
}

// ILike is the case-insensitive Like.
func ILike(left any, pattern string) Predicate {
	return cmpNode{left: left, op: OpILike, value: pattern}
}

func Between(left any, low, high any) Predicate {
	return cmpNode{left: left, op: OpBetween, value: []any{low, high}}
}

func IsNull(left any) Predicate    { return cmpNode{left: left, op: OpIsNull} }
func IsNotNull(left any) Predicate { return cmpNode{left: left, op: OpIsNotNull} }

// Raw is a caller-supplied fragment expanded with #{} and ${} templates.
func Raw(template string, vars map[string]any) Predicate {
	return rawNode{template: template, vars: vars}
}

// simplify flattens nested conjunctions and folds constants.
func simplify(p Predicate) Predicate {
	switch n := p.(type) {
	case nil:
		return constNode{value: true}
	case andNode:
		var items []Predicate
		for _, item := range n.items {
			s := simplify(item)
			switch c := s.(type) {
			case constNode:
				if !c.value {
					return c
				}
				continue
			case andNode:
				items = append(items, c.items...)
				continue
			}
			items = append(items, s)
		}
		switch len(items) {
		case 0:
			return constNode{value: true}
		case 1:
			return items[0]
		}
		return andNode{items: items}
	case orNode:
		var items []Predicate
		for _, item := range n.items {
			s := simplify(item)
			switch c := s.(type) {
			case constNode:
				if c.value {
					return c
				}
				continue
			case orNode:
				items = append(items, c.items...)
				continue
			}
			items = append(items, s)
		}
		switch len(items) {
		case 0:
			return constNode{value: false}
		case 1:
			return items[0]
		}
		return orNode{items: items}
	case notNode:
		s := simplify(n.item)
		if c, ok := s.(constNode); ok {
			return constNode{value: !c.value}
		}
		return notNode{item: s}
	case cmpNode:
		if n.op == OpIn || n.op == OpNotIn {
			if l, ok := sliceLen(n.value); ok && l == 0 {
				return constNode{value: n.op == OpNotIn}
			}
		}
		return n
	}
	return p
}

func sliceLen(v any) (int, bool) {
	if v == nil {
		return 0, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
