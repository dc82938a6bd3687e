// Package query builds SELECT, UPDATE and DELETE statements against a catalog.
package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// Direction is a sort direction
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Nulls places NULL values in a sort
type Nulls int

const (
	NullsDefault Nulls = iota
	NullsFirst
	NullsLast
)

type order struct {
	expr  string
	dir   Direction
	nulls Nulls
}

// Builder composes a query over one root catalog. Builder methods record the first
// error, which Build reports.
type Builder struct {
	cat *schema.Catalog
	d   *dialect.Dialect

	projection []any
	filter     Predicate
	joins      []string
	groupBy    []string
	having     Predicate
	orderBy    []order
	limit      int
	offset     int
	err        error
}

// Statement is a rendered statement and its parameters.
type Statement struct {
	SQL  string
	Args []any
	// Columns lists the output names of a SELECT in projection order.
	Columns []string
	// Empty reports a filter folded to false; no row can match.
	Empty bool
}

// New starts a query over cat for dialect d.
func New(cat *schema.Catalog, d *dialect.Dialect) *Builder {
	return &Builder{cat: cat, d: d}
}

// Catalog returns the root catalog.
func (b *Builder) Catalog() *schema.Catalog { return b.cat }

// Select adds projection items: a column path string, a Field or an *Aggregate.
func (b *Builder) Select(items ...any) *Builder {
	for _, item := range items {
		switch item.(type) {
		case string, Field, *Aggregate:
			b.projection = append(b.projection, item)
		default:
			b.setErr(fmt.Errorf("unsupported projection %T", item))
		}
	}
	return b
}

// And narrows the filter with p.
func (b *Builder) And(p Predicate) *Builder {
	if b.filter == nil {
		b.filter = p
	} else {
		b.filter = andNode{items: []Predicate{b.filter, p}}
	}
	return b
}

// Or widens the filter with p. On an empty filter it starts the filter with p.
func (b *Builder) Or(p Predicate) *Builder {
	if b.filter == nil {
		b.filter = p
	} else {
		b.filter = orNode{items: []Predicate{b.filter, p}}
	}
	return b
}

// Not narrows the filter with the negation of p.
func (b *Builder) Not(p Predicate) *Builder {
	return b.And(notNode{item: p})
}

// Where narrows the filter with a template fragment; see Expand.
func (b *Builder) Where(template string, vars map[string]any) *Builder {
	return b.And(rawNode{template: template, vars: vars})
}

// Join declares a reference column of the root type. The referenced type and every
// type reachable from it are joined.
func (b *Builder) Join(reference string) *Builder {
	b.joins = append(b.joins, reference)
	return b
}

func (b *Builder) GroupBy(exprs ...string) *Builder {
	b.groupBy = append(b.groupBy, exprs...)
	return b
}

// Having filters groups. Operands may be aggregates or projection aliases.
func (b *Builder) Having(p Predicate) *Builder {
	if b.having == nil {
		b.having = p
	} else {
		b.having = andNode{items: []Predicate{b.having, p}}
	}
	return b
}

// OrderBy appends a sort key, a column path or a projection alias.
func (b *Builder) OrderBy(expr string, dir Direction, nulls Nulls) *Builder {
	b.orderBy = append(b.orderBy, order{expr: expr, dir: dir, nulls: nulls})
	return b
}

func (b *Builder) OrderAsc(expr string) *Builder  { return b.OrderBy(expr, Asc, NullsDefault) }
func (b *Builder) OrderDesc(expr string) *Builder { return b.OrderBy(expr, Desc, NullsDefault) }

func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// render holds the state of one rendering pass.
type render struct {
	b       *Builder
	plan    *joinPlan
	qualify bool
	args    []any
	start   int
	aliases map[string]*Aggregate
	// fields maps projection aliases of plain columns to their paths
	fields map[string]string
}

func (b *Builder) newRender(start int) (*render, error) {
	if b.err != nil {
		return nil, b.err
	}
	r := &render{b: b, plan: newJoinPlan(b.cat), start: start,
		aliases: make(map[string]*Aggregate), fields: make(map[string]string)}
	for _, ref := range b.joins {
		if err := r.plan.closure(ref); err != nil {
			return nil, err
		}
	}
	if err := r.collectPaths(); err != nil {
		return nil, err
	}
	r.qualify = len(r.plan.nodes) > 0
	return r, nil
}

// collectPaths plans the joins needed by every path the query mentions, so
// qualification is known before anything is rendered.
func (r *render) collectPaths() error {
	var paths []string
	for _, item := range r.b.projection {
		var f Field
		switch p := item.(type) {
		case string:
			f = Col(p)
		case Field:
			f = p
		case *Aggregate:
			r.aliases[p.Alias()] = p
			if p.Field != "*" {
				paths = append(paths, p.Field)
			}
			continue
		default:
			continue
		}
		paths = append(paths, f.Path)
		if alias := f.Alias(); alias != "" {
			r.fields[alias] = f.Path
		}
	}
	paths = append(paths, predicatePaths(r.b.filter)...)
	paths = append(paths, r.b.groupBy...)
	for _, p := range predicatePaths(r.b.having) {
		if path, ok := r.fields[p]; ok {
			paths = append(paths, path)
		} else if _, ok := r.aliases[p]; !ok {
			paths = append(paths, p)
		}
	}
	for _, o := range r.b.orderBy {
		if !r.isAlias(o.expr) {
			paths = append(paths, o.expr)
		}
	}
	for _, p := range paths {
		if strings.Contains(p, ".") {
			if _, _, err := r.plan.resolve(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *render) isAlias(name string) bool {
	if _, ok := r.aliases[name]; ok {
		return true
	}
	_, ok := r.fields[name]
	return ok
}

func predicatePaths(p Predicate) []string {
	var out []string
	switch n := p.(type) {
	case andNode:
		for _, item := range n.items {
			out = append(out, predicatePaths(item)...)
		}
	case orNode:
		for _, item := range n.items {
			out = append(out, predicatePaths(item)...)
		}
	case notNode:
		out = append(out, predicatePaths(n.item)...)
	case cmpNode:
		switch left := n.left.(type) {
		case string:
			out = append(out, left)
		case Field:
			out = append(out, left.Path)
		case *Aggregate:
			if left.Field != "*" {
				out = append(out, left.Field)
			}
		}
	}
	return out
}

func (r *render) bind(v any) string {
	r.args = append(r.args, v)
	return r.b.d.Bind(r.start + len(r.args) - 1)
}

// column renders a path as a (possibly qualified) column reference.
func (r *render) column(path string) (string, *schema.Column, error) {
	n, col, err := r.plan.resolve(path)
	if err != nil {
		return "", nil, err
	}
	name := r.b.d.FormatIdentifier(col.ColumnName)
	if r.qualify {
		name = r.plan.alias(n, r.b.d) + "." + name
	}
	return name, col, nil
}

func (r *render) aggregate(a *Aggregate) (string, *schema.Column, error) {
	if a.Field == "*" {
		if a.Func != AggCount {
			return "", nil, fmt.Errorf("%s(*) is not an aggregate", a.Func)
		}
		return "count(*)", nil, nil
	}
	expr, col, err := r.column(a.Field)
	if err != nil {
		return "", nil, err
	}
	if a.Distinct {
		return fmt.Sprintf("%s(distinct %s)", a.Func, expr), col, nil
	}
	return fmt.Sprintf("%s(%s)", a.Func, expr), col, nil
}

// operand renders the left side of a comparison. Projection aliases render as
// the aggregate or column they name.
func (r *render) operand(left any) (string, *schema.Column, error) {
	switch x := left.(type) {
	case string:
		if a, ok := r.aliases[x]; ok {
			expr, _, err := r.aggregate(a)
			return expr, nil, err
		}
		if path, ok := r.fields[x]; ok {
			return r.column(path)
		}
		return r.column(x)
	case Field:
		return r.column(x.Path)
	case *Aggregate:
		expr, _, err := r.aggregate(x)
		return expr, nil, err
	}
	return "", nil, fmt.Errorf("unsupported operand %T", left)
}

func (r *render) value(col *schema.Column, v any) (any, error) {
	if col == nil {
		return v, nil
	}
	enc, err := codec.Encode(schema.Type{Kind: col.Type.Kind, Elem: col.Type.Elem}, v, r.b.d)
	if err != nil {
		return nil, &errs.BindError{Index: r.start + len(r.args), Err: fmt.Errorf("%s: %w", col.Name, err)}
	}
	return enc, nil
}

// predicate renders a simplified predicate. Constants render as 1 = 1 and 1 = 0.
func (r *render) predicate(p Predicate) (string, error) {
	switch n := p.(type) {
	case constNode:
		if n.value {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	case andNode:
		return r.junction(n.items, " AND ")
	case orNode:
		return r.junction(n.items, " OR ")
	case notNode:
		inner, err := r.predicate(n.item)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case rawNode:
		sql, args, err := Expand(n.template, n.vars, r.b.d, r.start+len(r.args))
		if err != nil {
			return "", err
		}
		r.args = append(r.args, args...)
		return "(" + sql + ")", nil
	case cmpNode:
		return r.comparison(n)
	}
	return "", fmt.Errorf("unsupported predicate %T", p)
}

func (r *render) junction(items []Predicate, sep string) (string, error) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, err := r.predicate(item)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (r *render) comparison(n cmpNode) (string, error) {
	left, col, err := r.operand(n.left)
	if err != nil {
		return "", err
	}

	switch n.op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", left, n.op), nil
	case OpIn, OpNotIn:
		rv := reflect.ValueOf(n.value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return "", fmt.Errorf("%s expects a list, got %T", n.op, n.value)
		}
		marks := make([]string, rv.Len())
		for i := range marks {
			v, err := r.value(col, rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			marks[i] = r.bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", left, n.op, strings.Join(marks, ", ")), nil
	case OpBetween:
		bounds, ok := n.value.([]any)
		if !ok || len(bounds) != 2 {
			return "", fmt.Errorf("BETWEEN expects two bounds")
		}
		lo, err := r.value(col, bounds[0])
		if err != nil {
			return "", err
		}
		hi, err := r.value(col, bounds[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", left, r.bind(lo), r.bind(hi)), nil
	case OpLike:
		return fmt.Sprintf("%s LIKE %s", left, r.bind(n.value)), nil
	case OpILike:
		if r.b.d.SupportsILike {
			return fmt.Sprintf("%s ILIKE %s", left, r.bind(n.value)), nil
		}
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", left, r.bind(n.value)), nil
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		v, err := r.value(col, n.value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", left, n.op, r.bind(v)), nil
	}
	return "", fmt.Errorf("unsupported operator %q", n.op)
}

// where renders the WHERE body and reports a filter folded to false.
func (r *render) where() (string, bool, error) {
	p := simplify(r.b.filter)
	if c, ok := p.(constNode); ok {
		if c.value {
			return "", false, nil
		}
		return "1 = 0", true, nil
	}
	s, err := r.root(p)
	return s, false, err
}

// root renders a top-level predicate without enclosing parentheses.
func (r *render) root(p Predicate) (string, error) {
	var items []Predicate
	sep := " AND "
	switch n := p.(type) {
	case andNode:
		items = n.items
	case orNode:
		items, sep = n.items, " OR "
	default:
		return r.predicate(p)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, err := r.predicate(item)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

func (r *render) projection() (string, []string, error) {
	var exprs, names []string
	if len(r.b.projection) == 0 {
		for _, col := range r.b.cat.ReadableColumns() {
			expr, _, err := r.column(col.ColumnName)
			if err != nil {
				return "", nil, err
			}
			exprs = append(exprs, expr)
			names = append(names, col.ColumnName)
		}
		return strings.Join(exprs, ", "), names, nil
	}

	for _, item := range r.b.projection {
		var expr, alias string
		switch p := item.(type) {
		case string:
			e, col, err := r.column(p)
			if err != nil {
				return "", nil, err
			}
			expr, alias = e, Col(p).Alias()
			if alias == "" {
				names = append(names, col.ColumnName)
			}
		case Field:
			e, col, err := r.column(p.Path)
			if err != nil {
				return "", nil, err
			}
			expr, alias = e, p.Alias()
			if alias == "" {
				names = append(names, col.ColumnName)
			}
		case *Aggregate:
			e, _, err := r.aggregate(p)
			if err != nil {
				return "", nil, err
			}
			expr, alias = e, p.Alias()
		}
		if alias != "" {
			expr += " AS " + r.b.d.FormatIdentifier(alias)
			names = append(names, alias)
		}
		exprs = append(exprs, expr)
	}
	return strings.Join(exprs, ", "), names, nil
}

func (r *render) orderClause() (string, error) {
	orders := append([]order(nil), r.b.orderBy...)
	if r.b.limit > 0 {
		orders = r.tieBreak(orders)
	}

	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		var expr string
		if r.isAlias(o.expr) {
			expr = r.b.d.FormatIdentifier(o.expr)
		} else {
			e, _, err := r.column(o.expr)
			if err != nil {
				return "", err
			}
			expr = e
		}
		if o.dir == Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		switch o.nulls {
		case NullsFirst:
			expr += " NULLS FIRST"
		case NullsLast:
			expr += " NULLS LAST"
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, ", "), nil
}

// tieBreak makes limited results deterministic: plain queries end with the primary
// key, grouped queries with the grouping keys.
func (r *render) tieBreak(orders []order) []order {
	has := func(expr string) bool {
		for _, o := range orders {
			if o.expr == expr {
				return true
			}
		}
		return false
	}

	if len(r.b.groupBy) > 0 {
		for _, g := range r.b.groupBy {
			if !has(g) {
				orders = append(orders, order{expr: g})
			}
		}
		return orders
	}
	for _, item := range r.b.projection {
		if _, ok := item.(*Aggregate); ok {
			return orders
		}
	}
	pk := r.b.cat.PrimaryKey()
	if !has(pk.ColumnName) && !has(pk.Name) {
		orders = append(orders, order{expr: pk.ColumnName})
	}
	return orders
}

// Build renders the SELECT statement.
func (b *Builder) Build() (*Statement, error) {
	r, err := b.newRender(1)
	if err != nil {
		return nil, err
	}

	proj, names, err := r.projection()
	if err != nil {
		return nil, err
	}
	parts := []string{"SELECT " + proj, "FROM " + b.cat.FormatTable(b.d)}
	if r.qualify {
		parts = append(parts, r.plan.render(b.d))
	}

	where, empty, err := r.where()
	if err != nil {
		return nil, err
	}
	if where != "" {
		parts = append(parts, "WHERE "+where)
	}

	if len(b.groupBy) > 0 {
		groups := make([]string, 0, len(b.groupBy))
		for _, g := range b.groupBy {
			expr, _, err := r.column(g)
			if err != nil {
				return nil, err
			}
			groups = append(groups, expr)
		}
		parts = append(parts, "GROUP BY "+strings.Join(groups, ", "))
	}

	if b.having != nil {
		having, err := r.root(simplify(b.having))
		if err != nil {
			return nil, err
		}
		parts = append(parts, "HAVING "+having)
	}

	orderBy, err := r.orderClause()
	if err != nil {
		return nil, err
	}
	if orderBy != "" {
		parts = append(parts, "ORDER BY "+orderBy)
	}
	if page := b.d.LimitOffset(b.limit, b.offset); page != "" {
		parts = append(parts, page)
	}

	return &Statement{SQL: strings.Join(parts, " "), Args: r.args, Columns: names, Empty: empty}, nil
}

// BuildCount renders SELECT count(*) over the filter and joins.
func (b *Builder) BuildCount() (*Statement, error) {
	r, err := b.newRender(1)
	if err != nil {
		return nil, err
	}
	parts := []string{"SELECT count(*) AS count", "FROM " + b.cat.FormatTable(b.d)}
	if r.qualify {
		parts = append(parts, r.plan.render(b.d))
	}
	where, empty, err := r.where()
	if err != nil {
		return nil, err
	}
	if where != "" {
		parts = append(parts, "WHERE "+where)
	}
	return &Statement{SQL: strings.Join(parts, " "), Args: r.args, Columns: []string{"count"}, Empty: empty}, nil
}

// BuildUpdate renders UPDATE with the given SET body over the filter.
// setArgs are the parameters already bound by the SET body.
func (b *Builder) BuildUpdate(set string, setArgs []any) (*Statement, error) {
	if set == "" {
		return nil, fmt.Errorf("%s: nothing to update", b.cat.Model())
	}
	r, err := b.newRender(len(setArgs) + 1)
	if err != nil {
		return nil, err
	}
	if r.qualify {
		return nil, fmt.Errorf("%s: UPDATE cannot filter through references", b.cat.Model())
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", b.cat.FormatTable(b.d), set)
	where, empty, err := r.where()
	if err != nil {
		return nil, err
	}
	if where != "" {
		sql += " WHERE " + where
	}
	return &Statement{SQL: sql, Args: append(append([]any(nil), setArgs...), r.args...), Empty: empty}, nil
}

// BuildDelete renders DELETE over the filter.
func (b *Builder) BuildDelete() (*Statement, error) {
	r, err := b.newRender(1)
	if err != nil {
		return nil, err
	}
	if r.qualify {
		return nil, fmt.Errorf("%s: DELETE cannot filter through references", b.cat.Model())
	}
	sql := "DELETE FROM " + b.cat.FormatTable(b.d)
	where, empty, err := r.where()
	if err != nil {
		return nil, err
	}
	if where != "" {
		sql += " WHERE " + where
	}
	return &Statement{SQL: sql, Args: r.args, Empty: empty}, nil
}
