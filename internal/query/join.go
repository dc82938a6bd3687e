package query

import (
	"fmt"
	"strings"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/schema"
)

// joinNode is one LEFT JOIN, aliased by its reference path from the root (a__b__c).
type joinNode struct {
	alias  string
	depth  int
	parent *joinNode
	ref    *schema.Column
	target *schema.Catalog
	field  *schema.Column
}

// joinPlan collects the joins reachable from the root catalog. Nodes are kept in
// insertion order, and a node is always inserted after its parent.
type joinPlan struct {
	root    *schema.Catalog
	nodes   []*joinNode
	byAlias map[string]*joinNode
}

func newJoinPlan(root *schema.Catalog) *joinPlan {
	return &joinPlan{root: root, byAlias: make(map[string]*joinNode)}
}

func (p *joinPlan) catalog(n *joinNode) *schema.Catalog {
	if n == nil {
		return p.root
	}
	return n.target
}

// child returns the join following reference column seg from parent, adding it if needed.
func (p *joinPlan) child(parent *joinNode, seg string) (*joinNode, error) {
	alias := seg
	depth := 1
	if parent != nil {
		alias = parent.alias + "__" + seg
		depth = parent.depth + 1
	}
	if n, ok := p.byAlias[alias]; ok {
		return n, nil
	}

	cat := p.catalog(parent)
	col, err := cat.MustColumn(seg)
	if err != nil {
		return nil, err
	}
	if col.Reference == "" || col.CorrelatesWith != "" {
		return nil, fmt.Errorf("%s.%s is not a reference", cat.Model(), seg)
	}
	target, ok := schema.Lookup(col.Reference)
	if !ok {
		return nil, fmt.Errorf("%s.%s references unknown model %s", cat.Model(), seg, col.Reference)
	}
	field := target.PrimaryKey()
	if col.ReferencedField != "" {
		if field, err = target.MustColumn(col.ReferencedField); err != nil {
			return nil, err
		}
	}

	n := &joinNode{alias: alias, depth: depth, parent: parent, ref: col, target: target, field: field}
	p.nodes = append(p.nodes, n)
	p.byAlias[alias] = n
	return n, nil
}

// closure joins the root reference seg and everything transitively reachable from it.
// Traversal stops at a model already visited along the current path.
func (p *joinPlan) closure(seg string) error {
	n, err := p.child(nil, seg)
	if err != nil {
		return err
	}
	visited := map[string]bool{p.root.Model(): true, n.target.Model(): true}
	return p.walk(n, visited)
}

func (p *joinPlan) walk(n *joinNode, visited map[string]bool) error {
	for _, edge := range n.target.ReferenceEdges() {
		if edge.Column.CorrelatesWith != "" {
			continue
		}
		target, ok := schema.Lookup(edge.Target)
		if !ok || visited[target.Model()] {
			continue
		}
		c, err := p.child(n, edge.Column.Name)
		if err != nil {
			return err
		}
		visited[target.Model()] = true
		err = p.walk(c, visited)
		delete(visited, target.Model())
		if err != nil {
			return err
		}
	}
	return nil
}

// resolve maps a dotted path to the join holding its column. A nil node is the root.
func (p *joinPlan) resolve(path string) (*joinNode, *schema.Column, error) {
	segs := strings.Split(path, ".")
	var n *joinNode
	for _, seg := range segs[:len(segs)-1] {
		var err error
		if n, err = p.child(n, seg); err != nil {
			return nil, nil, err
		}
	}
	col, err := p.catalog(n).MustColumn(segs[len(segs)-1])
	if err != nil {
		return nil, nil, err
	}
	return n, col, nil
}

func (p *joinPlan) alias(n *joinNode, d *dialect.Dialect) string {
	if n == nil {
		return p.root.FormatTable(d)
	}
	return d.FormatIdentifier(n.alias)
}

// render writes the LEFT JOIN clauses in insertion order.
func (p *joinPlan) render(d *dialect.Dialect) string {
	parts := make([]string, 0, len(p.nodes))
	for _, n := range p.nodes {
		parts = append(parts, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			n.target.FormatTable(d), p.alias(n, d),
			p.alias(n.parent, d), d.FormatIdentifier(n.ref.ColumnName),
			p.alias(n, d), d.FormatIdentifier(n.field.ColumnName)))
	}
	return strings.Join(parts, " ")
}
