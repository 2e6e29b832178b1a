package plan

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/graph"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// SelectFilter post-processes the root select list. It runs after foreign
// key injection, so it sees every column the plan will read.
type SelectFilter func(columns []string) []string

// Option configures a single compilation.
type Option func(*options)

type options struct {
	selectFilter SelectFilter
}

// WithSelectFilter installs fn as the root select-list filter.
func WithSelectFilter(fn SelectFilter) Option {
	return func(o *options) { o.selectFilter = fn }
}

// Compiler turns graph expressions into plans for one entity provider.
//
// Compiler holds no mutable state and is safe for concurrent use.
type Compiler struct {
	entities entity.Provider
}

// NewCompiler returns a compiler that reads metadata from entities.
func NewCompiler(entities entity.Provider) *Compiler {
	return &Compiler{entities: entities}
}

// Compile parses expr and compiles it against entityName.
//
// Syntax errors are returned wrapped; graph.IsCode still matches them.
// Compilation is atomic: on error no plan is returned.
func (c *Compiler) Compile(expr, entityName string, opts ...Option) (*Plan, error) {
	root, err := graph.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	return c.CompileNode(root, entityName, opts...)
}

// CompileNode compiles an already-parsed graph against entityName.
func (c *Compiler) CompileNode(root *graph.Node, entityName string, opts ...Option) (*Plan, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ent, err := c.lookup(entityName, "")
	if err != nil {
		return nil, err
	}
	p, err := c.compileGroup(root, ent, nil, "")
	if err != nil {
		return nil, err
	}
	if o.selectFilter != nil {
		p.Select = o.selectFilter(slices.Clone(p.Select))
	}
	return p, nil
}

// compileGroup builds the plan for one field group. rel is the relation
// the group was reached through, nil at the root.
func (c *Compiler) compileGroup(n *graph.Node, ent *entity.Entity, rel *entity.Relation, path string) (*Plan, error) {
	p := &Plan{
		Entity:   ent.Name,
		Table:    ent.Table,
		Relation: rel,
		Select:   selectList(n, ent),
	}

	filters, err := validateFilters(n.Filters, ent, path)
	if err != nil {
		return nil, err
	}
	p.Filters = filters

	if rel != nil && rel.Cardinality == entity.OneToMany {
		// The child holds the key pointing back at the parent.
		p.inject(rel.ForeignKey)
		p.Paginable = true
		if n.Page > 0 && n.Length > 0 {
			w := queryir.Page(n.Page, n.Length)
			p.Window = &w
		}
	}

	for _, child := range n.Children {
		childPath := joinPath(path, child.Title)

		relation, ok := ent.Relation(child.Title)
		if !ok {
			return nil, &CompileError{
				Code:    ErrCodeUnknownRelation,
				Path:    childPath,
				Message: fmt.Sprintf("entity %q has no relation %q", ent.Name, child.Title),
			}
		}
		if relation.Cardinality == entity.ManyToMany {
			return nil, &CompileError{
				Code:    ErrCodeUnsupportedCardinality,
				Path:    childPath,
				Message: fmt.Sprintf("relation %q is many_to_many", child.Title),
			}
		}
		target, err := c.lookup(relation.Target, childPath)
		if err != nil {
			return nil, err
		}

		switch child.Kind {
		case graph.KindFieldGroup:
			if _, dup := p.Loads[child.Title]; dup {
				return nil, duplicate(childPath, child.Title, "loaded")
			}
			if relation.Cardinality == entity.ManyToOne {
				// The parent holds the key pointing at the related row.
				p.inject(relation.ForeignKey)
			}
			load, err := c.compileGroup(child, target, &relation, childPath)
			if err != nil {
				return nil, err
			}
			if p.Loads == nil {
				p.Loads = make(map[string]*Plan)
			}
			p.Loads[child.Title] = load

		case graph.KindCount:
			if _, dup := p.Counts[child.Title]; dup {
				return nil, duplicate(childPath, child.Title, "counted")
			}
			filters, err := validateFilters(child.Filters, target, childPath)
			if err != nil {
				return nil, err
			}
			if p.Counts == nil {
				p.Counts = make(map[string]CountSpec)
			}
			p.Counts[child.Title] = CountSpec{Relation: relation, Table: target.Table, Filters: filters}

		case graph.KindSum:
			if _, dup := p.Sums[child.Title]; dup {
				return nil, duplicate(childPath, child.Title, "summed")
			}
			if len(child.Fields) == 0 {
				return nil, &CompileError{
					Code:    ErrCodeMissingSumField,
					Path:    childPath,
					Message: fmt.Sprintf("sum over %q names no field", child.Title),
				}
			}
			field := child.Fields[0]
			if !slices.Contains(summable(target), field) {
				return nil, &CompileError{
					Code:    ErrCodeUnqueryableColumn,
					Path:    childPath,
					Column:  field,
					Message: fmt.Sprintf("column %q of %q cannot be summed", field, target.Name),
				}
			}
			filters, err := validateFilters(child.Filters, target, childPath)
			if err != nil {
				return nil, err
			}
			if p.Sums == nil {
				p.Sums = make(map[string]SumSpec)
			}
			p.Sums[child.Title] = SumSpec{Relation: relation, Table: target.Table, Field: field, Filters: filters}
		}
	}
	return p, nil
}

// selectList resolves requested fields against the entity's allow-list.
// The result follows the entity's column order, never the request's.
func selectList(n *graph.Node, ent *entity.Entity) []string {
	sel := []string{ent.PrimaryKey}
	all := n.WantsAll()
	for _, col := range ent.Readable() {
		if all || n.Wants(col) {
			sel = append(sel, col)
		}
	}
	if n.WantsTimestamps() {
		for _, ts := range ent.Timestamps {
			if !slices.Contains(sel, ts) {
				sel = append(sel, ts)
			}
		}
	}
	return sel
}

func (p *Plan) inject(column string) {
	if slices.Contains(p.Select, column) {
		return
	}
	p.Select = append(p.Select, column)
	p.Injected = append(p.Injected, column)
}

func validateFilters(conds []graph.Condition, ent *entity.Entity, path string) ([]queryir.Compare, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	filters := make([]queryir.Compare, len(conds))
	preds := make([]queryir.Predicate, len(conds))
	for i, cond := range conds {
		filters[i] = cond.Predicate()
		preds[i] = filters[i]
	}

	result := queryir.Validate(queryir.And{Predicates: preds}, ent.QueryableColumns())
	if !result.Valid {
		v := result.Violations[0]
		return nil, &CompileError{
			Code:    ErrCodeUnqueryableColumn,
			Path:    path,
			Column:  v.Column,
			Message: fmt.Sprintf("%s on %q", v.Message, ent.Name),
		}
	}
	return filters, nil
}

// summable lists the columns a sum may read: the queryable columns plus
// anything readable.
func summable(ent *entity.Entity) []string {
	cols := slices.Clone(ent.QueryableColumns())
	for _, col := range ent.Readable() {
		if !slices.Contains(cols, col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func (c *Compiler) lookup(name, path string) (*entity.Entity, error) {
	ent, err := c.entities.Entity(name)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &CompileError{
				Code:    ErrCodeUnknownEntity,
				Path:    path,
				Message: fmt.Sprintf("unknown entity %q", name),
			}
		}
		return nil, fmt.Errorf("load entity %q: %w", name, err)
	}
	return ent, nil
}

func duplicate(path, title, verb string) *CompileError {
	return &CompileError{
		Code:    ErrCodeDuplicateRelation,
		Path:    path,
		Message: fmt.Sprintf("relation %q is %s twice", title, verb),
	}
}

func joinPath(path, title string) string {
	if path == "" {
		return title
	}
	return path + "." + title
}
