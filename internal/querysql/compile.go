package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/plan"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// ErrNoParentKeys is returned by CompileLoad when there is nothing to load
// for. Callers skip the statement.
var ErrNoParentKeys = errors.New("eager load needs at least one parent key")

// SQLCompiler renders plans as parameterized SQL for SQLite.
//
// CRITICAL: Every statement includes ORDER BY ending on the primary key so
// row order is deterministic.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	entities entity.Provider
}

// NewSQLCompiler creates a compiler that reads primary keys and relations
// from entities.
func NewSQLCompiler(entities entity.Provider) *SQLCompiler {
	return &SQLCompiler{entities: entities}
}

// CompileRoot renders the root statement of p, narrowed by scope.
// Counts and sums become correlated subqueries in the select list.
func (c *SQLCompiler) CompileRoot(p *plan.Plan, scope queryir.Scope) (string, []any, error) {
	if p == nil {
		return "", nil, fmt.Errorf("cannot compile nil plan")
	}
	ent, err := c.entity(p.Entity)
	if err != nil {
		return "", nil, err
	}

	var where clause
	if err := c.addPredicate(&where, p.Where(), p.Table, ent); err != nil {
		return "", nil, fmt.Errorf("compile plan filters: %w", err)
	}
	if err := c.addPredicate(&where, scope.Filter, p.Table, ent); err != nil {
		return "", nil, fmt.Errorf("compile scope filter: %w", err)
	}

	// MANDATORY: Always order, with the primary key as tiebreaker
	var order []string
	if scope.Order != nil {
		order = append(order, orderTerm(p.Table, scope.Order.Column, scope.Order.Direction))
	}
	if scope.Order == nil || scope.Order.Column != ent.PrimaryKey {
		order = append(order, orderTerm(p.Table, ent.PrimaryKey, queryir.Asc))
	}

	return c.compileSelect(p, ent, where, order, scope.Window)
}

// CompileLoad renders the eager-load statement for load, restricted to the
// rows belonging to parentKeys.
//
// For one-to-many loads parentKeys are the parents' primary keys, matched
// against the child's foreign key. For many-to-one loads they are the
// foreign key values read from the parents, matched against the target's
// primary key. The load's window applies to the statement as a whole.
func (c *SQLCompiler) CompileLoad(load *plan.Plan, parentKeys []any) (string, []any, error) {
	if load == nil || load.Relation == nil {
		return "", nil, fmt.Errorf("plan is not an eager load")
	}
	if len(parentKeys) == 0 {
		return "", nil, ErrNoParentKeys
	}
	ent, err := c.entity(load.Entity)
	if err != nil {
		return "", nil, err
	}

	var keyColumn string
	switch load.Relation.Cardinality {
	case entity.OneToMany:
		keyColumn = load.Relation.ForeignKey
	case entity.ManyToOne:
		keyColumn = ent.PrimaryKey
	default:
		return "", nil, fmt.Errorf("relation %q: cannot load %s relation", load.Relation.Name, load.Relation.Cardinality)
	}

	var where clause
	where.add(fmt.Sprintf("%s IN (%s)", qualify(load.Table, keyColumn), placeholders(len(parentKeys))), parentKeys...)
	if err := c.addPredicate(&where, load.Where(), load.Table, ent); err != nil {
		return "", nil, fmt.Errorf("compile load filters: %w", err)
	}

	order := []string{orderTerm(load.Table, keyColumn, queryir.Asc)}
	if keyColumn != ent.PrimaryKey {
		order = append(order, orderTerm(load.Table, ent.PrimaryKey, queryir.Asc))
	}

	return c.compileSelect(load, ent, where, order, load.Window)
}

// compileSelect assembles SELECT ... FROM ... WHERE ... ORDER BY ... LIMIT.
// Arguments follow the placeholders in textual order.
func (c *SQLCompiler) compileSelect(p *plan.Plan, ent *entity.Entity, where clause, order []string, window *queryir.Window) (string, []any, error) {
	var args []any

	columns := make([]string, 0, len(p.Select)+len(p.Counts)+len(p.Sums))
	for _, col := range p.Select {
		columns = append(columns, qualify(p.Table, col))
	}
	for _, name := range p.CountNames() {
		spec := p.Counts[name]
		sql, subArgs, err := c.compileAggregate("COUNT(*)", spec.Relation, spec.Table, spec.Filters, p.Table, ent)
		if err != nil {
			return "", nil, fmt.Errorf("count %q: %w", name, err)
		}
		columns = append(columns, fmt.Sprintf("%s AS %s_count", sql, name))
		args = append(args, subArgs...)
	}
	for _, name := range p.SumNames() {
		spec := p.Sums[name]
		agg := fmt.Sprintf("COALESCE(SUM(%s), 0)", qualify(aggAlias(spec.Relation.Name), spec.Field))
		sql, subArgs, err := c.compileAggregate(agg, spec.Relation, spec.Table, spec.Filters, p.Table, ent)
		if err != nil {
			return "", nil, fmt.Errorf("sum %q: %w", name, err)
		}
		columns = append(columns, fmt.Sprintf("%s AS %s_sum_%s", sql, name, spec.Field))
		args = append(args, subArgs...)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(p.Table)
	if len(where.parts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where.parts, " AND "))
		args = append(args, where.args...)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))
	if window != nil && !window.IsZero() {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, window.Limit, window.Offset)
	}
	return b.String(), args, nil
}

// compileAggregate renders "(SELECT <agg> FROM <table> AS <rel>_agg WHERE
// <join> AND <filters>)" correlated with the outer alias.
func (c *SQLCompiler) compileAggregate(agg string, rel entity.Relation, table string, filters []queryir.Compare, outer string, owner *entity.Entity) (string, []any, error) {
	target, err := c.entity(rel.Target)
	if err != nil {
		return "", nil, err
	}
	inner := aggAlias(rel.Name)
	join, err := relationJoin(rel, inner, outer, owner, target)
	if err != nil {
		return "", nil, err
	}

	var where clause
	where.add(join)
	for _, f := range filters {
		if err := c.addPredicate(&where, f, inner, target); err != nil {
			return "", nil, err
		}
	}
	sql := fmt.Sprintf("(SELECT %s FROM %s AS %s WHERE %s)", agg, table, inner, strings.Join(where.parts, " AND "))
	return sql, where.args, nil
}

// relationJoin correlates the inner alias (rows of the relation's target)
// with the outer alias (rows of the owner).
func relationJoin(rel entity.Relation, inner, outer string, owner, target *entity.Entity) (string, error) {
	switch rel.Cardinality {
	case entity.OneToMany:
		return fmt.Sprintf("%s = %s", qualify(inner, rel.ForeignKey), qualify(outer, owner.PrimaryKey)), nil
	case entity.ManyToOne:
		return fmt.Sprintf("%s = %s", qualify(inner, target.PrimaryKey), qualify(outer, rel.ForeignKey)), nil
	default:
		return "", fmt.Errorf("relation %q: %s relations are not supported", rel.Name, rel.Cardinality)
	}
}

// clause collects AND-ed fragments and their arguments.
type clause struct {
	parts []string
	args  []any
}

func (w *clause) add(sql string, args ...any) {
	w.parts = append(w.parts, sql)
	w.args = append(w.args, args...)
}

func (c *SQLCompiler) addPredicate(w *clause, p queryir.Predicate, alias string, ent *entity.Entity) error {
	if p == nil {
		return nil
	}
	sql, args, err := c.compilePredicate(p, alias, ent)
	if err != nil {
		return err
	}
	w.add(sql, args...)
	return nil
}

// compilePredicate compiles a queryir.Predicate to a WHERE fragment with
// columns qualified by alias.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, alias string, ent *entity.Entity) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return compileCompare(pred, alias)
	case *queryir.Compare:
		return compileCompare(*pred, alias)
	case queryir.In:
		return compileIn(pred, alias)
	case *queryir.In:
		return compileIn(*pred, alias)
	case queryir.Has:
		return c.compileHas(pred, alias, ent)
	case *queryir.Has:
		return c.compileHas(*pred, alias, ent)
	case queryir.And:
		return c.compileAnd(pred, alias, ent)
	case *queryir.And:
		return c.compileAnd(*pred, alias, ent)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileCompare(cmp queryir.Compare, alias string) (string, []any, error) {
	if !cmp.Op.Valid() {
		return "", nil, fmt.Errorf("unknown operator %q", cmp.Op)
	}
	param, err := ir.Native(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s %s ?", qualify(alias, cmp.Field), cmp.Op), []any{param}, nil
}

func compileIn(in queryir.In, alias string) (string, []any, error) {
	if len(in.Values) == 0 {
		// Nothing is in the empty set, everything is outside it.
		if in.Negate {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		param, err := ir.Native(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		params[i] = param
	}
	op := "IN"
	if in.Negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", qualify(alias, in.Field), op, placeholders(len(params))), params, nil
}

func (c *SQLCompiler) compileHas(has queryir.Has, alias string, ent *entity.Entity) (string, []any, error) {
	rel, ok := ent.Relation(has.Relation)
	if !ok {
		return "", nil, fmt.Errorf("entity %q has no relation %q", ent.Name, has.Relation)
	}
	target, err := c.entity(rel.Target)
	if err != nil {
		return "", nil, err
	}
	inner := has.Relation + "_has"
	join, err := relationJoin(rel, inner, alias, ent, target)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s)", target.Table, inner, join), nil, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And, alias string, ent *entity.Entity) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}
	var w clause
	for _, pred := range and.Predicates {
		if err := c.addPredicate(&w, pred, alias, ent); err != nil {
			return "", nil, err
		}
	}
	return strings.Join(w.parts, " AND "), w.args, nil
}

func (c *SQLCompiler) entity(name string) (*entity.Entity, error) {
	ent, err := c.entities.Entity(name)
	if err != nil {
		return nil, fmt.Errorf("load entity %q: %w", name, err)
	}
	return ent, nil
}

// orderTerm renders one ORDER BY term. COLLATE BINARY keeps text ordering
// identical across SQLite builds.
func orderTerm(alias, column string, dir queryir.Direction) string {
	return fmt.Sprintf("%s COLLATE BINARY %s", qualify(alias, column), strings.ToUpper(string(dir)))
}

func qualify(alias, column string) string {
	return alias + "." + column
}

func aggAlias(relation string) string {
	return relation + "_agg"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
