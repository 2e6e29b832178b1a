// Package plan compiles parsed graph expressions into query plans.
//
// A Plan is pure data: the select list for one table, the filters and
// window that scope it, and the eager loads, counts and sums hanging off
// it. Plans are built per request and hold no connections; the querysql
// package renders them as SQL.
package plan

import (
	"sort"

	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// Plan is the compiled form of one field group.
type Plan struct {
	Entity string `json:"entity"`
	Table  string `json:"table"`

	// Relation is how this plan hangs off its parent. Nil at the root.
	Relation *entity.Relation `json:"relation,omitempty"`

	// Select starts with the primary key, follows the entity's canonical
	// column order, then timestamps, then injected keys.
	Select []string `json:"select"`

	// Injected lists the foreign keys added to Select so eager loads can
	// be stitched together.
	Injected []string `json:"injected,omitempty"`

	Filters []queryir.Compare `json:"filters,omitempty"`

	// Paginable is set for one-to-many loads; only those carry a Window.
	Paginable bool            `json:"paginable,omitempty"`
	Window    *queryir.Window `json:"window,omitempty"`

	Loads  map[string]*Plan     `json:"loads,omitempty"`
	Counts map[string]CountSpec `json:"counts,omitempty"`
	Sums   map[string]SumSpec   `json:"sums,omitempty"`
}

// CountSpec asks for the number of related rows matching Filters.
type CountSpec struct {
	Relation entity.Relation   `json:"relation"`
	Table    string            `json:"table"`
	Filters  []queryir.Compare `json:"filters,omitempty"`
}

// SumSpec asks for the sum of Field over related rows matching Filters.
type SumSpec struct {
	Relation entity.Relation   `json:"relation"`
	Table    string            `json:"table"`
	Field    string            `json:"field"`
	Filters  []queryir.Compare `json:"filters,omitempty"`
}

// Where returns the plan's filters as a single predicate, or nil.
func (p *Plan) Where() queryir.Predicate {
	return conjunction(p.Filters)
}

// Where returns the count's filters as a single predicate, or nil.
func (c CountSpec) Where() queryir.Predicate {
	return conjunction(c.Filters)
}

// Where returns the sum's filters as a single predicate, or nil.
func (s SumSpec) Where() queryir.Predicate {
	return conjunction(s.Filters)
}

func conjunction(filters []queryir.Compare) queryir.Predicate {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	}
	preds := make([]queryir.Predicate, len(filters))
	for i, f := range filters {
		preds[i] = f
	}
	return queryir.And{Predicates: preds}
}

// LoadNames returns the eager-load titles in sorted order.
func (p *Plan) LoadNames() []string { return sortedKeys(p.Loads) }

// CountNames returns the count titles in sorted order.
func (p *Plan) CountNames() []string { return sortedKeys(p.Counts) }

// SumNames returns the sum titles in sorted order.
func (p *Plan) SumNames() []string { return sortedKeys(p.Sums) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Depth returns the number of plan levels, counting the root as one.
func (p *Plan) Depth() int {
	deepest := 0
	for _, load := range p.Loads {
		if d := load.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Fingerprint returns a content hash of the plan. Compiling the same
// expression against the same metadata always yields the same fingerprint.
func (p *Plan) Fingerprint() (string, error) {
	return ir.Hash(ir.DomainPlan, p.canonical())
}

func (p *Plan) canonical() map[string]any {
	m := map[string]any{
		"entity": p.Entity,
		"table":  p.Table,
		"select": p.Select,
	}
	if p.Relation != nil {
		m["relation"] = relationCanonical(*p.Relation)
	}
	if len(p.Injected) > 0 {
		m["injected"] = p.Injected
	}
	if len(p.Filters) > 0 {
		m["filters"] = filtersCanonical(p.Filters)
	}
	if p.Paginable {
		m["paginable"] = true
	}
	if p.Window != nil {
		m["window"] = map[string]any{"offset": p.Window.Offset, "limit": p.Window.Limit}
	}
	if len(p.Loads) > 0 {
		loads := make(map[string]any, len(p.Loads))
		for name, load := range p.Loads {
			loads[name] = load.canonical()
		}
		m["loads"] = loads
	}
	if len(p.Counts) > 0 {
		counts := make(map[string]any, len(p.Counts))
		for name, c := range p.Counts {
			counts[name] = map[string]any{
				"relation": relationCanonical(c.Relation),
				"table":    c.Table,
				"filters":  filtersCanonical(c.Filters),
			}
		}
		m["counts"] = counts
	}
	if len(p.Sums) > 0 {
		sums := make(map[string]any, len(p.Sums))
		for name, s := range p.Sums {
			sums[name] = map[string]any{
				"relation": relationCanonical(s.Relation),
				"table":    s.Table,
				"field":    s.Field,
				"filters":  filtersCanonical(s.Filters),
			}
		}
		m["sums"] = sums
	}
	return m
}

func relationCanonical(r entity.Relation) map[string]any {
	return map[string]any{
		"name":        r.Name,
		"target":      r.Target,
		"cardinality": string(r.Cardinality),
		"foreign_key": r.ForeignKey,
		"pivot":       r.Pivot,
	}
}

func filtersCanonical(filters []queryir.Compare) []any {
	out := make([]any, len(filters))
	for i, f := range filters {
		out[i] = map[string]any{
			"field": f.Field,
			"op":    string(f.Op),
			"value": f.Value,
		}
	}
	return out
}
