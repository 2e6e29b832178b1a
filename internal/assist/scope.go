package assist

import (
	"slices"

	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// Assist bundles the helpers for one endpoint. Each list is an allow-list
// of request fields that map to columns or relations of the root entity.
type Assist struct {
	// Sortable columns for order_by. Nil accepts any identifier.
	Sortable []string
	// Relations usable in has.
	Relations []string
	// Equality, inclusion and exclusion filter columns.
	Where      []string
	WhereIn    []string
	WhereNotIn []string

	DefaultPage   int
	DefaultLength int
	DefaultOrder  queryir.Order
	// Unpaged skips pagination entirely.
	Unpaged bool
}

// Default returns an Assist with the package defaults and no filters.
func Default() Assist {
	return Assist{
		DefaultPage:   DefaultPage,
		DefaultLength: DefaultLength,
		DefaultOrder:  queryir.Order{Column: DefaultOrderColumn, Direction: DefaultOrderDirection},
	}
}

// ForEntity derives allow-lists from ent: its primary key and queryable
// columns may be sorted and filtered on, and every one-to-many or
// many-to-one relation may appear in has. The default order is the primary
// key, descending.
func ForEntity(ent *entity.Entity) Assist {
	a := Default()
	cols := ent.QueryableColumns()
	a.Where = cols
	a.Sortable = cols
	if !slices.Contains(cols, ent.PrimaryKey) {
		a.Sortable = append([]string{ent.PrimaryKey}, cols...)
	}
	for name, rel := range ent.Relations {
		if rel.Cardinality == entity.OneToMany || rel.Cardinality == entity.ManyToOne {
			a.Relations = append(a.Relations, name)
		}
	}
	slices.Sort(a.Relations)
	a.DefaultOrder = queryir.Order{Column: ent.PrimaryKey, Direction: DefaultOrderDirection}
	return a
}

// Scope builds the root query scope for req.
func (a Assist) Scope(req map[string]string) (queryir.Scope, error) {
	var scope queryir.Scope

	order := a.DefaultOrder
	if order.Column == "" {
		order = queryir.Order{Column: DefaultOrderColumn, Direction: DefaultOrderDirection}
	}
	o, err := OrderBy(req, a.Sortable, order.Column, order.Direction)
	if err != nil {
		return queryir.Scope{}, err
	}
	scope.Order = &o

	if !a.Unpaged {
		page, length := a.DefaultPage, a.DefaultLength
		if page == 0 {
			page = DefaultPage
		}
		if length == 0 {
			length = DefaultLength
		}
		w, err := Paginate(req, page, length)
		if err != nil {
			return queryir.Scope{}, err
		}
		scope.Window = &w
	}

	has, err := Has(req, a.Relations)
	if err != nil {
		return queryir.Scope{}, err
	}

	var preds []queryir.Predicate
	preds = append(preds, has...)
	preds = append(preds, Where(req, a.Where)...)
	preds = append(preds, WhereIn(req, a.WhereIn)...)
	preds = append(preds, WhereNotIn(req, a.WhereNotIn)...)
	switch len(preds) {
	case 0:
	case 1:
		scope.Filter = preds[0]
	default:
		scope.Filter = queryir.And{Predicates: preds}
	}
	return scope, nil
}
