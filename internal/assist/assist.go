// Package assist adapts flat request fields into query scopes that sit
// alongside a compiled plan: pagination, ordering, relation existence and
// column filters.
//
// Every helper reads a map[string]string and only acts on fields it is told
// about. Column and relation names always come from caller-supplied
// allow-lists, never from the request alone.
package assist

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// Request field names.
const (
	FieldPage    = "page"
	FieldLength  = "length"
	FieldOrderBy = "order_by"
	FieldHas     = "has"
)

// Defaults applied when the request omits a field.
const (
	DefaultPage        = 1
	DefaultLength      = 100
	DefaultOrderColumn = "id"
)

// DefaultOrderDirection is the sort direction used without order_by.
const DefaultOrderDirection = queryir.Desc

// FieldError reports an unusable request field.
type FieldError struct {
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// Paginate reads page and length. Missing fields take the defaults; a
// page below 1 is page 1.
func Paginate(req map[string]string, defaultPage, defaultLength int) (queryir.Window, error) {
	page, err := intField(req, FieldPage, defaultPage)
	if err != nil {
		return queryir.Window{}, err
	}
	length, err := intField(req, FieldLength, defaultLength)
	if err != nil {
		return queryir.Window{}, err
	}
	if length < 1 {
		return queryir.Window{}, &FieldError{Field: FieldLength, Value: req[FieldLength], Message: "must be at least 1"}
	}
	return queryir.Page(page, length), nil
}

func intField(req map[string]string, name string, def int) (int, error) {
	raw, ok := req[name]
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &FieldError{Field: name, Value: raw, Message: "not an integer"}
	}
	return n, nil
}

// OrderBy reads order_by=column,direction. The column must be in allowed;
// a nil allowed list accepts any identifier. A missing direction sorts
// ascending.
func OrderBy(req map[string]string, allowed []string, defaultColumn string, defaultDir queryir.Direction) (queryir.Order, error) {
	raw, ok := req[FieldOrderBy]
	if !ok || strings.TrimSpace(raw) == "" {
		return queryir.Order{Column: defaultColumn, Direction: defaultDir}, nil
	}

	column, dirRaw, _ := strings.Cut(raw, ",")
	column = strings.TrimSpace(column)
	if !isIdentifier(column) {
		return queryir.Order{}, &FieldError{Field: FieldOrderBy, Value: raw, Message: "column must be an identifier"}
	}
	if allowed != nil && !slices.Contains(allowed, column) {
		return queryir.Order{}, &FieldError{Field: FieldOrderBy, Value: raw, Message: fmt.Sprintf("column %q is not sortable", column)}
	}

	dir := queryir.Asc
	if strings.TrimSpace(dirRaw) != "" {
		var err error
		if dir, err = queryir.ParseDirection(dirRaw); err != nil {
			return queryir.Order{}, &FieldError{Field: FieldOrderBy, Value: raw, Message: err.Error()}
		}
	}
	return queryir.Order{Column: column, Direction: dir}, nil
}

// Has reads has=a,b and requires each named relation to have at least one
// row. Names outside relations are rejected.
func Has(req map[string]string, relations []string) ([]queryir.Predicate, error) {
	var preds []queryir.Predicate
	for _, name := range splitList(req[FieldHas]) {
		if !slices.Contains(relations, name) {
			return nil, &FieldError{Field: FieldHas, Value: req[FieldHas], Message: fmt.Sprintf("relation %q is not filterable", name)}
		}
		preds = append(preds, queryir.Has{Relation: name})
	}
	return preds, nil
}

// Where adds column = value for every column in columns present in req.
func Where(req map[string]string, columns []string) []queryir.Predicate {
	var preds []queryir.Predicate
	for _, col := range columns {
		if v, ok := req[col]; ok {
			preds = append(preds, queryir.Compare{Field: col, Op: queryir.OpEq, Value: ir.ParseLiteral(strings.TrimSpace(v))})
		}
	}
	return preds
}

// WhereIn adds column IN (a, b) for every column in columns present in req
// as a comma-separated list.
func WhereIn(req map[string]string, columns []string) []queryir.Predicate {
	return whereIn(req, columns, false)
}

// WhereNotIn is WhereIn with exclusion.
func WhereNotIn(req map[string]string, columns []string) []queryir.Predicate {
	return whereIn(req, columns, true)
}

func whereIn(req map[string]string, columns []string, negate bool) []queryir.Predicate {
	var preds []queryir.Predicate
	for _, col := range columns {
		if v, ok := req[col]; ok {
			preds = append(preds, queryir.In{Field: col, Values: ir.Strings(splitList(v)), Negate: negate})
		}
	}
	return preds
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
