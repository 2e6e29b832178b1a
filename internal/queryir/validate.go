package queryir

import (
	"fmt"
)

// ValidationResult lists the columns a predicate references outside the
// allow-list it was checked against.
type ValidationResult struct {
	// Valid is true when every referenced column is allowed.
	Valid bool

	// Violations names each rejected column, in predicate order.
	Violations []Violation
}

// Violation is one rejected column reference.
type Violation struct {
	Column  string
	Message string
}

// Validate checks every column referenced by p against allowed.
// Has predicates reference relations, not columns; see Relations.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate, allowed []string) ValidationResult {
	v := &validator{allowed: toSet(allowed)}
	v.validatePredicate(p)

	return ValidationResult{
		Valid:      len(v.violations) == 0,
		Violations: v.violations,
	}
}

// Columns returns the distinct column names p references, in first-seen order.
func Columns(p Predicate) []string {
	var cols []string
	seen := map[string]bool{}
	walk(p, func(q Predicate) {
		var field string
		switch pred := q.(type) {
		case Compare:
			field = pred.Field
		case *Compare:
			field = pred.Field
		case In:
			field = pred.Field
		case *In:
			field = pred.Field
		default:
			return
		}
		if !seen[field] {
			seen[field] = true
			cols = append(cols, field)
		}
	})
	return cols
}

// Relations returns the relation names referenced by Has predicates in p.
func Relations(p Predicate) []string {
	var rels []string
	walk(p, func(q Predicate) {
		switch pred := q.(type) {
		case Has:
			rels = append(rels, pred.Relation)
		case *Has:
			rels = append(rels, pred.Relation)
		}
	})
	return rels
}

func walk(p Predicate, fn func(Predicate)) {
	switch pred := p.(type) {
	case nil:
		return
	case And:
		for _, sub := range pred.Predicates {
			walk(sub, fn)
		}
	case *And:
		for _, sub := range pred.Predicates {
			walk(sub, fn)
		}
	default:
		fn(p)
	}
}

// validator accumulates violations during traversal.
type validator struct {
	allowed    map[string]bool
	violations []Violation
}

func (v *validator) reject(column, format string, args ...any) {
	v.violations = append(v.violations, Violation{
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	})
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case In:
		v.validateColumn(pred.Field)
	case *In:
		v.validateColumn(pred.Field)
	case Has, *Has:
		// relation names are not columns
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.reject("", "unknown predicate type: %T", p)
	}
}

func (v *validator) validateCompare(c Compare) {
	if !c.Op.Valid() {
		v.reject(c.Field, "unknown operator %q on column %q", c.Op, c.Field)
	}
	v.validateColumn(c.Field)
}

func (v *validator) validateColumn(column string) {
	if !v.allowed[column] {
		v.reject(column, "column %q is not queryable", column)
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
