package queryir

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bitsmind/graphsql/internal/ir"
)

// Op is a comparison operator accepted in a graph filter.
type Op string

// Operators in the order the graph grammar lists them.
const (
	OpNe Op = "!="
	OpEq Op = "="
	OpGe Op = ">="
	OpGt Op = ">"
	OpLe Op = "<="
	OpLt Op = "<"
)

// Ops lists every operator. Two-character operators precede the
// one-character operators they contain.
var Ops = []Op{OpNe, OpGe, OpLe, OpEq, OpGt, OpLt}

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	for _, known := range Ops {
		if o == known {
			return true
		}
	}
	return false
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Compare is a single column comparison:
//
//	<field> <op> <value>
//
// Value is bound as a parameter, never interpolated.
type Compare struct {
	Field string     `json:"field"`
	Op    Op         `json:"op"`
	Value ir.IRValue `json:"value"`
}

func (Compare) predicateNode() {}

// MarshalJSON tags the predicate with its kind.
func (c Compare) MarshalJSON() ([]byte, error) {
	type alias Compare
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{"compare", alias(c)})
}

// In is set membership, or set exclusion when Negate is true:
//
//	<field> IN (<values>)
//	<field> NOT IN (<values>)
type In struct {
	Field  string     `json:"field"`
	Values ir.IRArray `json:"values"`
	Negate bool       `json:"negate,omitempty"`
}

func (In) predicateNode() {}

// MarshalJSON tags the predicate with its kind.
func (p In) MarshalJSON() ([]byte, error) {
	type alias In
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{"in", alias(p)})
}

// Has requires at least one related row to exist through Relation.
type Has struct {
	Relation string `json:"relation"`
}

func (Has) predicateNode() {}

// MarshalJSON tags the predicate with its kind.
func (h Has) MarshalJSON() ([]byte, error) {
	type alias Has
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{"has", alias(h)})
}

// And is a conjunction. An empty And is vacuously true.
type And struct {
	Predicates []Predicate `json:"predicates"`
}

func (And) predicateNode() {}

// MarshalJSON tags the predicate with its kind.
func (a And) MarshalJSON() ([]byte, error) {
	type alias And
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{"and", alias(a)})
}

// Window slices a result set. A zero Limit means "no window".
type Window struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Page builds the window for a 1-based page of length rows.
// Pages below 1 are treated as page 1.
func Page(page, length int) Window {
	if page < 1 {
		page = 1
	}
	return Window{Offset: (page - 1) * length, Limit: length}
}

// IsZero reports whether the window imposes no limit.
func (w Window) IsZero() bool {
	return w.Limit <= 0
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts asc/desc in any letter case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q: must be asc or desc", s)
	}
}

// Order sorts by a single column.
type Order struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// Scope narrows the root query of a plan: extra filters, a sort order and
// a page window. The zero Scope applies none of them.
type Scope struct {
	Filter Predicate
	Order  *Order
	Window *Window
}
