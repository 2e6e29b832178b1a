package graph

import (
	"strconv"
	"strings"

	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// Special field names recognised inside a field group.
const (
	// Wildcard requests every readable column plus timestamps.
	Wildcard = "*"

	// TimestampsField requests the timestamp columns.
	TimestampsField = "_timestamps"
)

// Kind distinguishes field groups from aggregate leaves.
type Kind int

const (
	KindFieldGroup Kind = iota
	KindCount
	KindSum
)

// String returns the aggregate suffix for aggregate kinds and "group" for
// field groups.
func (k Kind) String() string {
	switch k {
	case KindCount:
		return "count"
	case KindSum:
		return "sum"
	default:
		return "group"
	}
}

// Condition is one filter clause from a node title.
type Condition struct {
	Column string
	Op     queryir.Op
	Value  ir.IRValue
}

// Predicate converts the condition into a queryir comparison.
func (c Condition) Predicate() queryir.Compare {
	return queryir.Compare{Field: c.Column, Op: c.Op, Value: c.Value}
}

// String renders the condition as it appears in an expression.
func (c Condition) String() string {
	return c.Column + string(c.Op) + literalText(c.Value)
}

// Node is one level of a parsed graph expression.
//
// The root node has an empty Title. Count and Sum nodes never have
// Children; a Sum node carries the summed column as its single field.
type Node struct {
	Title    string
	Kind     Kind
	Fields   []string
	Filters  []Condition
	Page     int
	Length   int
	Children []*Node
}

// Wants reports whether the node explicitly requested the given field.
func (n *Node) Wants(field string) bool {
	for _, f := range n.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// WantsAll reports whether the node requested the wildcard.
func (n *Node) WantsAll() bool {
	return n.Wants(Wildcard)
}

// WantsTimestamps reports whether timestamp columns belong in the select
// list, either through the wildcard or the _timestamps marker.
func (n *Node) WantsTimestamps() bool {
	return n.WantsAll() || n.Wants(TimestampsField)
}

// String renders the node back into expression text. Fields come before
// children; parsing the result yields an equal tree.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	b.WriteString(n.Title)
	if len(n.Filters) > 0 {
		b.WriteByte('(')
		for i, c := range n.Filters {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c.String())
		}
		b.WriteByte(')')
	}

	switch n.Kind {
	case KindCount:
		b.WriteString(".count")
		return
	case KindSum:
		b.WriteString(".sum")
		if len(n.Fields) > 0 {
			b.WriteByte('.')
			b.WriteString(n.Fields[0])
		}
		return
	}

	if n.Page > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n.Page))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n.Length))
	} else if n.Length > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n.Length))
	}

	b.WriteByte('{')
	sep := false
	for _, f := range n.Fields {
		if sep {
			b.WriteByte(',')
		}
		b.WriteString(f)
		sep = true
	}
	for _, c := range n.Children {
		if sep {
			b.WriteByte(',')
		}
		c.write(b)
		sep = true
	}
	b.WriteByte('}')
}

func literalText(v ir.IRValue) string {
	switch x := v.(type) {
	case ir.IRInt:
		return strconv.FormatInt(int64(x), 10)
	case ir.IRString:
		return string(x)
	case ir.IRBool:
		return strconv.FormatBool(bool(x))
	default:
		return ""
	}
}
