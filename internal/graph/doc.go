// Package graph parses graph expressions into a tree of Nodes.
//
// A graph expression names the fields of an entity plus the related entities
// to load with it, each with its own fields, filters, pagination and
// aggregates:
//
//	{id,name,children(status=1):2:10{name},products.count,orders.sum.total}
//
// Grammar:
//
//	graph      := '{' item (',' item)* '}'
//	item       := field | node | aggregate
//	field      := column-name
//	node       := title ['(' cond (',' cond)* ')'] [':' page ':' length | ':' length] graph
//	aggregate  := title '.' ('count' | 'sum' '.' field-name)
//	cond       := column-name op value
//	op         := '!=' | '=' | '>=' | '>' | '<=' | '<'
//
// The parser is recursive descent over a cursor. Delimiter nesting is
// checked once up front, so an unbalanced or crossed expression fails with
// MALFORMED_EXPRESSION before any node is built. Nodes are immutable once
// Parse returns and may be shared between goroutines.
package graph
