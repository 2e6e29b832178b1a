package graph

import (
	"strconv"
	"strings"

	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/queryir"
)

// Parse parses a graph expression and returns its root field group.
//
// Errors are *SyntaxError values carrying the offending offset.
func Parse(expr string) (*Node, error) {
	trimmed := strings.TrimSpace(expr)
	base := strings.Index(expr, trimmed)
	if trimmed == "" {
		return nil, withInput(syntaxErr(ErrCodeMalformedExpression, 0, "empty expression"), expr)
	}
	if err := checkNesting(trimmed, base); err != nil {
		return nil, withInput(err, expr)
	}

	c := &cursor{src: trimmed, base: base}
	root := &Node{Kind: KindFieldGroup}
	if err := parseGraph(c, root); err != nil {
		return nil, withInput(err, expr)
	}
	if !c.eof() {
		return nil, withInput(syntaxErr(ErrCodeMalformedExpression, c.offset(),
			"unexpected %q after closing brace", c.rest()), expr)
	}
	return root, nil
}

// cursor walks a slice of the original expression. base is the slice's
// offset within the full input so errors report absolute positions.
type cursor struct {
	src  string
	pos  int
	base int
}

func (c *cursor) eof() bool    { return c.pos >= len(c.src) }
func (c *cursor) offset() int  { return c.base + c.pos }
func (c *cursor) rest() string { return c.src[c.pos:] }
func (c *cursor) peek() byte   { return c.src[c.pos] }
func (c *cursor) advance()     { c.pos++ }

const spaces = " \t\r\n"

// item consumes one top-level item of the current group and returns its
// text and absolute offset. It stops before the ',' or '}' that ends the
// item. Nesting was verified by checkNesting, so a single depth counter
// covers both parentheses and braces.
func (c *cursor) item() (string, int) {
	start := c.pos
	depth := 0
	for ; !c.eof(); c.advance() {
		switch c.peek() {
		case '(', '{':
			depth++
		case ')':
			depth--
		case '}':
			if depth == 0 {
				return c.src[start:c.pos], c.base + start
			}
			depth--
		case ',':
			if depth == 0 {
				return c.src[start:c.pos], c.base + start
			}
		}
	}
	return c.src[start:c.pos], c.base + start
}

// parseGraph consumes a '{ ... }' group at the cursor into node.
func parseGraph(c *cursor, node *Node) error {
	if c.eof() || c.peek() != '{' {
		return syntaxErr(ErrCodeMalformedExpression, c.offset(), "expected '{'")
	}
	c.advance()
	if body := strings.TrimLeft(c.rest(), spaces); body != "" && body[0] == '}' {
		c.pos = len(c.src) - len(body) + 1
		return nil
	}

	for {
		text, off := c.item()
		if strings.TrimSpace(text) == "" {
			return syntaxErr(ErrCodeMalformedExpression, off, "empty item")
		}
		if err := parseItem(text, off, node); err != nil {
			return err
		}
		if c.eof() {
			return syntaxErr(ErrCodeMalformedExpression, c.offset(), "missing '}'")
		}
		sep := c.peek()
		c.advance()
		if sep == '}' {
			return nil
		}
	}
}

// parseItem classifies one item as a nested node, an aggregate or a field
// and appends it to parent.
func parseItem(text string, off int, parent *Node) error {
	lead := len(text) - len(strings.TrimLeft(text, spaces))
	text = strings.TrimSpace(text)
	off += lead

	if i := indexOutsideParens(text, '{'); i >= 0 {
		child := &Node{Kind: KindFieldGroup}
		if err := parseTitle(text[:i], off, child); err != nil {
			return err
		}
		sub := &cursor{src: text[i:], base: off + i}
		if err := parseGraph(sub, child); err != nil {
			return err
		}
		if !sub.eof() {
			return syntaxErr(ErrCodeMalformedExpression, sub.offset(),
				"unexpected %q after closing brace", sub.rest())
		}
		parent.Children = append(parent.Children, child)
		return nil
	}

	if i := indexOutsideParens(text, '.'); i >= 0 {
		child, err := parseAggregate(text, off, i)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children, child)
		return nil
	}

	if text != Wildcard && !isName(text) {
		return syntaxErr(ErrCodeMalformedExpression, off, "invalid field name %q", text)
	}
	parent.Fields = append(parent.Fields, text)
	return nil
}

// parseAggregate handles "title(conds).count" and "title(conds).sum.field".
func parseAggregate(text string, off, dot int) (*Node, error) {
	node := &Node{}
	if err := parseTitle(text[:dot], off, node); err != nil {
		return nil, err
	}
	if node.Page > 0 || node.Length > 0 {
		return nil, syntaxErr(ErrCodeMalformedExpression, off,
			"aggregate %q cannot be paginated", node.Title)
	}

	suffix := text[dot+1:]
	switch {
	case suffix == "count":
		node.Kind = KindCount
	case suffix == "sum":
		node.Kind = KindSum
	case strings.HasPrefix(suffix, "sum."):
		node.Kind = KindSum
		field := strings.TrimPrefix(suffix, "sum.")
		if !isName(field) {
			return nil, syntaxErr(ErrCodeMalformedExpression, off+dot+5,
				"invalid sum field %q", field)
		}
		node.Fields = []string{field}
	default:
		return nil, syntaxErr(ErrCodeUnknownAggregateKind, off+dot+1,
			"unknown aggregate %q on %q", suffix, node.Title)
	}
	return node, nil
}

// parseTitle fills in Title, Filters, Page and Length from the text that
// precedes a sub-graph or aggregate suffix.
func parseTitle(text string, off int, node *Node) error {
	rest := text
	if open := strings.IndexByte(text, '('); open >= 0 {
		end := strings.IndexByte(text[open:], ')') + open
		inner := text[open+1 : end]
		if strings.ContainsAny(inner, "({") {
			return syntaxErr(ErrCodeMalformedExpression, off+open+1, "nested group in conditions")
		}
		if strings.IndexByte(text[end+1:], '(') >= 0 {
			return syntaxErr(ErrCodeMalformedExpression, off+end+1, "multiple condition groups")
		}

		if strings.TrimSpace(inner) != "" {
			pos := off + open + 1
			for _, part := range strings.Split(inner, ",") {
				cond, err := parseCondition(part, pos)
				if err != nil {
					return err
				}
				node.Filters = append(node.Filters, cond)
				pos += len(part) + 1
			}
		}
		rest = text[:open] + text[end+1:]
	}

	parts := strings.Split(rest, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var err error
	switch len(parts) {
	case 1:
	case 2:
		node.Length, err = parseCount(parts[1], off)
	case 3:
		if node.Page, err = parseCount(parts[1], off); err == nil {
			node.Length, err = parseCount(parts[2], off)
		}
	default:
		return syntaxErr(ErrCodeMalformedExpression, off, "too many ':' in %q", rest)
	}
	if err != nil {
		return err
	}

	node.Title = parts[0]
	if !isName(node.Title) {
		return syntaxErr(ErrCodeMalformedExpression, off, "invalid relation name %q", node.Title)
	}
	return nil
}

// parseCondition splits "column op value" at the earliest operator.
// queryir.Ops lists two-character operators first, so ">=" wins over ">"
// at the same position.
func parseCondition(text string, off int) (Condition, error) {
	for i := 0; i < len(text); i++ {
		for _, op := range queryir.Ops {
			if !strings.HasPrefix(text[i:], string(op)) {
				continue
			}
			column := strings.TrimSpace(text[:i])
			if column == "" {
				return Condition{}, syntaxErr(ErrCodeMalformedCondition, off,
					"missing column in %q", text)
			}
			if !isName(column) {
				return Condition{}, syntaxErr(ErrCodeMalformedCondition, off,
					"invalid column %q", column)
			}
			value := strings.TrimSpace(text[i+len(op):])
			return Condition{Column: column, Op: op, Value: ir.ParseLiteral(value)}, nil
		}
	}
	return Condition{}, syntaxErr(ErrCodeMalformedCondition, off, "no operator in %q", text)
}

func parseCount(s string, off int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, syntaxErr(ErrCodeMalformedExpression, off, "invalid pagination value %q", s)
	}
	return n, nil
}

// checkNesting verifies that every '(' and '{' is closed by its own kind
// in the right order.
func checkNesting(s string, base int) error {
	type open struct {
		ch  byte
		pos int
	}
	var stack []open
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '(', '{':
			stack = append(stack, open{ch, i})
		case ')', '}':
			want := byte('(')
			if ch == '}' {
				want = '{'
			}
			if len(stack) == 0 {
				return syntaxErr(ErrCodeMalformedExpression, base+i, "unmatched %q", ch)
			}
			top := stack[len(stack)-1]
			if top.ch != want {
				return syntaxErr(ErrCodeMalformedExpression, base+i,
					"%q closes %q opened at offset %d", ch, top.ch, base+top.pos)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return syntaxErr(ErrCodeMalformedExpression, base+top.pos, "unclosed %q", top.ch)
	}
	return nil
}

func indexOutsideParens(s string, ch byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ch:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
