package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/queryir"
)

func TestParse_Fields(t *testing.T) {
	root, err := Parse("{id,name}")
	require.NoError(t, err)

	assert.Equal(t, "", root.Title)
	assert.Equal(t, KindFieldGroup, root.Kind)
	assert.Equal(t, []string{"id", "name"}, root.Fields)
	assert.Empty(t, root.Children)
}

func TestParse_Wildcard(t *testing.T) {
	root, err := Parse("{*}")
	require.NoError(t, err)

	assert.True(t, root.WantsAll())
	assert.True(t, root.WantsTimestamps())
}

func TestParse_TimestampsMarker(t *testing.T) {
	root, err := Parse("{name,_timestamps}")
	require.NoError(t, err)

	assert.False(t, root.WantsAll())
	assert.True(t, root.WantsTimestamps())
}

func TestParse_EmptyGroup(t *testing.T) {
	for _, expr := range []string{"{}", "{ }", "{\n\t}"} {
		t.Run(expr, func(t *testing.T) {
			root, err := Parse(expr)
			require.NoError(t, err)
			assert.Empty(t, root.Fields)
			assert.Empty(t, root.Children)
		})
	}

	root, err := Parse("{name,children{ }}")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Empty(t, root.Children[0].Fields)
}

func TestParse_NestedRelation(t *testing.T) {
	root, err := Parse("{id,name,parent{name,parent_id}}")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, root.Fields)
	require.Len(t, root.Children, 1)

	parent := root.Children[0]
	assert.Equal(t, "parent", parent.Title)
	assert.Equal(t, KindFieldGroup, parent.Kind)
	assert.Equal(t, []string{"name", "parent_id"}, parent.Fields)
}

func TestParse_FilteredPaginatedRelation(t *testing.T) {
	root, err := Parse("{name,children(status=1):2:10{name}}")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	children := root.Children[0]
	assert.Equal(t, "children", children.Title)
	assert.Equal(t, 2, children.Page)
	assert.Equal(t, 10, children.Length)
	assert.Equal(t, []string{"name"}, children.Fields)
	assert.Equal(t, []Condition{
		{Column: "status", Op: queryir.OpEq, Value: ir.IRInt(1)},
	}, children.Filters)
}

func TestParse_LengthOnly(t *testing.T) {
	root, err := Parse("{children:10{name}}")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	assert.Equal(t, 0, root.Children[0].Page)
	assert.Equal(t, 10, root.Children[0].Length)
}

func TestParse_CountAggregate(t *testing.T) {
	root, err := Parse("{name,products.count}")
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, root.Fields)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "products", root.Children[0].Title)
	assert.Equal(t, KindCount, root.Children[0].Kind)
	assert.Empty(t, root.Children[0].Fields)
}

func TestParse_SumAggregate(t *testing.T) {
	root, err := Parse("{name,products.sum.amount}")
	require.NoError(t, err)

	require.Len(t, root.Children, 1)
	sum := root.Children[0]
	assert.Equal(t, "products", sum.Title)
	assert.Equal(t, KindSum, sum.Kind)
	assert.Equal(t, []string{"amount"}, sum.Fields)
}

func TestParse_SumWithoutField(t *testing.T) {
	root, err := Parse("{products.sum}")
	require.NoError(t, err)

	require.Len(t, root.Children, 1)
	assert.Equal(t, KindSum, root.Children[0].Kind)
	assert.Empty(t, root.Children[0].Fields)
}

func TestParse_FilteredAggregate(t *testing.T) {
	root, err := Parse("{products(status=1,price>=10).count}")
	require.NoError(t, err)

	require.Len(t, root.Children, 1)
	assert.Equal(t, []Condition{
		{Column: "status", Op: queryir.OpEq, Value: ir.IRInt(1)},
		{Column: "price", Op: queryir.OpGe, Value: ir.IRInt(10)},
	}, root.Children[0].Filters)
}

func TestParse_DotInsideConditionIsNotAggregate(t *testing.T) {
	root, err := Parse("{products(price>1.5){name}}")
	require.NoError(t, err)

	require.Len(t, root.Children, 1)
	assert.Equal(t, KindFieldGroup, root.Children[0].Kind)
	assert.Equal(t, ir.IRString("1.5"), root.Children[0].Filters[0].Value)
}

func TestParse_DeepNesting(t *testing.T) {
	root, err := Parse("{name,parent{name,parent{name}}}")
	require.NoError(t, err)

	depth := 0
	for n := root; len(n.Children) > 0; n = n.Children[0] {
		depth++
		assert.Equal(t, "parent", n.Children[0].Title)
		assert.Equal(t, []string{"name"}, n.Children[0].Fields)
	}
	assert.Equal(t, 2, depth)
}

func TestParse_MixedItemOrder(t *testing.T) {
	root, err := Parse("{parent{name},id,orders.count,name}")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, root.Fields)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "parent", root.Children[0].Title)
	assert.Equal(t, "orders", root.Children[1].Title)
}

func TestParse_SurroundingWhitespace(t *testing.T) {
	root, err := Parse("  {id, name}  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, root.Fields)
}

func TestParseCondition_Operators(t *testing.T) {
	tests := []struct {
		input string
		want  Condition
	}{
		{"age>=5", Condition{Column: "age", Op: queryir.OpGe, Value: ir.IRInt(5)}},
		{"age<=5", Condition{Column: "age", Op: queryir.OpLe, Value: ir.IRInt(5)}},
		{"age>5", Condition{Column: "age", Op: queryir.OpGt, Value: ir.IRInt(5)}},
		{"age<5", Condition{Column: "age", Op: queryir.OpLt, Value: ir.IRInt(5)}},
		{"status!=0", Condition{Column: "status", Op: queryir.OpNe, Value: ir.IRInt(0)}},
		{"name=bob", Condition{Column: "name", Op: queryir.OpEq, Value: ir.IRString("bob")}},
		// Earliest operator wins; the rest is the value.
		{"note=a>b", Condition{Column: "note", Op: queryir.OpEq, Value: ir.IRString("a>b")}},
		{"name=", Condition{Column: "name", Op: queryir.OpEq, Value: ir.IRString("")}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseCondition(tt.input, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCondition_Malformed(t *testing.T) {
	for _, input := range []string{"status", "=1", "a b=1", ""} {
		t.Run(input, func(t *testing.T) {
			_, err := parseCondition(input, 0)
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeMalformedCondition), "got %v", err)
		})
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		input  string
		title  string
		page   int
		length int
		nconds int
	}{
		{"children", "children", 0, 0, 0},
		{"children:10", "children", 0, 10, 0},
		{"children:2:10", "children", 2, 10, 0},
		{"children(a=1)", "children", 0, 0, 1},
		{"children(a=1,b=2):3:25", "children", 3, 25, 2},
		{"children()", "children", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n := &Node{}
			require.NoError(t, parseTitle(tt.input, 0, n))
			assert.Equal(t, tt.title, n.Title)
			assert.Equal(t, tt.page, n.Page)
			assert.Equal(t, tt.length, n.Length)
			assert.Len(t, n.Filters, tt.nconds)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  ErrorCode
	}{
		{"empty", "", ErrCodeMalformedExpression},
		{"no braces", "id,name", ErrCodeMalformedExpression},
		{"unclosed brace", "{id,name", ErrCodeMalformedExpression},
		{"unclosed nested", "{id,parent{name}", ErrCodeMalformedExpression},
		{"extra close", "{id}}", ErrCodeMalformedExpression},
		{"crossed", "{a(b=1}", ErrCodeMalformedExpression},
		{"trailing junk", "{id}name", ErrCodeMalformedExpression},
		{"junk after subgraph", "{parent{name}x}", ErrCodeMalformedExpression},
		{"empty item", "{id,,name}", ErrCodeMalformedExpression},
		{"trailing comma", "{id,}", ErrCodeMalformedExpression},
		{"bad page", "{children:x:10{name}}", ErrCodeMalformedExpression},
		{"negative length", "{children:-1{name}}", ErrCodeMalformedExpression},
		{"too many colons", "{children:1:2:3{name}}", ErrCodeMalformedExpression},
		{"field with operator", "{status=1}", ErrCodeMalformedExpression},
		{"nested parens", "{children((a=1)){name}}", ErrCodeMalformedExpression},
		{"paginated aggregate", "{products:10.count}", ErrCodeMalformedExpression},
		{"condition without operator", "{children(status){name}}", ErrCodeMalformedCondition},
		{"condition without column", "{children(=1){name}}", ErrCodeMalformedCondition},
		{"unknown aggregate", "{products.avg}", ErrCodeUnknownAggregateKind},
		{"count with field", "{products.count.id}", ErrCodeUnknownAggregateKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.code), "got %v", err)

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.input, se.Input)
			assert.Equal(t, string(tt.code), se.ErrorCode())
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := Parse("{id,children(status){name}}")
	require.Error(t, err)

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 13, se.Pos)
	assert.Contains(t, se.Error(), "MALFORMED_CONDITION")
}

func TestIsCode_NonSyntaxError(t *testing.T) {
	assert.False(t, IsCode(assert.AnError, ErrCodeMalformedExpression))
	assert.False(t, IsCode(nil, ErrCodeMalformedExpression))
}
