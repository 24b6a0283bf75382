// parsesql/parsesql_test.go
package parsesql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/querytree"
)

func mustRule(t *testing.T, n querytree.Node) *querytree.Rule {
	t.Helper()
	r, ok := n.(*querytree.Rule)
	require.True(t, ok, "node %T is not a rule", n)
	return r
}

func mustGroup(t *testing.T, n querytree.Node) *querytree.RuleGroup {
	t.Helper()
	g, ok := n.(*querytree.RuleGroup)
	require.True(t, ok, "node %T is not a group", n)
	return g
}

func TestParse_SingleComparison(t *testing.T) {
	q, err := Parse("firstName = 'Steve'", nil)
	require.NoError(t, err)

	assert.Equal(t, "and", q.Combinator)
	require.Len(t, q.Rules, 1)
	r := mustRule(t, q.Rules[0])
	assert.Equal(t, "firstName", r.Field)
	assert.Equal(t, "=", r.Operator)
	assert.Equal(t, "Steve", r.Value)
	assert.NotEmpty(t, r.ID)
}

func TestParse_Precedence(t *testing.T) {
	q, err := Parse("a = 1 OR b = 2 AND c = 3", nil)
	require.NoError(t, err)

	assert.Equal(t, "or", q.Combinator)
	require.Len(t, q.Rules, 2)
	assert.Equal(t, "a", mustRule(t, q.Rules[0]).Field)

	inner := mustGroup(t, q.Rules[1])
	assert.Equal(t, "and", inner.Combinator)
	require.Len(t, inner.Rules, 2)
}

func TestParse_FlattensChains(t *testing.T) {
	q, err := Parse("a = 1 AND b = 2 AND c = 3", nil)
	require.NoError(t, err)

	assert.Equal(t, "and", q.Combinator)
	assert.Len(t, q.Rules, 3)
}

func TestParse_Parentheses(t *testing.T) {
	q, err := Parse("(a = 1 OR b = 2) AND c = 3", nil)
	require.NoError(t, err)

	assert.Equal(t, "and", q.Combinator)
	require.Len(t, q.Rules, 2)
	inner := mustGroup(t, q.Rules[0])
	assert.Equal(t, "or", inner.Combinator)
}

func TestParse_Not(t *testing.T) {
	q, err := Parse("NOT (a = 1 AND b = 2)", nil)
	require.NoError(t, err)
	assert.True(t, q.Not)
	assert.Len(t, q.Rules, 2)

	q, err = Parse("NOT a = 1", nil)
	require.NoError(t, err)
	assert.True(t, q.Not)
	require.Len(t, q.Rules, 1)
}

func TestParse_ReversedOperands(t *testing.T) {
	tests := []struct {
		src      string
		wantOp   string
		wantVal  any
		wantName string
	}{
		{src: "21 < age", wantOp: ">", wantVal: float64(21), wantName: "age"},
		{src: "'x' = name", wantOp: "=", wantVal: "x", wantName: "name"},
		{src: "30 >= age", wantOp: "<=", wantVal: float64(30), wantName: "age"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			q, err := Parse(tt.src, nil)
			require.NoError(t, err)
			r := mustRule(t, q.Rules[0])
			assert.Equal(t, tt.wantName, r.Field)
			assert.Equal(t, tt.wantOp, r.Operator)
			assert.Equal(t, tt.wantVal, r.Value)
		})
	}
}

func TestParse_NullPredicates(t *testing.T) {
	q, err := Parse("email IS NULL AND name IS NOT NULL", nil)
	require.NoError(t, err)

	require.Len(t, q.Rules, 2)
	assert.Equal(t, "null", mustRule(t, q.Rules[0]).Operator)
	assert.Equal(t, "notNull", mustRule(t, q.Rules[1]).Operator)
}

func TestParse_EqualsNullLiteral(t *testing.T) {
	q, err := Parse("email = NULL", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", mustRule(t, q.Rules[0]).Operator)

	q, err = Parse("email != NULL", nil)
	require.NoError(t, err)
	assert.Equal(t, "notNull", mustRule(t, q.Rules[0]).Operator)
}

func TestParse_InAndBetween(t *testing.T) {
	q, err := Parse("state IN ('CA', 'NY') AND age NOT BETWEEN 20 AND 30", nil)
	require.NoError(t, err)

	require.Len(t, q.Rules, 2)
	in := mustRule(t, q.Rules[0])
	assert.Equal(t, "in", in.Operator)
	assert.Equal(t, "CA, NY", in.Value)

	btw := mustRule(t, q.Rules[1])
	assert.Equal(t, "notBetween", btw.Operator)
	assert.Equal(t, "20, 30", btw.Value)
}

func TestParse_ListsAsArrays(t *testing.T) {
	q, err := Parse("state IN ('CA', 'NY')", &Options{ListsAsArrays: true})
	require.NoError(t, err)

	r := mustRule(t, q.Rules[0])
	assert.Equal(t, []any{"CA", "NY"}, r.Value)
}

func TestParse_LikeClassification(t *testing.T) {
	tests := []struct {
		src     string
		wantOp  string
		wantVal any
	}{
		{src: "lastName LIKE '%Van%'", wantOp: "contains", wantVal: "Van"},
		{src: "lastName LIKE 'Van%'", wantOp: "beginsWith", wantVal: "Van"},
		{src: "lastName LIKE '%Van'", wantOp: "endsWith", wantVal: "Van"},
		{src: "lastName LIKE 'Van'", wantOp: "=", wantVal: "Van"},
		{src: "lastName NOT LIKE '%Van%'", wantOp: "doesNotContain", wantVal: "Van"},
		{src: "lastName NOT LIKE 'Van%'", wantOp: "doesNotBeginWith", wantVal: "Van"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			q, err := Parse(tt.src, nil)
			require.NoError(t, err)
			r := mustRule(t, q.Rules[0])
			assert.Equal(t, tt.wantOp, r.Operator)
			assert.Equal(t, tt.wantVal, r.Value)
		})
	}
}

func TestParse_LikeConcatFieldReference(t *testing.T) {
	tests := []struct {
		src    string
		wantOp string
	}{
		{src: "city LIKE '%' || region || '%'", wantOp: "contains"},
		{src: "city LIKE region || '%'", wantOp: "beginsWith"},
		{src: "city LIKE '%' || region", wantOp: "endsWith"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			q, err := Parse(tt.src, nil)
			require.NoError(t, err)
			r := mustRule(t, q.Rules[0])
			assert.Equal(t, tt.wantOp, r.Operator)
			assert.Equal(t, querytree.ValueSourceField, r.ValueSource)
			assert.Equal(t, "region", r.Value)
		})
	}
}

func TestParse_FieldToFieldComparison(t *testing.T) {
	q, err := Parse("firstName = lastName", nil)
	require.NoError(t, err)

	r := mustRule(t, q.Rules[0])
	assert.Equal(t, querytree.ValueSourceField, r.ValueSource)
	assert.Equal(t, "lastName", r.Value)
}

func TestParse_Parameters(t *testing.T) {
	q, err := Parse("firstName = ? AND age > ?", &Options{Params: []any{"Steve", 28}})
	require.NoError(t, err)

	assert.Equal(t, "Steve", mustRule(t, q.Rules[0]).Value)
	assert.Equal(t, 28, mustRule(t, q.Rules[1]).Value)

	q, err = Parse("firstName = :name", &Options{ParamsMap: map[string]any{"name": "Steve"}})
	require.NoError(t, err)
	assert.Equal(t, "Steve", mustRule(t, q.Rules[0]).Value)

	q, err = Parse("firstName = $name", &Options{
		ParamPrefix: "$",
		ParamsMap:   map[string]any{"name": "Steve"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Steve", mustRule(t, q.Rules[0]).Value)
}

func TestParse_MissingParameters(t *testing.T) {
	_, err := Parse("a = ?", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positional")

	_, err = Parse("a = :missing", &Options{ParamsMap: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestParse_SelectStatement(t *testing.T) {
	q, err := Parse("SELECT id, name FROM users WHERE age >= 18", nil)
	require.NoError(t, err)

	r := mustRule(t, q.Rules[0])
	assert.Equal(t, "age", r.Field)
	assert.Equal(t, ">=", r.Operator)
}

func TestParse_FieldCatalogDropsUnknown(t *testing.T) {
	fields := []querytree.Field{{Name: "age"}}
	q, err := Parse("age > 21 AND ghost = 'x'", &Options{Fields: fields})
	require.NoError(t, err)

	require.Len(t, q.Rules, 1)
	assert.Equal(t, "age", mustRule(t, q.Rules[0]).Field)
}

func TestParse_IndependentCombinators(t *testing.T) {
	q, err := Parse("a = 1 AND b = 2", &Options{IndependentCombinators: true})
	require.NoError(t, err)

	assert.True(t, q.Independent())
	require.Len(t, q.Rules, 3)
	assert.Equal(t, querytree.Combinator("and"), q.Rules[1])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "dangling operator", src: "a ="},
		{name: "unterminated string", src: "a = 'x"},
		{name: "missing close paren", src: "(a = 1"},
		{name: "trailing garbage", src: "a = 1 b"},
		{name: "between without and", src: "a BETWEEN 1 OR 2"},
		{name: "bare pipe", src: "a = 1 | b = 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, nil)
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParse_EmptyInput(t *testing.T) {
	q, err := Parse("", nil)
	require.NoError(t, err)
	assert.Empty(t, q.Rules)
	assert.Equal(t, "and", q.Combinator)
}

func TestParse_FormatRoundTrip(t *testing.T) {
	sources := []string{
		"firstName = 'Steve' and lastName = 'Vai'",
		"age >= 18 or (city = 'Boston' and state = 'MA')",
		"lastName like '%Van%'",
		"email is null",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			q, err := Parse(src, nil)
			require.NoError(t, err)
			assert.Equal(t, src, formatquery.SQL(q, nil))
		})
	}
}
