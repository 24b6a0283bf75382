// parsemongodb/parsemongodb_test.go
package parsemongodb

import (
	"reflect"
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

func TestParseBytes_BareEquality(t *testing.T) {
	q, err := ParseBytes([]byte(`{"firstName": "Steve"}`), nil)
	require.NoError(t, err)

	assert.Equal(t, "and", q.Combinator)
	require.Len(t, q.Rules, 1)
	r := mustRule(t, q.Rules[0])
	assert.Equal(t, "firstName", r.Field)
	assert.Equal(t, "=", r.Operator)
	assert.Equal(t, "Steve", r.Value)
}

func TestParse_ImplicitAndSortsKeys(t *testing.T) {
	q, err := ParseBytes([]byte(`{"b": 2, "a": 1}`), nil)
	require.NoError(t, err)

	require.Len(t, q.Rules, 2)
	assert.Equal(t, "a", mustRule(t, q.Rules[0]).Field)
	assert.Equal(t, "b", mustRule(t, q.Rules[1]).Field)
}

func TestParse_LogicalOperators(t *testing.T) {
	q, err := ParseBytes([]byte(`{"$or": [
		{"a": 1},
		{"$and": [{"b": 2}, {"c": 3}]}
	]}`), nil)
	require.NoError(t, err)

	assert.Equal(t, "or", q.Combinator)
	require.Len(t, q.Rules, 2)
	inner := mustGroup(t, q.Rules[1])
	assert.Equal(t, "and", inner.Combinator)
	assert.Len(t, inner.Rules, 2)
}

func TestParse_NorNegatesOrGroup(t *testing.T) {
	q, err := ParseBytes([]byte(`{"$nor": [{"a": 1}, {"b": 2}]}`), nil)
	require.NoError(t, err)

	assert.Equal(t, "or", q.Combinator)
	assert.True(t, q.Not)
	assert.Len(t, q.Rules, 2)
}

func TestParse_MultiKeyOperandBecomesAndGroup(t *testing.T) {
	q, err := ParseBytes([]byte(`{"$or": [
		{"a": 1, "b": 2},
		{"c": 3}
	]}`), nil)
	require.NoError(t, err)

	require.Len(t, q.Rules, 2)
	inner := mustGroup(t, q.Rules[0])
	assert.Equal(t, "and", inner.Combinator)
	assert.Len(t, inner.Rules, 2)
}

func TestParse_ComparisonOperators(t *testing.T) {
	tests := []struct {
		src     string
		wantOp  string
		wantVal any
	}{
		{src: `{"age": {"$eq": 21}}`, wantOp: "=", wantVal: float64(21)},
		{src: `{"age": {"$ne": 21}}`, wantOp: "!=", wantVal: float64(21)},
		{src: `{"age": {"$lt": 65}}`, wantOp: "<", wantVal: float64(65)},
		{src: `{"age": {"$lte": 65}}`, wantOp: "<=", wantVal: float64(65)},
		{src: `{"age": {"$gt": 18}}`, wantOp: ">", wantVal: float64(18)},
		{src: `{"age": {"$gte": 18}}`, wantOp: ">=", wantVal: float64(18)},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			q, err := ParseBytes([]byte(tt.src), nil)
			require.NoError(t, err)
			r := mustRule(t, q.Rules[0])
			assert.Equal(t, tt.wantOp, r.Operator)
			assert.Equal(t, tt.wantVal, r.Value)
		})
	}
}

func TestParse_NullHandling(t *testing.T) {
	q, err := ParseBytes([]byte(`{"email": null}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "null", mustRule(t, q.Rules[0]).Operator)

	q, err = ParseBytes([]byte(`{"email": {"$ne": null}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "notNull", mustRule(t, q.Rules[0]).Operator)

	q, err = ParseBytes([]byte(`{"a": {"$exists": true}, "b": {"$exists": false}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "notNull", mustRule(t, q.Rules[0]).Operator)
	assert.Equal(t, "null", mustRule(t, q.Rules[1]).Operator)
}

func TestParse_RangeFusesToBetween(t *testing.T) {
	q, err := ParseBytes([]byte(`{"age": {"$gte": 20, "$lte": 30}}`), nil)
	require.NoError(t, err)

	r := mustRule(t, q.Rules[0])
	assert.Equal(t, "between", r.Operator)
	assert.Equal(t, "20, 30", r.Value)
}

func TestParse_MultipleFieldOperators(t *testing.T) {
	// $gt + $lt is not the between form; it stays an AND pair.
	q, err := ParseBytes([]byte(`{"age": {"$gt": 20, "$lt": 30}}`), nil)
	require.NoError(t, err)

	inner := mustGroup(t, q.Rules[0])
	require.Len(t, inner.Rules, 2)
	assert.Equal(t, ">", mustRule(t, inner.Rules[0]).Operator)
	assert.Equal(t, "<", mustRule(t, inner.Rules[1]).Operator)
}

func TestParse_RegexAnchors(t *testing.T) {
	tests := []struct {
		src     string
		wantOp  string
		wantVal string
	}{
		{src: `{"lastName": {"$regex": "^Van"}}`, wantOp: "beginsWith", wantVal: "Van"},
		{src: `{"lastName": {"$regex": "sen$"}}`, wantOp: "endsWith", wantVal: "sen"},
		{src: `{"lastName": {"$regex": "Van"}}`, wantOp: "contains", wantVal: "Van"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			q, err := ParseBytes([]byte(tt.src), nil)
			require.NoError(t, err)
			r := mustRule(t, q.Rules[0])
			assert.Equal(t, tt.wantOp, r.Operator)
			assert.Equal(t, tt.wantVal, r.Value)
		})
	}
}

func TestParse_InAndNotIn(t *testing.T) {
	q, err := ParseBytes([]byte(`{"state": {"$in": ["CA", "NY"]}}`), nil)
	require.NoError(t, err)
	r := mustRule(t, q.Rules[0])
	assert.Equal(t, "in", r.Operator)
	assert.Equal(t, "CA, NY", r.Value)

	q, err = ParseBytes([]byte(`{"state": {"$nin": ["CA", "NY"]}}`), &Options{ListsAsArrays: true})
	require.NoError(t, err)
	r = mustRule(t, q.Rules[0])
	assert.Equal(t, "notIn", r.Operator)
	assert.Equal(t, []any{"CA", "NY"}, r.Value)
}

func TestParse_FieldNot(t *testing.T) {
	// Negatable operators flip in place.
	q, err := ParseBytes([]byte(`{"lastName": {"$not": {"$regex": "Van"}}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "doesNotContain", mustRule(t, q.Rules[0]).Operator)

	q, err = ParseBytes([]byte(`{"a": {"$not": {"$eq": 1}}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "!=", mustRule(t, q.Rules[0]).Operator)

	// Operators without a negated form wrap in a NOT group.
	q, err = ParseBytes([]byte(`{"age": {"$not": {"$lt": 21}}}`), nil)
	require.NoError(t, err)
	inner := mustGroup(t, q.Rules[0])
	assert.True(t, inner.Not)
	assert.Equal(t, "<", mustRule(t, inner.Rules[0]).Operator)
}

func TestParse_TopLevelNot(t *testing.T) {
	q, err := ParseBytes([]byte(`{"$not": {"a": 1, "b": 2}}`), nil)
	require.NoError(t, err)

	assert.True(t, q.Not)
	assert.Len(t, q.Rules, 2)
}

func TestParse_ExprFieldComparison(t *testing.T) {
	q, err := ParseBytes([]byte(`{"$expr": {"$eq": ["$firstName", "$lastName"]}}`), nil)
	require.NoError(t, err)

	r := mustRule(t, q.Rules[0])
	assert.Equal(t, "firstName", r.Field)
	assert.Equal(t, "=", r.Operator)
	assert.Equal(t, "lastName", r.Value)
	assert.Equal(t, querytree.ValueSourceField, r.ValueSource)
}

func TestParse_FieldCatalogDropsUnknown(t *testing.T) {
	q, err := ParseBytes([]byte(`{"age": {"$gt": 21}, "ghost": "x"}`), &Options{
		Fields: []querytree.Field{{Name: "age"}},
	})
	require.NoError(t, err)

	require.Len(t, q.Rules, 1)
	assert.Equal(t, "age", mustRule(t, q.Rules[0]).Field)
}

func TestParse_IndependentCombinators(t *testing.T) {
	q, err := ParseBytes([]byte(`{"$or": [{"a": 1}, {"b": 2}]}`), &Options{
		IndependentCombinators: true,
	})
	require.NoError(t, err)

	assert.True(t, q.Independent())
	require.Len(t, q.Rules, 3)
	assert.Equal(t, querytree.Combinator("or"), q.Rules[1])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "unsupported top level operator", src: `{"$where": "this.a > 1"}`},
		{name: "unsupported field operator", src: `{"a": {"$size": 3}}`},
		{name: "logical operand not a document", src: `{"$and": [42]}`},
		{name: "regex not a string", src: `{"a": {"$regex": 42}}`},
		{name: "in not an array", src: `{"a": {"$in": "CA"}}`},
		{name: "expr operands not field paths", src: `{"$expr": {"$eq": ["$a", 1]}}`},
		{name: "invalid json", src: `{"a": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.src), nil)
			assert.Error(t, err)
		})
	}
}

func TestParse_FormatRoundTrip(t *testing.T) {
	q := &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: "and",
		Rules: []querytree.Node{
			&querytree.Rule{ID: "r1", Field: "firstName", Operator: "=", Value: "Steve"},
			&querytree.Rule{ID: "r2", Field: "age", Operator: ">=", Value: float64(28)},
			&querytree.Rule{ID: "r3", Field: "lastName", Operator: "beginsWith", Value: "Van"},
		},
	}

	doc := formatquery.MongoDB(q, nil)
	parsed, err := Parse(doc, &Options{ListsAsArrays: true})
	require.NoError(t, err)

	again := formatquery.MongoDB(parsed, nil)
	if !reflect.DeepEqual(doc, again) {
		t.Errorf("round trip = %v, want %v", again, doc)
	}
}
