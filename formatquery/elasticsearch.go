// formatquery/elasticsearch.go
package formatquery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solatis/querykit/querytree"
)

/*
 * Elasticsearch query-DSL export. Groups become bool.must / bool.should
 * arrays, negation bool.must_not. Field-to-field comparisons are the one
 * place the DSL has no declarative form, so they emit painless script
 * clauses comparing doc values.
 */

// ElasticSearch renders q as an Elasticsearch query-DSL document.
func ElasticSearch(q *querytree.RuleGroup, o *Options) map[string]any {
	w := newWalker(q, o)
	d := &objectDialect{
		rule: (*walker).esRule,
		combine: func(comb string, frags []any) any {
			occur := "must"
			if comb == "or" {
				occur = "should"
			}
			return map[string]any{"bool": map[string]any{occur: frags}}
		},
		negate: func(body any) any {
			return map[string]any{"bool": map[string]any{"must_not": []any{body}}}
		},
		fallback: esFallback,
	}
	if q == nil {
		return esFallback(w.o).(map[string]any)
	}
	body := w.formatGroupObject(q, d)
	if m, ok := body.(map[string]any); ok {
		return m
	}
	return esFallback(w.o).(map[string]any)
}

func esFallback(o *Options) any {
	if o.FallbackExpression != "" {
		var parsed any
		if err := json.Unmarshal([]byte(o.FallbackExpression), &parsed); err == nil {
			return parsed
		}
	}
	return map[string]any{"match_all": map[string]any{}}
}

var esRangeOps = map[string]string{"<": "lt", "<=": "lte", ">": "gt", ">=": "gte"}

func (w *walker) esRule(r *querytree.Rule) (any, bool) {
	if r.ValueSource == querytree.ValueSourceField {
		return esFieldScript(r)
	}

	f := r.Field
	mustNot := func(clause any) any {
		return map[string]any{"bool": map[string]any{"must_not": []any{clause}}}
	}

	switch r.Operator {
	case "=":
		return map[string]any{"term": map[string]any{f: w.coerceNumber(r.Value)}}, true
	case "!=":
		return mustNot(map[string]any{"term": map[string]any{f: w.coerceNumber(r.Value)}}), true
	case "<", "<=", ">", ">=":
		return map[string]any{"range": map[string]any{f: map[string]any{esRangeOps[r.Operator]: w.coerceNumber(r.Value)}}}, true

	case "null":
		return mustNot(map[string]any{"exists": map[string]any{"field": f}}), true
	case "notNull":
		return map[string]any{"exists": map[string]any{"field": f}}, true

	case "contains":
		return map[string]any{"wildcard": map[string]any{f: map[string]any{"value": "*" + valueText(r.Value) + "*"}}}, true
	case "doesNotContain":
		return mustNot(map[string]any{"wildcard": map[string]any{f: map[string]any{"value": "*" + valueText(r.Value) + "*"}}}), true
	case "beginsWith":
		return map[string]any{"prefix": map[string]any{f: map[string]any{"value": valueText(r.Value)}}}, true
	case "doesNotBeginWith":
		return mustNot(map[string]any{"prefix": map[string]any{f: map[string]any{"value": valueText(r.Value)}}}), true
	case "endsWith":
		return map[string]any{"wildcard": map[string]any{f: map[string]any{"value": "*" + valueText(r.Value)}}}, true
	case "doesNotEndWith":
		return mustNot(map[string]any{"wildcard": map[string]any{f: map[string]any{"value": "*" + valueText(r.Value)}}}), true

	case "in", "notIn":
		vals := valueList(r.Value)
		if len(vals) == 0 {
			return nil, false
		}
		coerced := make([]any, 0, len(vals))
		for _, v := range vals {
			coerced = append(coerced, w.coerceNumber(v))
		}
		clause := map[string]any{"terms": map[string]any{f: coerced}}
		if r.Operator == "notIn" {
			return mustNot(clause), true
		}
		return clause, true

	case "between", "notBetween":
		vals := valueList(r.Value)
		if len(vals) < 2 {
			return nil, false
		}
		clause := map[string]any{"range": map[string]any{f: map[string]any{
			"gte": w.coerceNumber(vals[0]), "lte": w.coerceNumber(vals[1]),
		}}}
		if r.Operator == "notBetween" {
			return mustNot(clause), true
		}
		return clause, true

	default:
		return nil, false
	}
}

// esFieldScript emits a painless script clause comparing two document
// fields; the query DSL cannot express this declaratively.
func esFieldScript(r *querytree.Rule) (any, bool) {
	left := fmt.Sprintf("doc['%s'].value", r.Field)
	right := fmt.Sprintf("doc['%s'].value", valueText(r.Value))

	var src string
	switch r.Operator {
	case "=":
		src = left + " == " + right
	case "!=", "<", "<=", ">", ">=":
		src = left + " " + r.Operator + " " + right
	case "contains", "doesNotContain":
		src = left + ".contains(" + right + ")"
	case "beginsWith", "doesNotBeginWith":
		src = left + ".startsWith(" + right + ")"
	case "endsWith", "doesNotEndWith":
		src = left + ".endsWith(" + right + ")"
	default:
		return nil, false
	}
	if strings.HasPrefix(r.Operator, "doesNot") {
		src = "!(" + src + ")"
	}
	return map[string]any{"script": map[string]any{"script": src}}, true
}
