// formatquery/mongodb.go
package formatquery

import (
	"encoding/json"

	"github.com/solatis/querykit/querytree"
)

/*
 * MongoDB query-document export. Groups become $and/$or arrays, negation
 * becomes $nor, and field-to-field comparisons route through $expr with
 * $-prefixed field paths because the plain document form only compares
 * against literals.
 */

// MongoDB renders q as a MongoDB query document.
func MongoDB(q *querytree.RuleGroup, o *Options) map[string]any {
	w := newWalker(q, o)
	d := &objectDialect{
		rule: (*walker).mongoRule,
		combine: func(comb string, frags []any) any {
			return map[string]any{"$" + comb: frags}
		},
		negate: func(body any) any {
			return map[string]any{"$nor": []any{body}}
		},
		fallback: mongoFallback,
	}
	if q == nil {
		return mongoFallback(w.o).(map[string]any)
	}
	body := w.formatGroupObject(q, d)
	if m, ok := body.(map[string]any); ok {
		return m
	}
	return mongoFallback(w.o).(map[string]any)
}

func mongoFallback(o *Options) any {
	if o.FallbackExpression != "" {
		var parsed any
		if err := json.Unmarshal([]byte(o.FallbackExpression), &parsed); err == nil {
			return parsed
		}
	}
	return map[string]any{"$and": []any{map[string]any{"$expr": true}}}
}

var mongoExprOps = map[string]string{
	"=": "$eq", "!=": "$ne", "<": "$lt", "<=": "$lte", ">": "$gt", ">=": "$gte",
}

func (w *walker) mongoRule(r *querytree.Rule) (any, bool) {
	f := r.Field

	if r.ValueSource == querytree.ValueSourceField {
		op, ok := mongoExprOps[r.Operator]
		if !ok {
			return nil, false
		}
		return map[string]any{
			"$expr": map[string]any{op: []any{"$" + f, "$" + valueText(r.Value)}},
		}, true
	}

	switch r.Operator {
	case "=":
		return map[string]any{f: w.coerceNumber(r.Value)}, true
	case "!=", "<", "<=", ">", ">=":
		return map[string]any{f: map[string]any{mongoExprOps[r.Operator]: w.coerceNumber(r.Value)}}, true

	case "null":
		return map[string]any{f: nil}, true
	case "notNull":
		return map[string]any{f: map[string]any{"$ne": nil}}, true

	case "contains", "beginsWith", "endsWith",
		"doesNotContain", "doesNotBeginWith", "doesNotEndWith":
		text := valueText(r.Value)
		var pattern string
		switch r.Operator {
		case "contains", "doesNotContain":
			pattern = text
		case "beginsWith", "doesNotBeginWith":
			pattern = "^" + text
		default:
			pattern = text + "$"
		}
		clause := map[string]any{"$regex": pattern}
		if r.Operator == "doesNotContain" || r.Operator == "doesNotBeginWith" || r.Operator == "doesNotEndWith" {
			return map[string]any{f: map[string]any{"$not": clause}}, true
		}
		return map[string]any{f: clause}, true

	case "in", "notIn":
		vals := valueList(r.Value)
		if len(vals) == 0 {
			return nil, false
		}
		coerced := make([]any, 0, len(vals))
		for _, v := range vals {
			coerced = append(coerced, w.coerceNumber(v))
		}
		op := "$in"
		if r.Operator == "notIn" {
			op = "$nin"
		}
		return map[string]any{f: map[string]any{op: coerced}}, true

	case "between", "notBetween":
		vals := valueList(r.Value)
		if len(vals) < 2 {
			return nil, false
		}
		rng := map[string]any{"$gte": w.coerceNumber(vals[0]), "$lte": w.coerceNumber(vals[1])}
		if r.Operator == "notBetween" {
			return map[string]any{f: map[string]any{"$not": rng}}, true
		}
		return map[string]any{f: rng}, true

	default:
		return nil, false
	}
}
