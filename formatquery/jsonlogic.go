// formatquery/jsonlogic.go
package formatquery

import (
	"encoding/json"

	"github.com/solatis/querykit/querytree"
)

/*
 * JsonLogic export. Rules become operator arrays over {"var": field}
 * references; between uses the three-operand <= form; contains reverses the
 * "in" operands (needle first). The default fallback for an empty group is
 * the JsonLogic literal false, matching its "no rule applies" semantics.
 */

// JSONLogic renders q as a JsonLogic value.
func JSONLogic(q *querytree.RuleGroup, o *Options) any {
	w := newWalker(q, o)
	d := &objectDialect{
		rule: (*walker).jsonLogicRule,
		combine: func(comb string, frags []any) any {
			return map[string]any{comb: frags}
		},
		negate: func(body any) any {
			return map[string]any{"!": body}
		},
		fallback: jsonLogicFallback,
	}
	if q == nil {
		return jsonLogicFallback(w.o)
	}
	return w.formatGroupObject(q, d)
}

func jsonLogicFallback(o *Options) any {
	if o.FallbackExpression != "" {
		var parsed any
		if err := json.Unmarshal([]byte(o.FallbackExpression), &parsed); err == nil {
			return parsed
		}
	}
	return false
}

func (w *walker) jsonLogicRule(r *querytree.Rule) (any, bool) {
	ref := map[string]any{"var": r.Field}
	fieldRef := r.ValueSource == querytree.ValueSourceField

	operand := func(v any) any {
		if fieldRef {
			return map[string]any{"var": valueText(v)}
		}
		return w.coerceNumber(v)
	}

	switch r.Operator {
	case "=":
		return map[string]any{"==": []any{ref, operand(r.Value)}}, true
	case "!=":
		return map[string]any{"!=": []any{ref, operand(r.Value)}}, true
	case "<", "<=", ">", ">=":
		return map[string]any{r.Operator: []any{ref, operand(r.Value)}}, true

	case "null":
		return map[string]any{"==": []any{ref, nil}}, true
	case "notNull":
		return map[string]any{"!=": []any{ref, nil}}, true

	case "contains":
		return map[string]any{"in": []any{operand(r.Value), ref}}, true
	case "doesNotContain":
		return map[string]any{"!": map[string]any{"in": []any{operand(r.Value), ref}}}, true
	case "beginsWith":
		return map[string]any{"startsWith": []any{ref, operand(r.Value)}}, true
	case "doesNotBeginWith":
		return map[string]any{"!": map[string]any{"startsWith": []any{ref, operand(r.Value)}}}, true
	case "endsWith":
		return map[string]any{"endsWith": []any{ref, operand(r.Value)}}, true
	case "doesNotEndWith":
		return map[string]any{"!": map[string]any{"endsWith": []any{ref, operand(r.Value)}}}, true

	case "in", "notIn":
		vals := valueList(r.Value)
		if len(vals) == 0 {
			return nil, false
		}
		list := make([]any, 0, len(vals))
		for _, v := range vals {
			list = append(list, operand(v))
		}
		clause := map[string]any{"in": []any{ref, list}}
		if r.Operator == "notIn" {
			return map[string]any{"!": clause}, true
		}
		return clause, true

	case "between", "notBetween":
		vals := valueList(r.Value)
		if len(vals) < 2 {
			return nil, false
		}
		clause := map[string]any{"<=": []any{operand(vals[0]), ref, operand(vals[1])}}
		if r.Operator == "notBetween" {
			return map[string]any{"!": clause}, true
		}
		return clause, true

	default:
		return nil, false
	}
}
