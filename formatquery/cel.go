// formatquery/cel.go
package formatquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/querykit/querytree"
)

/*
 * CEL (Common Expression Language) export. Strings are double-quoted, the
 * LIKE family maps to the contains/startsWith/endsWith member functions,
 * and between expands to a bounded && pair since CEL has no range operator.
 */

// CELFallbackExpression is the tautology emitted for empty/invalid groups.
const CELFallbackExpression = "1 == 1"

// CEL renders q as a CEL expression.
func CEL(q *querytree.RuleGroup, o *Options) string {
	w := newWalker(q, o)
	d := &stringDialect{
		rule: (*walker).celRule,
		join: func(comb string) string {
			if defaultComb(comb) == "or" {
				return " || "
			}
			return " && "
		},
		negate: func(body string) string { return "!(" + body + ")" },
		fallback: func(o *Options) string {
			if o.FallbackExpression != "" {
				return o.FallbackExpression
			}
			return CELFallbackExpression
		},
	}
	if q == nil {
		return d.fallback(w.o)
	}
	return w.formatGroupString(q, true, d)
}

func (w *walker) celRule(r *querytree.Rule) (string, bool) {
	field := r.Field
	fieldRef := r.ValueSource == querytree.ValueSourceField

	operand := func(v any) string {
		if fieldRef {
			return valueText(v)
		}
		return w.celValue(v)
	}

	switch r.Operator {
	case "null":
		return field + " == null", true
	case "notNull":
		return field + " != null", true

	case "=":
		return field + " == " + operand(r.Value), true
	case "!=", "<", ">", "<=", ">=":
		return field + " " + r.Operator + " " + operand(r.Value), true

	case "contains", "beginsWith", "endsWith",
		"doesNotContain", "doesNotBeginWith", "doesNotEndWith":
		fn := map[string]string{
			"contains": "contains", "doesNotContain": "contains",
			"beginsWith": "startsWith", "doesNotBeginWith": "startsWith",
			"endsWith": "endsWith", "doesNotEndWith": "endsWith",
		}[r.Operator]
		expr := fmt.Sprintf("%s.%s(%s)", field, fn, operand(r.Value))
		if strings.HasPrefix(r.Operator, "doesNot") {
			expr = "!" + expr
		}
		return expr, true

	case "in", "notIn":
		vals := valueList(r.Value)
		if len(vals) == 0 {
			return "", false
		}
		rendered := make([]string, 0, len(vals))
		for _, v := range vals {
			rendered = append(rendered, operand(v))
		}
		expr := fmt.Sprintf("%s in [%s]", field, strings.Join(rendered, ", "))
		if r.Operator == "notIn" {
			expr = "!(" + expr + ")"
		}
		return expr, true

	case "between", "notBetween":
		vals := valueList(r.Value)
		if len(vals) < 2 {
			return "", false
		}
		expr := fmt.Sprintf("(%s >= %s && %s <= %s)", field, operand(vals[0]), field, operand(vals[1]))
		if r.Operator == "notBetween" {
			expr = "!" + expr
		}
		return expr, true

	default:
		return "", false
	}
}

func (w *walker) celValue(v any) string {
	v = w.coerceNumber(v)
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return `"` + escapeDoubleQuotes(t) + `"`
	default:
		return `"` + escapeDoubleQuotes(fmt.Sprintf("%v", t)) + `"`
	}
}
