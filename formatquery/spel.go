// formatquery/spel.go
package formatquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/querykit/querytree"
)

/*
 * SpEL (Spring Expression Language) export. Strings are single-quoted with
 * quote doubling, the LIKE family maps to anchored `matches` regexes, and
 * `in` expands to an or-chain since SpEL has no list membership operator on
 * literals.
 */

// SpELFallbackExpression is the tautology emitted for empty/invalid groups.
const SpELFallbackExpression = "1 == 1"

// SpEL renders q as a SpEL expression.
func SpEL(q *querytree.RuleGroup, o *Options) string {
	w := newWalker(q, o)
	d := &stringDialect{
		rule:   (*walker).spelRule,
		join:   func(comb string) string { return " " + defaultComb(comb) + " " },
		negate: func(body string) string { return "!(" + body + ")" },
		fallback: func(o *Options) string {
			if o.FallbackExpression != "" {
				return o.FallbackExpression
			}
			return SpELFallbackExpression
		},
	}
	if q == nil {
		return d.fallback(w.o)
	}
	return w.formatGroupString(q, true, d)
}

func (w *walker) spelRule(r *querytree.Rule) (string, bool) {
	field := r.Field
	fieldRef := r.ValueSource == querytree.ValueSourceField

	operand := func(v any) string {
		if fieldRef {
			return valueText(v)
		}
		return w.spelValue(v)
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
		if fieldRef {
			// A regex built from another column is not expressible.
			return "", false
		}
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
		expr := fmt.Sprintf("%s matches '%s'", field, strings.ReplaceAll(pattern, "'", "''"))
		if strings.HasPrefix(r.Operator, "doesNot") {
			expr = "!(" + expr + ")"
		}
		return expr, true

	case "in", "notIn":
		vals := valueList(r.Value)
		if len(vals) == 0 {
			return "", false
		}
		terms := make([]string, 0, len(vals))
		for _, v := range vals {
			terms = append(terms, field+" == "+operand(v))
		}
		expr := "(" + strings.Join(terms, " or ") + ")"
		if r.Operator == "notIn" {
			expr = "!" + expr
		}
		return expr, true

	case "between", "notBetween":
		vals := valueList(r.Value)
		if len(vals) < 2 {
			return "", false
		}
		expr := fmt.Sprintf("(%s >= %s and %s <= %s)", field, operand(vals[0]), field, operand(vals[1]))
		if r.Operator == "notBetween" {
			expr = "!" + expr
		}
		return expr, true

	default:
		return "", false
	}
}

func (w *walker) spelValue(v any) string {
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
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", t), "'", "''") + "'"
	}
}
