// formatquery/sql.go
package formatquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/querykit/querytree"
)

/*
 * SQL family: plain WHERE-clause text, anonymous (?) parameterization, and
 * named (:field_n) parameterization. One fragment function covers all three;
 * only the value rendering differs per mode.
 *
 * Field-to-field comparisons render the right-hand side as a (quoted) column
 * reference; the LIKE family composes patterns with || concatenation since
 * SQL has no literal-side wildcard injection for column operands.
 */

type sqlMode int

const (
	sqlLiteralMode sqlMode = iota
	sqlAnonMode
	sqlNamedMode
)

// SQLFallbackExpression is the tautological substitute for empty or invalid
// groups in the SQL family.
const SQLFallbackExpression = "(1 = 1)"

// SQL renders q as a WHERE-clause expression with inline literals.
func SQL(q *querytree.RuleGroup, o *Options) string {
	w := newWalker(q, o)
	if q == nil {
		return sqlFallback(w.o)
	}
	return w.formatGroupString(q, true, sqlDialect(w, sqlLiteralMode))
}

// Parameterized renders q with ? placeholders and returns the positional
// bind values.
func Parameterized(q *querytree.RuleGroup, o *Options) (string, []any) {
	w := newWalker(q, o)
	if q == nil {
		return sqlFallback(w.o), nil
	}
	sql := w.formatGroupString(q, true, sqlDialect(w, sqlAnonMode))
	return sql, w.params
}

// ParameterizedNamed renders q with named placeholders (prefix + field_n)
// and returns the bind map. ParamsKeepPrefix controls whether map keys keep
// the prefix.
func ParameterizedNamed(q *querytree.RuleGroup, o *Options) (string, map[string]any) {
	w := newWalker(q, o)
	if q == nil {
		return sqlFallback(w.o), w.named
	}
	sql := w.formatGroupString(q, true, sqlDialect(w, sqlNamedMode))
	return sql, w.named
}

func sqlFallback(o *Options) string {
	if o.FallbackExpression != "" {
		return o.FallbackExpression
	}
	return SQLFallbackExpression
}

func sqlDialect(w *walker, mode sqlMode) *stringDialect {
	return &stringDialect{
		rule: func(w *walker, r *querytree.Rule) (string, bool) {
			return w.sqlRule(r, mode)
		},
		join:     func(comb string) string { return " " + defaultComb(comb) + " " },
		negate:   func(body string) string { return "NOT (" + body + ")" },
		fallback: sqlFallback,
	}
}

// sqlRule renders one comparison. Unsupported operators and empty operand
// lists signal omission rather than emitting malformed SQL.
func (w *walker) sqlRule(r *querytree.Rule, mode sqlMode) (string, bool) {
	field := w.quoteField(r.Field)
	fieldRef := r.ValueSource == querytree.ValueSourceField

	switch r.Operator {
	case "null":
		return field + " is null", true
	case "notNull":
		return field + " is not null", true

	case "=", "!=", "<", ">", "<=", ">=":
		var rhs string
		if fieldRef {
			rhs = w.quoteField(valueText(r.Value))
		} else {
			rhs = w.sqlOperand(r, r.Value, mode)
		}
		return field + " " + r.Operator + " " + rhs, true

	case "in", "notIn":
		vals := valueList(r.Value)
		if len(vals) == 0 {
			return "", false
		}
		rendered := make([]string, 0, len(vals))
		for _, v := range vals {
			if fieldRef {
				rendered = append(rendered, w.quoteField(valueText(v)))
			} else {
				rendered = append(rendered, w.sqlOperand(r, v, mode))
			}
		}
		kw := "in"
		if r.Operator == "notIn" {
			kw = "not in"
		}
		return fmt.Sprintf("%s %s (%s)", field, kw, strings.Join(rendered, ", ")), true

	case "between", "notBetween":
		vals := valueList(r.Value)
		if len(vals) < 2 {
			return "", false
		}
		var lo, hi string
		if fieldRef {
			lo, hi = w.quoteField(valueText(vals[0])), w.quoteField(valueText(vals[1]))
		} else {
			lo, hi = w.sqlOperand(r, vals[0], mode), w.sqlOperand(r, vals[1], mode)
		}
		kw := "between"
		if r.Operator == "notBetween" {
			kw = "not between"
		}
		return fmt.Sprintf("%s %s %s and %s", field, kw, lo, hi), true

	case "contains", "beginsWith", "endsWith",
		"doesNotContain", "doesNotBeginWith", "doesNotEndWith":
		neg := ""
		base := r.Operator
		if strings.HasPrefix(r.Operator, "doesNot") {
			neg = "not "
			switch r.Operator {
			case "doesNotContain":
				base = "contains"
			case "doesNotBeginWith":
				base = "beginsWith"
			case "doesNotEndWith":
				base = "endsWith"
			}
		}
		operand, ok := w.sqlLikeOperand(r, base, mode, fieldRef)
		if !ok {
			return "", false
		}
		return field + " " + neg + "like " + operand, true

	default:
		return "", false
	}
}

// sqlLikeOperand builds the LIKE pattern operand. Literal values embed the
// wildcards in the pattern (and in the bind value for parameterized modes);
// field references concatenate wildcards around the column.
func (w *walker) sqlLikeOperand(r *querytree.Rule, base string, mode sqlMode, fieldRef bool) (string, bool) {
	if fieldRef {
		col := w.quoteField(valueText(r.Value))
		switch base {
		case "contains":
			return "'%' || " + col + " || '%'", true
		case "beginsWith":
			return col + " || '%'", true
		default:
			return "'%' || " + col, true
		}
	}
	text := valueText(r.Value)
	var pattern string
	switch base {
	case "contains":
		pattern = "%" + text + "%"
	case "beginsWith":
		pattern = text + "%"
	default:
		pattern = "%" + text
	}
	switch mode {
	case sqlLiteralMode:
		return "'" + escapeSingleQuotes(pattern) + "'", true
	case sqlAnonMode:
		w.params = append(w.params, pattern)
		return "?", true
	default:
		return w.namedPlaceholder(r.Field, pattern), true
	}
}

// sqlOperand renders one right-hand-side value per mode.
func (w *walker) sqlOperand(r *querytree.Rule, v any, mode sqlMode) string {
	switch mode {
	case sqlAnonMode:
		w.params = append(w.params, w.coerceNumber(v))
		return "?"
	case sqlNamedMode:
		return w.namedPlaceholder(r.Field, w.coerceNumber(v))
	default:
		if w.o.ValueProcessor != nil {
			return w.o.ValueProcessor(r.Field, r.Operator, v, r.ValueSource)
		}
		return w.sqlLiteral(v)
	}
}

// sqlLiteral renders an inline SQL literal with single-quote doubling.
func (w *walker) sqlLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		if w.o.ParseNumbers && isNumericString(t) {
			return strings.TrimSpace(t)
		}
		return "'" + escapeSingleQuotes(t) + "'"
	default:
		return "'" + escapeSingleQuotes(fmt.Sprintf("%v", t)) + "'"
	}
}

// namedPlaceholder registers a bind value under field_n and returns the
// placeholder text.
func (w *walker) namedPlaceholder(field string, v any) string {
	prefix := w.o.ParamPrefix
	if prefix == "" {
		prefix = ":"
	}
	base := sanitizeParamName(field)
	w.fieldCounts[base]++
	name := fmt.Sprintf("%s_%d", base, w.fieldCounts[base])
	key := name
	if w.o.ParamsKeepPrefix {
		key = prefix + name
	}
	w.named[key] = v
	return prefix + name
}

// sanitizeParamName keeps parameter names driver-safe.
func sanitizeParamName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "p"
	}
	return b.String()
}
