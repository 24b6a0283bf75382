// formatquery/value.go
package formatquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

/*
 * Value rendering helpers shared across formats.
 *
 * Multi-value operators (in, between) accept either real sequences or
 * delimited strings; valueList normalizes both to a slice. Numeric coercion
 * for ParseNumbers uses a strict literal test so "1.2.3" stays a string.
 */

var numericLiteral = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// isNumericString reports whether s is a complete numeric literal.
func isNumericString(s string) bool {
	return numericLiteral.MatchString(strings.TrimSpace(s))
}

// coerceNumber converts numeric-looking strings to float64 when ParseNumbers
// is on; everything else passes through.
func (w *walker) coerceNumber(v any) any {
	if !w.o.ParseNumbers {
		return v
	}
	s, ok := v.(string)
	if !ok || !isNumericString(s) {
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return v
	}
	return f
}

// valueList normalizes a multi-value operand: sequences pass through,
// strings split on commas with surrounding whitespace trimmed.
func valueList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	default:
		return []any{v}
	}
}

// valueText renders a value as its bare text, for field references and
// pattern composition.
func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// quoteField wraps a field name with the configured delimiters.
func (w *walker) quoteField(name string) string {
	q := w.o.QuoteFieldNamesWith
	switch len(q) {
	case 0:
		return name
	case 1:
		return q[0] + name + q[0]
	default:
		return q[0] + name + q[1]
	}
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func escapeDoubleQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
