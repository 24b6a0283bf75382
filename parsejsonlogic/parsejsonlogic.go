// parsejsonlogic/parsejsonlogic.go

/*
 * Package parsejsonlogic turns a JsonLogic value back into a canonical rule
 * tree. The input may be raw JSON bytes or an already-decoded value. Only
 * the subset the export produces is recognized: and/or groups, ! negation,
 * the comparison operators over {"var": ...} references, in (both the
 * membership and substring senses, disambiguated by operand order), the
 * startsWith/endsWith extensions, and the three-operand <= / < range forms.
 */
package parsejsonlogic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solatis/querykit/querytree"
)

// Options controls parsing and lowering. All fields are optional.
type Options struct {
	// Fields restricts the output to rules over known fields; clauses on
	// unknown fields are dropped rather than failing the parse.
	Fields []querytree.Field

	// GetValueSources reports the value sources a field/operator pair may
	// use. Field-to-field clauses are dropped when "field" is absent.
	GetValueSources func(field, operator string) []string

	// ListsAsArrays stores in/between values as []any instead of a
	// comma-joined string.
	ListsAsArrays bool

	// IndependentCombinators converts the result to the independent
	// combinator form.
	IndependentCombinators bool
}

// ParseBytes decodes raw JsonLogic JSON and parses it into a rule group.
func ParseBytes(data []byte, opts *Options) (*querytree.RuleGroup, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse jsonlogic: %w", err)
	}
	return Parse(v, opts)
}

// Parse parses a decoded JsonLogic value into a rule group.
func Parse(logic any, opts *Options) (*querytree.RuleGroup, error) {
	if opts == nil {
		opts = &Options{}
	}

	l := &lowerer{opts: opts, fields: querytree.FieldMap(opts.Fields)}
	n, err := l.lower(logic, false)
	if err != nil {
		return nil, err
	}

	var root *querytree.RuleGroup
	switch t := n.(type) {
	case *querytree.RuleGroup:
		root = t
	case nil:
		root = &querytree.RuleGroup{
			ID:         querytree.NewNodeID(),
			Combinator: querytree.DefaultCombinator,
			Rules:      []querytree.Node{},
		}
	default:
		root = &querytree.RuleGroup{
			ID:         querytree.NewNodeID(),
			Combinator: querytree.DefaultCombinator,
			Rules:      []querytree.Node{n},
		}
	}
	if opts.IndependentCombinators {
		root = querytree.ConvertQuery(root)
	}
	return root, nil
}

type lowerer struct {
	opts   *Options
	fields map[string]querytree.Field
}

// lower maps one JsonLogic clause to a node. A nil node with a nil error
// means the clause was recognized but dropped by field validation.
func (l *lowerer) lower(logic any, negate bool) (querytree.Node, error) {
	m, ok := logic.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("parse jsonlogic: expected a single-key object, got %T", logic)
	}

	var op string
	var arg any
	for k, v := range m {
		op, arg = k, v
	}

	switch op {
	case "and", "or":
		return l.lowerGroup(op, arg, negate)
	case "!":
		return l.lower(arg, !negate)
	case "==", "!=", "<", "<=", ">", ">=", "===", "!==":
		return l.lowerCompare(op, arg, negate)
	case "in":
		return l.lowerIn(arg, negate)
	case "startsWith", "endsWith":
		return l.lowerAffix(op, arg, negate)
	default:
		return nil, fmt.Errorf("parse jsonlogic: unsupported operator %q", op)
	}
}

func (l *lowerer) lowerGroup(comb string, arg any, negate bool) (querytree.Node, error) {
	items, ok := arg.([]any)
	if !ok {
		return nil, fmt.Errorf("parse jsonlogic: %q expects an array", comb)
	}
	children := make([]querytree.Node, 0, len(items))
	for _, item := range items {
		n, err := l.lower(item, false)
		if err != nil {
			return nil, err
		}
		if n != nil {
			children = append(children, n)
		}
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: comb,
		Not:        negate,
		Rules:      children,
	}, nil
}

var jsonLogicNegated = map[string]string{
	"=": "!=", "!=": "=", "<": ">=", "<=": ">", ">": "<=", ">=": "<",
}

func (l *lowerer) lowerCompare(op string, arg any, negate bool) (querytree.Node, error) {
	items, ok := arg.([]any)
	if !ok || len(items) < 2 || len(items) > 3 {
		return nil, fmt.Errorf("parse jsonlogic: %q expects 2 or 3 operands", op)
	}

	// Three-operand <= and < are the range forms: lo <= var <= hi.
	if len(items) == 3 {
		if op != "<=" && op != "<" {
			return nil, fmt.Errorf("parse jsonlogic: %q does not take 3 operands", op)
		}
		field, ok := varName(items[1])
		if !ok {
			return nil, fmt.Errorf("parse jsonlogic: range form expects a var in the middle")
		}
		ruleOp := "between"
		if negate {
			ruleOp = "notBetween"
		}
		return l.rule(field, ruleOp, l.listValue([]any{items[0], items[2]})), nil
	}

	var ruleOp string
	switch op {
	case "==", "===":
		ruleOp = "="
	case "!=", "!==":
		ruleOp = "!="
	default:
		ruleOp = op
	}
	if negate {
		ruleOp = jsonLogicNegated[ruleOp]
	}

	field, ok := varName(items[0])
	if !ok {
		return nil, fmt.Errorf("parse jsonlogic: %q expects a var on the left", op)
	}

	if ref, isVar := varName(items[1]); isVar {
		return l.fieldRule(field, ruleOp, ref), nil
	}
	if items[1] == nil {
		switch ruleOp {
		case "=":
			return l.rule(field, "null", nil), nil
		case "!=":
			return l.rule(field, "notNull", nil), nil
		}
		return nil, fmt.Errorf("parse jsonlogic: %q against null is not a rule", ruleOp)
	}
	return l.rule(field, ruleOp, items[1]), nil
}

// lowerIn disambiguates the two senses of "in": [value, var] is a substring
// test (contains), [var, list] is list membership.
func (l *lowerer) lowerIn(arg any, negate bool) (querytree.Node, error) {
	items, ok := arg.([]any)
	if !ok || len(items) != 2 {
		return nil, fmt.Errorf("parse jsonlogic: \"in\" expects 2 operands")
	}

	if field, isVar := varName(items[1]); isVar {
		op := "contains"
		if negate {
			op = "doesNotContain"
		}
		if ref, refVar := varName(items[0]); refVar {
			return l.fieldRule(field, op, ref), nil
		}
		return l.rule(field, op, items[0]), nil
	}

	field, ok := varName(items[0])
	if !ok {
		return nil, fmt.Errorf("parse jsonlogic: \"in\" expects a var operand")
	}
	list, ok := items[1].([]any)
	if !ok {
		return nil, fmt.Errorf("parse jsonlogic: membership \"in\" expects an array")
	}
	vals := make([]any, 0, len(list))
	for _, el := range list {
		if ref, isVar := varName(el); isVar {
			vals = append(vals, ref)
			continue
		}
		vals = append(vals, el)
	}
	op := "in"
	if negate {
		op = "notIn"
	}
	return l.rule(field, op, l.listValue(vals)), nil
}

func (l *lowerer) lowerAffix(op string, arg any, negate bool) (querytree.Node, error) {
	items, ok := arg.([]any)
	if !ok || len(items) != 2 {
		return nil, fmt.Errorf("parse jsonlogic: %q expects 2 operands", op)
	}
	field, ok := varName(items[0])
	if !ok {
		return nil, fmt.Errorf("parse jsonlogic: %q expects a var on the left", op)
	}
	ruleOp := "beginsWith"
	if op == "endsWith" {
		ruleOp = "endsWith"
	}
	if negate {
		if ruleOp == "beginsWith" {
			ruleOp = "doesNotBeginWith"
		} else {
			ruleOp = "doesNotEndWith"
		}
	}
	if ref, isVar := varName(items[1]); isVar {
		return l.fieldRule(field, ruleOp, ref), nil
	}
	return l.rule(field, ruleOp, items[1]), nil
}

// varName unwraps {"var": "name"}.
func varName(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	name, ok := m["var"].(string)
	return name, ok
}

func (l *lowerer) rule(field, op string, value any) querytree.Node {
	if len(l.fields) > 0 {
		if _, ok := l.fields[field]; !ok {
			return nil
		}
	}
	return &querytree.Rule{
		ID:       querytree.NewNodeID(),
		Field:    field,
		Operator: op,
		Value:    value,
	}
}

func (l *lowerer) fieldRule(field, op, ref string) querytree.Node {
	if len(l.fields) > 0 {
		if _, ok := l.fields[field]; !ok {
			return nil
		}
		if _, ok := l.fields[ref]; !ok {
			return nil
		}
	}
	if l.opts.GetValueSources != nil {
		allowed := l.opts.GetValueSources(field, op)
		found := false
		for _, s := range allowed {
			if s == querytree.ValueSourceField {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return &querytree.Rule{
		ID:          querytree.NewNodeID(),
		Field:       field,
		Operator:    op,
		Value:       ref,
		ValueSource: querytree.ValueSourceField,
	}
}

func (l *lowerer) listValue(vals []any) any {
	if l.opts.ListsAsArrays {
		return vals
	}
	texts := make([]string, 0, len(vals))
	for _, v := range vals {
		texts = append(texts, fmt.Sprintf("%v", v))
	}
	return strings.Join(texts, ", ")
}
