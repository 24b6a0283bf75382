// parsemongodb/parsemongodb.go

/*
 * Package parsemongodb turns a MongoDB query document back into a canonical
 * rule tree. $and/$or arrays become groups, $nor becomes a negated group,
 * and a document with several field keys is an implicit AND. Per-field
 * operator documents cover $eq/$ne/$lt/$lte/$gt/$gte, anchored $regex,
 * $in/$nin, $exists, $not, and the $gte+$lte pair which fuses to between.
 * $expr comparisons between two field paths yield field-valued rules.
 */
package parsemongodb

import (
	"encoding/json"
	"fmt"
	"sort"
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

// ParseBytes decodes a raw query document and parses it into a rule group.
func ParseBytes(data []byte, opts *Options) (*querytree.RuleGroup, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mongodb: %w", err)
	}
	return Parse(doc, opts)
}

// Parse parses a decoded query document into a rule group.
func Parse(doc map[string]any, opts *Options) (*querytree.RuleGroup, error) {
	if opts == nil {
		opts = &Options{}
	}

	l := &lowerer{opts: opts, fields: querytree.FieldMap(opts.Fields)}
	children, err := l.lowerDoc(doc)
	if err != nil {
		return nil, err
	}

	var root *querytree.RuleGroup
	if len(children) == 1 {
		if g, ok := children[0].(*querytree.RuleGroup); ok {
			root = g
		}
	}
	if root == nil {
		root = &querytree.RuleGroup{
			ID:         querytree.NewNodeID(),
			Combinator: querytree.DefaultCombinator,
			Rules:      children,
		}
	}
	if root.Rules == nil {
		root.Rules = []querytree.Node{}
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

// lowerDoc lowers every key of a query document. Multiple keys are implicit
// AND siblings. Keys are visited in sorted order so output is deterministic.
func (l *lowerer) lowerDoc(doc map[string]any) ([]querytree.Node, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var nodes []querytree.Node
	for _, k := range keys {
		v := doc[k]
		var (
			n   querytree.Node
			err error
		)
		switch k {
		case "$and", "$or":
			n, err = l.lowerLogic(strings.TrimPrefix(k, "$"), v, false)
		case "$nor":
			n, err = l.lowerLogic("or", v, true)
		case "$not":
			n, err = l.lowerNotDoc(v)
		case "$expr":
			n, err = l.lowerExpr(v)
		default:
			if strings.HasPrefix(k, "$") {
				return nil, fmt.Errorf("parse mongodb: unsupported operator %q", k)
			}
			n, err = l.lowerField(k, v)
		}
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (l *lowerer) lowerLogic(comb string, arg any, negate bool) (querytree.Node, error) {
	items, ok := arg.([]any)
	if !ok {
		return nil, fmt.Errorf("parse mongodb: logical operator expects an array")
	}
	children := make([]querytree.Node, 0, len(items))
	for _, item := range items {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse mongodb: logical operand must be a document")
		}
		ns, err := l.lowerDoc(sub)
		if err != nil {
			return nil, err
		}
		switch len(ns) {
		case 0:
		case 1:
			children = append(children, ns[0])
		default:
			children = append(children, &querytree.RuleGroup{
				ID:         querytree.NewNodeID(),
				Combinator: "and",
				Rules:      ns,
			})
		}
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: comb,
		Not:        negate,
		Rules:      children,
	}, nil
}

// lowerNotDoc handles a top-level $not wrapping a document.
func (l *lowerer) lowerNotDoc(arg any) (querytree.Node, error) {
	sub, ok := arg.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse mongodb: $not expects a document")
	}
	ns, err := l.lowerDoc(sub)
	if err != nil {
		return nil, err
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: "and",
		Not:        true,
		Rules:      ns,
	}, nil
}

var exprOps = map[string]string{
	"$eq": "=", "$ne": "!=", "$lt": "<", "$lte": "<=", "$gt": ">", "$gte": ">=",
}

// lowerExpr handles {"$expr": {op: ["$a", "$b"]}} field comparisons.
func (l *lowerer) lowerExpr(arg any) (querytree.Node, error) {
	m, ok := arg.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("parse mongodb: $expr expects a single-operator document")
	}
	for op, operands := range m {
		ruleOp, known := exprOps[op]
		if !known {
			return nil, fmt.Errorf("parse mongodb: unsupported $expr operator %q", op)
		}
		pair, ok := operands.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("parse mongodb: $expr %q expects 2 operands", op)
		}
		left, lok := fieldPath(pair[0])
		right, rok := fieldPath(pair[1])
		if !lok || !rok {
			return nil, fmt.Errorf("parse mongodb: $expr operands must be field paths")
		}
		return l.fieldRule(left, ruleOp, right), nil
	}
	return nil, nil
}

// fieldPath unwraps a "$name" reference.
func fieldPath(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return "", false
	}
	return s[1:], true
}

// lowerField handles one fieldName: condition entry.
func (l *lowerer) lowerField(field string, cond any) (querytree.Node, error) {
	m, isDoc := cond.(map[string]any)
	if !isDoc || len(m) == 0 || !hasOperatorKey(m) {
		// Bare value is equality; null matches the null operator.
		if cond == nil {
			return l.rule(field, "null", nil), nil
		}
		return l.rule(field, "=", cond), nil
	}

	// $gte + $lte together is the between range form.
	if lo, hasLo := m["$gte"]; hasLo {
		if hi, hasHi := m["$lte"]; hasHi && len(m) == 2 {
			return l.rule(field, "between", l.listValue([]any{lo, hi})), nil
		}
	}

	if len(m) != 1 {
		// Several operators on one field are implicit AND.
		var nodes []querytree.Node
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, op := range keys {
			n, err := l.lowerFieldOp(field, op, m[op])
			if err != nil {
				return nil, err
			}
			if n != nil {
				nodes = append(nodes, n)
			}
		}
		if len(nodes) == 1 {
			return nodes[0], nil
		}
		return &querytree.RuleGroup{
			ID:         querytree.NewNodeID(),
			Combinator: "and",
			Rules:      nodes,
		}, nil
	}

	for op, v := range m {
		return l.lowerFieldOp(field, op, v)
	}
	return nil, nil
}

func hasOperatorKey(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func (l *lowerer) lowerFieldOp(field, op string, v any) (querytree.Node, error) {
	switch op {
	case "$eq":
		if v == nil {
			return l.rule(field, "null", nil), nil
		}
		return l.rule(field, "=", v), nil
	case "$ne":
		if v == nil {
			return l.rule(field, "notNull", nil), nil
		}
		return l.rule(field, "!=", v), nil
	case "$lt", "$lte", "$gt", "$gte":
		return l.rule(field, exprOps[op], v), nil

	case "$exists":
		b, _ := v.(bool)
		if b {
			return l.rule(field, "notNull", nil), nil
		}
		return l.rule(field, "null", nil), nil

	case "$regex":
		pattern, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("parse mongodb: $regex expects a string")
		}
		ruleOp, text := classifyRegex(pattern)
		return l.rule(field, ruleOp, text), nil

	case "$in", "$nin":
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("parse mongodb: %s expects an array", op)
		}
		ruleOp := "in"
		if op == "$nin" {
			ruleOp = "notIn"
		}
		return l.rule(field, ruleOp, l.listValue(list)), nil

	case "$not":
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse mongodb: $not expects a document")
		}
		n, err := l.lowerField(field, inner)
		if err != nil {
			return nil, err
		}
		r, isRule := n.(*querytree.Rule)
		if !isRule {
			return n, nil
		}
		if negated, ok := negateOperator(r.Operator); ok {
			r.Operator = negated
			return r, nil
		}
		return &querytree.RuleGroup{
			ID:         querytree.NewNodeID(),
			Combinator: "and",
			Not:        true,
			Rules:      []querytree.Node{r},
		}, nil

	default:
		return nil, fmt.Errorf("parse mongodb: unsupported operator %q", op)
	}
}

// classifyRegex maps anchor placement to a wildcard operator: ^v beginsWith,
// v$ endsWith, bare v contains.
func classifyRegex(pattern string) (string, string) {
	switch {
	case strings.HasPrefix(pattern, "^"):
		return "beginsWith", pattern[1:]
	case strings.HasSuffix(pattern, "$"):
		return "endsWith", pattern[:len(pattern)-1]
	default:
		return "contains", pattern
	}
}

func negateOperator(op string) (string, bool) {
	switch op {
	case "=":
		return "!=", true
	case "!=":
		return "=", true
	case "contains":
		return "doesNotContain", true
	case "beginsWith":
		return "doesNotBeginWith", true
	case "endsWith":
		return "doesNotEndWith", true
	case "in":
		return "notIn", true
	case "notIn":
		return "in", true
	case "between":
		return "notBetween", true
	case "null":
		return "notNull", true
	case "notNull":
		return "null", true
	default:
		return "", false
	}
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
