// parsesql/parsesql.go

/*
 * Package parsesql turns a SQL WHERE clause (optionally a full SELECT, in
 * which case everything up to WHERE is skipped) back into a canonical rule
 * tree. LIKE predicates are classified by wildcard placement into
 * contains / beginsWith / endsWith, including the concatenation form
 * '%' || otherField || '%' which yields a field-valued rule. Bound
 * parameters are substituted at parse time.
 */
package parsesql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/querykit/querytree"
)

// Options controls parsing and lowering. All fields are optional.
type Options struct {
	// Fields restricts the output to rules over known fields; predicates on
	// unknown fields are dropped rather than failing the parse.
	Fields []querytree.Field

	// GetValueSources reports the value sources a field/operator pair may
	// use. Field-to-field predicates are dropped when "field" is absent.
	GetValueSources func(field, operator string) []string

	// ListsAsArrays stores in/between values as []any instead of a
	// comma-joined string.
	ListsAsArrays bool

	// IndependentCombinators converts the result to the independent
	// combinator form.
	IndependentCombinators bool

	// ParamPrefix is the named-parameter sigil, ":" by default.
	ParamPrefix string

	// Params binds positional (?) parameters in order.
	Params []any

	// ParamsMap binds named parameters by name, without the prefix.
	ParamsMap map[string]any
}

// Parse parses a WHERE-clause expression into a rule group.
func Parse(src string, opts *Options) (*querytree.RuleGroup, error) {
	if opts == nil {
		opts = &Options{}
	}

	toks, err := tokenize(src, opts.ParamPrefix)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, params: opts.Params, named: opts.ParamsMap}
	if p.keyword("select") {
		for p.peek().kind != tkEOF {
			if p.peek().kind == tkKeyword && p.peek().text == "where" {
				break
			}
			p.next()
		}
	}
	p.keyword("where")

	if p.peek().kind == tkEOF {
		return emptyGroup(opts), nil
	}

	tree, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkEOF {
		return nil, &ParseError{Pos: p.peek().pos, Msg: "unexpected trailing input"}
	}

	l := &lowerer{opts: opts, fields: querytree.FieldMap(opts.Fields)}
	root := l.root(tree)
	if opts.IndependentCombinators {
		root = querytree.ConvertQuery(root)
	}
	return root, nil
}

func emptyGroup(opts *Options) *querytree.RuleGroup {
	g := &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: querytree.DefaultCombinator,
		Rules:      []querytree.Node{},
	}
	if opts.IndependentCombinators {
		g.Combinator = ""
	}
	return g
}

type lowerer struct {
	opts   *Options
	fields map[string]querytree.Field
}

// root lowers the expression and guarantees a group at the top even when the
// whole clause is a single predicate.
func (l *lowerer) root(e expr) *querytree.RuleGroup {
	n, ok := l.lower(e)
	if !ok {
		return emptyGroup(&Options{})
	}
	if g, isGroup := n.(*querytree.RuleGroup); isGroup {
		return g
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: querytree.DefaultCombinator,
		Rules:      []querytree.Node{n},
	}
}

func (l *lowerer) lower(e expr) (querytree.Node, bool) {
	switch t := e.(type) {
	case *logicExpr:
		return l.lowerLogic(t)
	case *notExpr:
		return l.lowerNot(t)
	case *compareExpr:
		return l.lowerCompare(t)
	case *inExpr:
		return l.lowerIn(t)
	case *betweenExpr:
		return l.lowerBetween(t)
	case *likeExpr:
		return l.lowerLike(t)
	case *nullExpr:
		return l.lowerNull(t)
	default:
		return nil, false
	}
}

// lowerLogic flattens a chain of the same combinator into one group, so
// a = 1 AND b = 2 AND c = 3 yields three siblings rather than nested pairs.
func (l *lowerer) lowerLogic(e *logicExpr) (querytree.Node, bool) {
	var children []querytree.Node
	var collect func(x expr)
	collect = func(x expr) {
		if sub, ok := x.(*logicExpr); ok && sub.op == e.op {
			collect(sub.left)
			collect(sub.right)
			return
		}
		if n, ok := l.lower(x); ok {
			children = append(children, n)
		}
	}
	collect(e)

	if len(children) == 0 {
		return nil, false
	}
	if len(children) == 1 {
		return children[0], true
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: e.op,
		Rules:      children,
	}, true
}

func (l *lowerer) lowerNot(e *notExpr) (querytree.Node, bool) {
	inner, ok := l.lower(e.inner)
	if !ok {
		return nil, false
	}
	if g, isGroup := inner.(*querytree.RuleGroup); isGroup {
		g.Not = !g.Not
		return g, true
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: querytree.DefaultCombinator,
		Not:        true,
		Rules:      []querytree.Node{inner},
	}, true
}

func (l *lowerer) lowerCompare(e *compareExpr) (querytree.Node, bool) {
	left, right, op := e.left, e.right, e.op
	if !left.isField && right.isField {
		left, right = right, left
		op = flipOperator(op)
	}
	if !left.isField {
		return nil, false
	}

	if right.isField {
		return l.fieldRule(left.field, op, right.field)
	}
	if right.val == nil {
		switch op {
		case "=":
			return l.rule(left.field, "null", nil)
		case "!=":
			return l.rule(left.field, "notNull", nil)
		}
		return nil, false
	}
	return l.rule(left.field, op, right.val)
}

func (l *lowerer) lowerIn(e *inExpr) (querytree.Node, bool) {
	if !e.target.isField {
		return nil, false
	}
	vals := make([]any, 0, len(e.vals))
	for _, v := range e.vals {
		if v.isField {
			return nil, false
		}
		vals = append(vals, v.val)
	}
	op := "in"
	if e.negate {
		op = "notIn"
	}
	return l.rule(e.target.field, op, l.listValue(vals))
}

func (l *lowerer) lowerBetween(e *betweenExpr) (querytree.Node, bool) {
	if !e.target.isField || e.lo.isField || e.hi.isField {
		return nil, false
	}
	op := "between"
	if e.negate {
		op = "notBetween"
	}
	return l.rule(e.target.field, op, l.listValue([]any{e.lo.val, e.hi.val}))
}

func (l *lowerer) lowerNull(e *nullExpr) (querytree.Node, bool) {
	if !e.target.isField {
		return nil, false
	}
	op := "null"
	if e.negate {
		op = "notNull"
	}
	return l.rule(e.target.field, op, nil)
}

func (l *lowerer) lowerLike(e *likeExpr) (querytree.Node, bool) {
	if !e.target.isField {
		return nil, false
	}

	if len(e.pattern.concat) > 0 {
		op, ref, ok := classifyConcatPattern(e.pattern.concat)
		if !ok {
			return nil, false
		}
		if e.negate {
			op = negateWildcardOp(op)
		}
		return l.fieldRule(e.target.field, op, ref)
	}

	if e.pattern.isField {
		op := "contains"
		if e.negate {
			op = "doesNotContain"
		}
		return l.fieldRule(e.target.field, op, e.pattern.field)
	}

	text, ok := e.pattern.val.(string)
	if !ok {
		return nil, false
	}
	op, value := classifyLiteralPattern(text)
	if e.negate && op != "=" {
		op = negateWildcardOp(op)
	}
	if e.negate && op == "=" {
		op = "!="
	}
	return l.rule(e.target.field, op, value)
}

// classifyLiteralPattern maps wildcard placement to an operator:
// %v% contains, v% beginsWith, %v endsWith, plain v exact match.
func classifyLiteralPattern(pattern string) (string, string) {
	leading := strings.HasPrefix(pattern, "%")
	trailing := strings.HasSuffix(pattern, "%")
	trimmed := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	switch {
	case leading && trailing:
		return "contains", trimmed
	case trailing:
		return "beginsWith", trimmed
	case leading:
		return "endsWith", trimmed
	default:
		return "=", pattern
	}
}

// classifyConcatPattern recognizes the three concatenation shapes over a
// single field reference: '%'||f||'%', f||'%', and '%'||f.
func classifyConcatPattern(parts []operand) (string, string, bool) {
	isPct := func(o operand) bool {
		s, ok := o.val.(string)
		return !o.isField && ok && s == "%"
	}
	switch {
	case len(parts) == 3 && isPct(parts[0]) && parts[1].isField && isPct(parts[2]):
		return "contains", parts[1].field, true
	case len(parts) == 2 && parts[0].isField && isPct(parts[1]):
		return "beginsWith", parts[0].field, true
	case len(parts) == 2 && isPct(parts[0]) && parts[1].isField:
		return "endsWith", parts[1].field, true
	default:
		return "", "", false
	}
}

func negateWildcardOp(op string) string {
	switch op {
	case "contains":
		return "doesNotContain"
	case "beginsWith":
		return "doesNotBeginWith"
	case "endsWith":
		return "doesNotEndWith"
	default:
		return op
	}
}

func flipOperator(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	default:
		return op
	}
}

// rule builds a value-sourced rule, dropping it when a field catalog is
// present and does not list the field.
func (l *lowerer) rule(field, op string, value any) (querytree.Node, bool) {
	if len(l.fields) > 0 {
		if _, ok := l.fields[field]; !ok {
			return nil, false
		}
	}
	return &querytree.Rule{
		ID:       querytree.NewNodeID(),
		Field:    field,
		Operator: op,
		Value:    value,
	}, true
}

// fieldRule builds a field-sourced rule (the value names another field).
func (l *lowerer) fieldRule(field, op, ref string) (querytree.Node, bool) {
	if len(l.fields) > 0 {
		if _, ok := l.fields[field]; !ok {
			return nil, false
		}
		if _, ok := l.fields[ref]; !ok {
			return nil, false
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
			return nil, false
		}
	}
	return &querytree.Rule{
		ID:          querytree.NewNodeID(),
		Field:       field,
		Operator:    op,
		Value:       ref,
		ValueSource: querytree.ValueSourceField,
	}, true
}

// listValue renders multi-value operands: a comma-joined string by default,
// a real slice with ListsAsArrays.
func (l *lowerer) listValue(vals []any) any {
	if l.opts.ListsAsArrays {
		return vals
	}
	texts := make([]string, 0, len(vals))
	for _, v := range vals {
		texts = append(texts, literalText(v))
	}
	return strings.Join(texts, ", ")
}

func literalText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
