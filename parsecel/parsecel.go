// parsecel/parsecel.go

/*
 * Package parsecel turns a CEL expression back into a canonical rule tree.
 * The expression is parsed (not type checked) with cel-go, and the parsed
 * protobuf AST is walked directly: logical calls become groups, comparison
 * and membership calls become rules. Identifier-to-identifier comparisons
 * yield field-valued rules.
 */
package parsecel

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/operators"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

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
}

// Parse parses a CEL expression into a rule group.
func Parse(src string, opts *Options) (*querytree.RuleGroup, error) {
	if opts == nil {
		opts = &Options{}
	}

	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("parse cel: %w", err)
	}
	ast, iss := env.Parse(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("parse cel: %w", iss.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("parse cel: %w", err)
	}

	l := &lowerer{opts: opts, fields: querytree.FieldMap(opts.Fields)}
	root := l.root(parsed.GetExpr())
	if opts.IndependentCombinators {
		root = querytree.ConvertQuery(root)
	}
	return root, nil
}

type lowerer struct {
	opts   *Options
	fields map[string]querytree.Field
}

func (l *lowerer) root(e *exprpb.Expr) *querytree.RuleGroup {
	n, ok := l.lower(e, false)
	if !ok {
		return &querytree.RuleGroup{
			ID:         querytree.NewNodeID(),
			Combinator: querytree.DefaultCombinator,
			Rules:      []querytree.Node{},
		}
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

// lower maps one parsed expression to a node. negate is threaded down from
// enclosing !() calls so wildcard operators pick their doesNot form.
func (l *lowerer) lower(e *exprpb.Expr, negate bool) (querytree.Node, bool) {
	call := e.GetCallExpr()
	if call == nil {
		return nil, false
	}

	switch call.GetFunction() {
	case operators.LogicalAnd, operators.LogicalOr:
		return l.lowerLogic(e, call, negate)
	case operators.LogicalNot:
		args := call.GetArgs()
		if len(args) != 1 {
			return nil, false
		}
		return l.lower(args[0], !negate)
	case operators.Equals, operators.NotEquals,
		operators.Less, operators.LessEquals,
		operators.Greater, operators.GreaterEquals:
		return l.lowerCompare(call, negate)
	case operators.In, operators.OldIn:
		return l.lowerIn(call, negate)
	default:
		return l.lowerMemberCall(call, negate)
	}
}

// lowerLogic flattens same-combinator chains into a single group.
func (l *lowerer) lowerLogic(e *exprpb.Expr, call *exprpb.Expr_Call, negate bool) (querytree.Node, bool) {
	comb := "and"
	if call.GetFunction() == operators.LogicalOr {
		comb = "or"
	}

	var children []querytree.Node
	var collect func(x *exprpb.Expr)
	collect = func(x *exprpb.Expr) {
		if c := x.GetCallExpr(); c != nil && c.GetFunction() == call.GetFunction() {
			for _, arg := range c.GetArgs() {
				collect(arg)
			}
			return
		}
		if n, ok := l.lower(x, false); ok {
			children = append(children, n)
		}
	}
	collect(e)
	children = l.fuseRanges(comb, children)

	if len(children) == 0 {
		return nil, false
	}
	if len(children) == 1 && !negate {
		return children[0], true
	}
	return &querytree.RuleGroup{
		ID:         querytree.NewNodeID(),
		Combinator: comb,
		Not:        negate,
		Rules:      children,
	}, true
}

// fuseRanges rebuilds range rules from the pairwise form the CEL export
// emits: f >= lo && f <= hi becomes between, f < lo || f > hi becomes
// notBetween.
func (l *lowerer) fuseRanges(comb string, children []querytree.Node) []querytree.Node {
	loOp, hiOp, fused := ">=", "<=", "between"
	if comb == "or" {
		loOp, hiOp, fused = "<", ">", "notBetween"
	}

	out := make([]querytree.Node, 0, len(children))
	for i := 0; i < len(children); i++ {
		if i+1 < len(children) {
			lo, lok := children[i].(*querytree.Rule)
			hi, hok := children[i+1].(*querytree.Rule)
			if lok && hok &&
				lo.Field == hi.Field &&
				lo.ValueSource != querytree.ValueSourceField &&
				hi.ValueSource != querytree.ValueSourceField &&
				lo.Operator == loOp && hi.Operator == hiOp {
				out = append(out, &querytree.Rule{
					ID:       querytree.NewNodeID(),
					Field:    lo.Field,
					Operator: fused,
					Value:    l.listValue([]any{lo.Value, hi.Value}),
				})
				i++
				continue
			}
		}
		out = append(out, children[i])
	}
	return out
}

var celCompareOps = map[string]string{
	operators.Equals:        "=",
	operators.NotEquals:     "!=",
	operators.Less:          "<",
	operators.LessEquals:    "<=",
	operators.Greater:       ">",
	operators.GreaterEquals: ">=",
}

var celFlippedOps = map[string]string{
	"=": "=", "!=": "!=", "<": ">", "<=": ">=", ">": "<", ">=": "<=",
}

var celNegatedOps = map[string]string{
	"=": "!=", "!=": "=", "<": ">=", "<=": ">", ">": "<=", ">=": "<",
}

func (l *lowerer) lowerCompare(call *exprpb.Expr_Call, negate bool) (querytree.Node, bool) {
	args := call.GetArgs()
	if len(args) != 2 {
		return nil, false
	}
	op := celCompareOps[call.GetFunction()]
	if negate {
		op = celNegatedOps[op]
	}

	left, right := args[0], args[1]
	lf, lok := identName(left)
	rf, rok := identName(right)

	switch {
	case lok && rok:
		return l.fieldRule(lf, op, rf)
	case lok:
		v, isNull, ok := constValue(right)
		if !ok {
			return nil, false
		}
		if isNull {
			return l.nullRule(lf, op)
		}
		return l.rule(lf, op, v)
	case rok:
		v, isNull, ok := constValue(left)
		if !ok {
			return nil, false
		}
		flipped := celFlippedOps[op]
		if isNull {
			return l.nullRule(rf, flipped)
		}
		return l.rule(rf, flipped, v)
	default:
		return nil, false
	}
}

func (l *lowerer) nullRule(field, op string) (querytree.Node, bool) {
	switch op {
	case "=":
		return l.rule(field, "null", nil)
	case "!=":
		return l.rule(field, "notNull", nil)
	default:
		return nil, false
	}
}

// lowerIn handles `field in [a, b, c]`.
func (l *lowerer) lowerIn(call *exprpb.Expr_Call, negate bool) (querytree.Node, bool) {
	args := call.GetArgs()
	if len(args) != 2 {
		return nil, false
	}
	field, ok := identName(args[0])
	if !ok {
		return nil, false
	}
	list := args[1].GetListExpr()
	if list == nil {
		return nil, false
	}
	vals := make([]any, 0, len(list.GetElements()))
	for _, el := range list.GetElements() {
		v, isNull, ok := constValue(el)
		if !ok || isNull {
			return nil, false
		}
		vals = append(vals, v)
	}
	op := "in"
	if negate {
		op = "notIn"
	}
	return l.rule(field, op, l.listValue(vals))
}

var celMemberOps = map[string]string{
	"contains":   "contains",
	"startsWith": "beginsWith",
	"endsWith":   "endsWith",
}

var celMemberNegated = map[string]string{
	"contains":   "doesNotContain",
	"beginsWith": "doesNotBeginWith",
	"endsWith":   "doesNotEndWith",
}

// lowerMemberCall handles field.contains(v), field.startsWith(v), and
// field.endsWith(v) receiver calls.
func (l *lowerer) lowerMemberCall(call *exprpb.Expr_Call, negate bool) (querytree.Node, bool) {
	op, known := celMemberOps[call.GetFunction()]
	if !known || call.GetTarget() == nil || len(call.GetArgs()) != 1 {
		return nil, false
	}
	field, ok := identName(call.GetTarget())
	if !ok {
		return nil, false
	}
	if negate {
		op = celMemberNegated[op]
	}

	if ref, refOk := identName(call.GetArgs()[0]); refOk {
		return l.fieldRule(field, op, ref)
	}
	v, isNull, ok := constValue(call.GetArgs()[0])
	if !ok || isNull {
		return nil, false
	}
	return l.rule(field, op, v)
}

// identName resolves an identifier or a select chain (a.b.c) to its dotted
// name.
func identName(e *exprpb.Expr) (string, bool) {
	if id := e.GetIdentExpr(); id != nil {
		return id.GetName(), true
	}
	if sel := e.GetSelectExpr(); sel != nil && !sel.GetTestOnly() {
		base, ok := identName(sel.GetOperand())
		if !ok {
			return "", false
		}
		return base + "." + sel.GetField(), true
	}
	return "", false
}

// constValue extracts a literal. Integers widen to float64 so values round
// trip through the JSON interchange form unchanged.
func constValue(e *exprpb.Expr) (any, bool, bool) {
	c := e.GetConstExpr()
	if c == nil {
		return nil, false, false
	}
	switch c.GetConstantKind().(type) {
	case *exprpb.Constant_StringValue:
		return c.GetStringValue(), false, true
	case *exprpb.Constant_Int64Value:
		return float64(c.GetInt64Value()), false, true
	case *exprpb.Constant_Uint64Value:
		return float64(c.GetUint64Value()), false, true
	case *exprpb.Constant_DoubleValue:
		return c.GetDoubleValue(), false, true
	case *exprpb.Constant_BoolValue:
		return c.GetBoolValue(), false, true
	case *exprpb.Constant_NullValue:
		return nil, true, true
	default:
		return nil, false, false
	}
}

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
