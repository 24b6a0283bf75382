// parsesql/ast.go
package parsesql

import "fmt"

// ParseError reports a syntax or binding failure with its byte offset in the
// source expression.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse sql: %s at offset %d", e.Msg, e.Pos)
}

// operand is one side of a predicate: either a field reference, a resolved
// literal value, or a concatenation chain (only valid as a LIKE pattern).
type operand struct {
	isField bool
	field   string
	val     any
	concat  []operand
	pos     int
}

func fieldOperand(name string, pos int) operand {
	return operand{isField: true, field: name, pos: pos}
}

func valueOperand(v any, pos int) operand {
	return operand{val: v, pos: pos}
}

type expr interface{ exprNode() }

// logicExpr is a binary AND/OR. Chains of the same combinator are flattened
// during lowering, not here.
type logicExpr struct {
	op          string // "and" | "or"
	left, right expr
}

type notExpr struct {
	inner expr
}

type compareExpr struct {
	op          string // = != < <= > >=
	left, right operand
	pos         int
}

type inExpr struct {
	target operand
	vals   []operand
	negate bool
	pos    int
}

type betweenExpr struct {
	target operand
	lo, hi operand
	negate bool
	pos    int
}

type likeExpr struct {
	target  operand
	pattern operand
	negate  bool
	pos     int
}

type nullExpr struct {
	target operand
	negate bool
	pos    int
}

func (*logicExpr) exprNode()   {}
func (*notExpr) exprNode()     {}
func (*compareExpr) exprNode() {}
func (*inExpr) exprNode()      {}
func (*betweenExpr) exprNode() {}
func (*likeExpr) exprNode()    {}
func (*nullExpr) exprNode()    {}
