// parsesql/parser.go
package parsesql

import "fmt"

/*
 * Recursive descent over the token stream. Precedence, loosest first:
 * OR, AND, NOT, then parenthesized groups and predicates. Parameters are
 * resolved to their bound values during this pass so lowering only ever
 * sees field references and literals; a parameter without a binding is a
 * parse error, not a silent null.
 */

type parser struct {
	toks     []token
	pos      int
	params   []any
	paramIdx int
	named    map[string]any
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *parser) errf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tkKeyword && t.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(word string) error {
	if !p.keyword(word) {
		return p.errf(p.peek().pos, "expected %s", word)
	}
	return nil
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicExpr{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicExpr{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.keyword("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	if p.peek().kind == tkLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tkRParen {
			return nil, p.errf(p.peek().pos, "expected ')'")
		}
		p.next()
		return inner, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch {
	case t.kind == tkOperator:
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &compareExpr{op: t.text, left: left, right: right, pos: t.pos}, nil

	case t.kind == tkKeyword && t.text == "is":
		p.next()
		negate := p.keyword("not")
		if err := p.expectKeyword("null"); err != nil {
			return nil, err
		}
		return &nullExpr{target: left, negate: negate, pos: t.pos}, nil

	case t.kind == tkKeyword && (t.text == "not" || t.text == "in" || t.text == "between" || t.text == "like"):
		negate := false
		if t.text == "not" {
			p.next()
			negate = true
			t = p.peek()
		}
		switch {
		case p.keyword("in"):
			return p.parseInTail(left, negate, t.pos)
		case p.keyword("between"):
			return p.parseBetweenTail(left, negate, t.pos)
		case p.keyword("like"):
			pattern, err := p.parseLikePattern()
			if err != nil {
				return nil, err
			}
			return &likeExpr{target: left, pattern: pattern, negate: negate, pos: t.pos}, nil
		default:
			return nil, p.errf(t.pos, "expected IN, BETWEEN, or LIKE after NOT")
		}

	default:
		return nil, p.errf(t.pos, "expected comparison operator")
	}
}

func (p *parser) parseInTail(target operand, negate bool, pos int) (expr, error) {
	if p.peek().kind != tkLParen {
		return nil, p.errf(p.peek().pos, "expected '(' after IN")
	}
	p.next()
	var vals []operand
	for {
		v, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.peek().kind == tkComma {
			p.next()
			continue
		}
		break
	}
	if p.peek().kind != tkRParen {
		return nil, p.errf(p.peek().pos, "expected ')' to close IN list")
	}
	p.next()
	return &inExpr{target: target, vals: vals, negate: negate, pos: pos}, nil
}

func (p *parser) parseBetweenTail(target operand, negate bool, pos int) (expr, error) {
	lo, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("and"); err != nil {
		return nil, err
	}
	hi, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &betweenExpr{target: target, lo: lo, hi: hi, negate: negate, pos: pos}, nil
}

// parseLikePattern accepts a single operand or a || concatenation chain
// such as '%' || lastName || '%'.
func (p *parser) parseLikePattern() (operand, error) {
	first, err := p.parseOperand()
	if err != nil {
		return operand{}, err
	}
	if p.peek().kind != tkConcat {
		return first, nil
	}
	parts := []operand{first}
	for p.peek().kind == tkConcat {
		p.next()
		part, err := p.parseOperand()
		if err != nil {
			return operand{}, err
		}
		parts = append(parts, part)
	}
	return operand{concat: parts, pos: first.pos}, nil
}

func (p *parser) parseOperand() (operand, error) {
	t := p.peek()
	switch t.kind {
	case tkIdent:
		p.next()
		return fieldOperand(t.text, t.pos), nil
	case tkString:
		p.next()
		return valueOperand(t.text, t.pos), nil
	case tkNumber:
		p.next()
		return valueOperand(t.num, t.pos), nil
	case tkKeyword:
		switch t.text {
		case "true":
			p.next()
			return valueOperand(true, t.pos), nil
		case "false":
			p.next()
			return valueOperand(false, t.pos), nil
		case "null":
			p.next()
			return valueOperand(nil, t.pos), nil
		}
		return operand{}, p.errf(t.pos, "unexpected keyword %q", t.text)
	case tkPositional:
		p.next()
		if p.paramIdx >= len(p.params) {
			return operand{}, p.errf(t.pos, "no value bound for positional parameter %d", p.paramIdx+1)
		}
		v := p.params[p.paramIdx]
		p.paramIdx++
		return valueOperand(v, t.pos), nil
	case tkNamed:
		p.next()
		v, ok := p.named[t.text]
		if !ok {
			return operand{}, p.errf(t.pos, "no value bound for parameter %q", t.text)
		}
		return valueOperand(v, t.pos), nil
	default:
		return operand{}, p.errf(t.pos, "expected field, literal, or parameter")
	}
}
