// parsesql/token.go
package parsesql

import (
	"fmt"
	"strconv"
	"strings"
)

/*
 * Lexer for SQL WHERE-clause expressions.
 *
 * Produces a flat token stream: identifiers (bare, `backtick`, "double
 * quoted", or [bracketed]), single-quoted strings with '' escaping, numeric
 * literals, comparison operators, || concatenation, parentheses, commas,
 * positional (?) and named (:name) parameters, and the keyword set AND OR
 * NOT IN BETWEEN LIKE IS NULL TRUE FALSE SELECT WHERE.
 */

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkString
	tkNumber
	tkOperator // = != <> < > <= >=
	tkLParen
	tkRParen
	tkComma
	tkConcat // ||
	tkPositional
	tkNamed
	tkKeyword
)

type token struct {
	kind tokenKind
	text string // keyword text is lowercased; named param text excludes prefix
	num  float64
	pos  int
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "between": true,
	"like": true, "is": true, "null": true, "true": true, "false": true,
	"select": true, "where": true,
}

// tokenize lexes src. paramPrefix is the single-rune named-parameter sigil.
func tokenize(src string, paramPrefix string) ([]token, error) {
	if paramPrefix == "" {
		paramPrefix = ":"
	}
	prefix := paramPrefix[0]

	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			toks = append(toks, token{kind: tkLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tkRParen, pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tkComma, pos: i})
			i++
		case c == '?':
			toks = append(toks, token{kind: tkPositional, pos: i})
			i++

		case c == '|':
			if i+1 < len(src) && src[i+1] == '|' {
				toks = append(toks, token{kind: tkConcat, pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Msg: "unexpected '|'"}
			}

		case c == '=':
			toks = append(toks, token{kind: tkOperator, text: "=", pos: i})
			i++
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tkOperator, text: "!=", pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Msg: "unexpected '!'"}
			}
		case c == '<':
			switch {
			case i+1 < len(src) && src[i+1] == '=':
				toks = append(toks, token{kind: tkOperator, text: "<=", pos: i})
				i += 2
			case i+1 < len(src) && src[i+1] == '>':
				toks = append(toks, token{kind: tkOperator, text: "!=", pos: i})
				i += 2
			default:
				toks = append(toks, token{kind: tkOperator, text: "<", pos: i})
				i++
			}
		case c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tkOperator, text: ">=", pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tkOperator, text: ">", pos: i})
				i++
			}

		case c == '\'':
			text, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tkString, text: text, pos: i})
			i = next

		case c == '`', c == '"', c == '[':
			text, next, err := lexQuotedIdent(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tkIdent, text: text, pos: i})
			i = next

		case c >= '0' && c <= '9' || c == '.':
			text, next := lexNumber(src, i)
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{kind: tkNumber, text: text, num: f, pos: i})
			i = next

		case c == '-':
			if i+1 < len(src) && (src[i+1] >= '0' && src[i+1] <= '9' || src[i+1] == '.') {
				text, next := lexNumber(src, i+1)
				f, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("invalid number %q", text)}
				}
				toks = append(toks, token{kind: tkNumber, text: "-" + text, num: -f, pos: i})
				i = next
			} else {
				return nil, &ParseError{Pos: i, Msg: "unexpected '-'"}
			}

		case c == prefix && i+1 < len(src) && isIdentStart(src[i+1]):
			start := i + 1
			j := start
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tkNamed, text: src[start:j], pos: i})
			i = j

		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if keywords[strings.ToLower(word)] {
				toks = append(toks, token{kind: tkKeyword, text: strings.ToLower(word), pos: i})
			} else {
				toks = append(toks, token{kind: tkIdent, text: word, pos: i})
			}
			i = j

		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
	toks = append(toks, token{kind: tkEOF, pos: len(src)})
	return toks, nil
}

// lexString scans a single-quoted literal with '' escaping.
func lexString(src string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		if src[i] == '\'' {
			if i+1 < len(src) && src[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(src[i])
		i++
	}
	return "", start, &ParseError{Pos: start, Msg: "unterminated string literal"}
}

// lexQuotedIdent scans `x`, "x", or [x].
func lexQuotedIdent(src string, start int) (string, int, error) {
	open := src[start]
	close := open
	if open == '[' {
		close = ']'
	}
	for i := start + 1; i < len(src); i++ {
		if src[i] == close {
			return src[start+1 : i], i + 1, nil
		}
	}
	return "", start, &ParseError{Pos: start, Msg: "unterminated quoted identifier"}
}

func lexNumber(src string, start int) (string, int) {
	i := start
	seenDot := false
	for i < len(src) {
		c := src[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			i++
			continue
		}
		break
	}
	return src[start:i], i
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '.'
}
