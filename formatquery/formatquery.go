// Package formatquery renders query trees into external query languages.
//
// One shared depth-first walk handles recursion, placeholder filtering,
// fallback substitution for empty or invalid groups, and negation; each
// target format supplies only the fragment function that renders a single
// comparison. String-producing formats (sql, the parameterized pair, cel,
// spel) share one walk; object-producing formats (mongodb, jsonlogic,
// elasticsearch) share another.
//
// Rendering never fails on malformed trees: unusable rules are omitted and
// groups with nothing renderable emit the format's fallback expression, so
// output is always syntactically complete. Only an unknown format is an
// error.
package formatquery

import (
	"errors"
	"fmt"

	"github.com/solatis/querykit/querytree"
)

// Format identifies a target query language.
type Format string

const (
	FormatSQL                Format = "sql"
	FormatParameterized      Format = "parameterized"
	FormatParameterizedNamed Format = "parameterized_named"
	FormatMongoDB            Format = "mongodb"
	FormatJSONLogic          Format = "jsonlogic"
	FormatCEL                Format = "cel"
	FormatSpEL               Format = "spel"
	FormatElasticSearch      Format = "elasticsearch"
	FormatJSON               Format = "json"
	FormatJSONWithoutIDs     Format = "json_without_ids"
)

// Formats lists every supported target.
var Formats = []Format{
	FormatSQL, FormatParameterized, FormatParameterizedNamed,
	FormatMongoDB, FormatJSONLogic, FormatCEL, FormatSpEL,
	FormatElasticSearch, FormatJSON, FormatJSONWithoutIDs,
}

// ErrUnknownFormat is returned by FormatQuery for an unrecognized format.
var ErrUnknownFormat = errors.New("unknown format")

// DefaultPlaceholderName is the sentinel for not-yet-chosen fields and
// operators; rules carrying it are skipped during export.
const DefaultPlaceholderName = "~"

// RuleProcessor renders a single rule for a string-producing format.
// Returning ok=false omits the rule; the enclosing group's join and
// fallback logic absorb the omission.
type RuleProcessor func(r *querytree.Rule, o *Options) (fragment string, ok bool)

// ValueProcessor overrides literal value rendering for string formats.
type ValueProcessor func(field, operator string, value any, valueSource string) string

// Validator inspects the whole tree before export and reports validity per
// node ID: false marks the node invalid. Invalid groups render as the
// fallback expression; invalid rules are omitted. Absent IDs are valid.
type Validator func(q *querytree.RuleGroup) map[string]bool

// Options configures FormatQuery.
type Options struct {
	Format Format

	// Fields, when provided, restricts export to cataloged fields; rules on
	// unknown fields are treated as invalid and omitted.
	Fields []querytree.Field

	RuleProcessor  RuleProcessor
	ValueProcessor ValueProcessor
	Validator      Validator

	// QuoteFieldNamesWith wraps field names: one element is used on both
	// sides, two elements are the open/close pair.
	QuoteFieldNamesWith []string

	// FallbackExpression overrides the format's tautological substitute for
	// empty or invalid groups. Object formats parse it as JSON.
	FallbackExpression string

	// ParamPrefix is the named-parameter sigil, default ":".
	ParamPrefix string

	// ParamsKeepPrefix includes the prefix in the parameter map keys.
	ParamsKeepPrefix bool

	// ParseNumbers renders numeric-looking string values as numbers.
	ParseNumbers bool

	PlaceholderFieldName    string
	PlaceholderOperatorName string
}

// SQLResult is the parameterized SQL export: a clause with ? placeholders
// and positional bind values.
type SQLResult struct {
	SQL    string
	Params []any
}

// NamedSQLResult is the named-parameter SQL export.
type NamedSQLResult struct {
	SQL    string
	Params map[string]any
}

// FormatQuery renders q per opts.Format. The concrete return type depends on
// the format: string for sql/cel/spel/json/json_without_ids, SQLResult and
// NamedSQLResult for the parameterized pair, map- or value-shaped objects
// for mongodb/jsonlogic/elasticsearch.
func FormatQuery(q *querytree.RuleGroup, opts Options) (any, error) {
	switch opts.Format {
	case FormatSQL:
		return SQL(q, &opts), nil
	case FormatParameterized:
		sql, params := Parameterized(q, &opts)
		return SQLResult{SQL: sql, Params: params}, nil
	case FormatParameterizedNamed:
		sql, params := ParameterizedNamed(q, &opts)
		return NamedSQLResult{SQL: sql, Params: params}, nil
	case FormatMongoDB:
		return MongoDB(q, &opts), nil
	case FormatJSONLogic:
		return JSONLogic(q, &opts), nil
	case FormatCEL:
		return CEL(q, &opts), nil
	case FormatSpEL:
		return SpEL(q, &opts), nil
	case FormatElasticSearch:
		return ElasticSearch(q, &opts), nil
	case FormatJSON:
		return JSON(q), nil
	case FormatJSONWithoutIDs:
		return JSONWithoutIDs(q), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// walker carries per-export state: resolved options, validator verdicts,
// the field catalog index, and collected bind parameters.
type walker struct {
	o        *Options
	invalid  map[string]bool
	fieldMap map[string]querytree.Field

	params      []any
	named       map[string]any
	fieldCounts map[string]int
}

func newWalker(q *querytree.RuleGroup, o *Options) *walker {
	if o == nil {
		o = &Options{}
	}
	w := &walker{
		o:           o,
		fieldMap:    querytree.FieldMap(o.Fields),
		named:       map[string]any{},
		fieldCounts: map[string]int{},
	}
	if o.Validator != nil && q != nil {
		w.invalid = o.Validator(q)
	}
	return w
}

func (w *walker) placeholderField() string {
	if w.o.PlaceholderFieldName != "" {
		return w.o.PlaceholderFieldName
	}
	return DefaultPlaceholderName
}

func (w *walker) placeholderOperator() string {
	if w.o.PlaceholderOperatorName != "" {
		return w.o.PlaceholderOperatorName
	}
	return DefaultPlaceholderName
}

// nodeInvalid reports whether the validator marked the node ID invalid.
func (w *walker) nodeInvalid(id string) bool {
	if id == "" || w.invalid == nil {
		return false
	}
	valid, seen := w.invalid[id]
	return seen && !valid
}

// ruleUsable filters placeholder rules, validator-invalidated rules, and
// rules on fields missing from the catalog.
func (w *walker) ruleUsable(r *querytree.Rule) bool {
	if r.Field == w.placeholderField() || r.Operator == w.placeholderOperator() {
		return false
	}
	if w.nodeInvalid(r.ID) {
		return false
	}
	if w.fieldMap != nil {
		if _, ok := w.fieldMap[r.Field]; !ok {
			return false
		}
	}
	return true
}

// stringDialect is the per-format variation point for string targets.
type stringDialect struct {
	rule     func(w *walker, r *querytree.Rule) (string, bool)
	join     func(combinator string) string
	negate   func(body string) string
	fallback func(o *Options) string
}

// formatGroupString renders a group for a string format. Empty and invalid
// groups render as the fallback expression directly, un-negated and
// un-parenthesized: the fallback is already a complete expression.
func (w *walker) formatGroupString(g *querytree.RuleGroup, outermost bool, d *stringDialect) string {
	if w.nodeInvalid(g.ID) {
		return d.fallback(w.o)
	}

	type piece struct {
		comb string
		text string
	}
	var pieces []piece
	pending := g.Combinator
	for _, n := range g.Rules {
		switch node := n.(type) {
		case querytree.Combinator:
			pending = string(node)
		case *querytree.RuleGroup:
			pieces = append(pieces, piece{comb: pending, text: w.formatGroupString(node, false, d)})
		case *querytree.Rule:
			if !w.ruleUsable(node) {
				continue
			}
			frag, ok := w.processStringRule(node, d)
			if !ok {
				continue
			}
			pieces = append(pieces, piece{comb: pending, text: frag})
		}
	}

	if len(pieces) == 0 {
		return d.fallback(w.o)
	}

	body := pieces[0].text
	for _, p := range pieces[1:] {
		body += d.join(p.comb) + p.text
	}

	switch {
	case g.Not:
		return d.negate(body)
	case outermost:
		return body
	default:
		return "(" + body + ")"
	}
}

func (w *walker) processStringRule(r *querytree.Rule, d *stringDialect) (string, bool) {
	if w.o.RuleProcessor != nil {
		return w.o.RuleProcessor(r, w.o)
	}
	return d.rule(w, r)
}

// objectDialect is the per-format variation point for object targets.
type objectDialect struct {
	rule     func(w *walker, r *querytree.Rule) (any, bool)
	combine  func(combinator string, frags []any) any
	negate   func(body any) any
	fallback func(o *Options) any
}

// formatGroupObject renders a group for an object format. Mixed inline
// combinators of an independent-combinator group fold left-associatively
// into nested binary clauses; uniform combinators collapse to one clause.
func (w *walker) formatGroupObject(g *querytree.RuleGroup, d *objectDialect) any {
	if w.nodeInvalid(g.ID) {
		return d.fallback(w.o)
	}

	var combs []string
	var frags []any
	pending := g.Combinator
	for _, n := range g.Rules {
		switch node := n.(type) {
		case querytree.Combinator:
			pending = string(node)
		case *querytree.RuleGroup:
			combs = append(combs, pending)
			frags = append(frags, w.formatGroupObject(node, d))
		case *querytree.Rule:
			if !w.ruleUsable(node) {
				continue
			}
			frag, ok := d.rule(w, node)
			if !ok {
				continue
			}
			combs = append(combs, pending)
			frags = append(frags, frag)
		}
	}

	if len(frags) == 0 {
		return d.fallback(w.o)
	}

	uniform := true
	for i := 2; i < len(combs); i++ {
		if combs[i] != combs[1] {
			uniform = false
			break
		}
	}

	var body any
	switch {
	case len(frags) == 1:
		body = d.combine(defaultComb(g.Combinator), frags)
	case uniform:
		body = d.combine(defaultComb(combs[1]), frags)
	default:
		body = frags[0]
		for i := 1; i < len(frags); i++ {
			body = d.combine(defaultComb(combs[i]), []any{body, frags[i]})
		}
	}

	if g.Not {
		return d.negate(body)
	}
	return body
}

func defaultComb(comb string) string {
	if comb == "" {
		return querytree.DefaultCombinator
	}
	return comb
}
