// Package querytree provides the canonical tree model for structured filter
// queries and the pure structural operations that manipulate it.
//
// A query is a tree of rules (single field/operator/value comparisons) and
// rule groups. Groups come in two shapes: the combinator form, where one
// combinator ("and"/"or") applies to all children, and the independent
// combinator (IC) form, where the Rules slice alternates node, combinator
// string, node, combinator string, node.
//
// Trees are plain immutable values. Every operation returns a new root with
// unaffected subtrees shared; no node holds a parent back-reference, and all
// addressing re-descends from the root via Path.
package querytree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node is one element of a group's Rules slice: a *Rule, a *RuleGroup, or a
// Combinator string (legal only at odd indices of an independent-combinator
// group). The tag method keeps the union closed.
type Node interface {
	isNode()
}

// Combinator is a combinator string occupying an odd slot of an
// independent-combinator group's Rules slice.
type Combinator string

func (Combinator) isNode() {}

// ValueSource selects how a rule's Value is interpreted.
const (
	ValueSourceValue = "value" // Value is a literal (default)
	ValueSourceField = "field" // Value names another field
)

// Rule is a leaf node: a single field/operator/value comparison.
// Path is a cache derived from the rule's position; it is never consulted
// for addressing and may be stale on structurally shared subtrees.
type Rule struct {
	ID          string `json:"id,omitempty"`
	Path        Path   `json:"path,omitempty"`
	Field       string `json:"field"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
	ValueSource string `json:"valueSource,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
}

func (*Rule) isNode() {}

// RuleGroup is an internal node aggregating child rules and groups.
// Combinator is empty in the independent-combinator form, where combinator
// strings live inline in Rules instead.
type RuleGroup struct {
	ID         string `json:"id,omitempty"`
	Path       Path   `json:"path,omitempty"`
	Combinator string `json:"combinator,omitempty"`
	Not        bool   `json:"not,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`
	Rules      []Node `json:"rules"`
}

func (*RuleGroup) isNode() {}

// Independent reports whether the group uses the independent-combinator
// form. Discriminated by the absence of a group-level combinator.
func (g *RuleGroup) Independent() bool {
	return g.Combinator == ""
}

// Field describes one entry of the field catalog shared by the export engine,
// the parsers, and the SQL verification harness.
type Field struct {
	Name            string   `json:"name"`
	Label           string   `json:"label,omitempty"`
	DataType        string   `json:"dataType,omitempty"` // text, numeric, boolean, date
	ValueSources    []string `json:"valueSources,omitempty"`
	DefaultOperator string   `json:"defaultOperator,omitempty"`
	DefaultValue    any      `json:"defaultValue,omitempty"`
}

// FieldMap indexes a field catalog by name. A nil map accepts every field.
func FieldMap(fields []Field) map[string]Field {
	if fields == nil {
		return nil
	}
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}

// MarshalJSON emits the group in the canonical interchange shape.
// Rules is always present, never null, so consumers can iterate without
// nil checks.
func (g *RuleGroup) MarshalJSON() ([]byte, error) {
	out := struct {
		ID         string `json:"id,omitempty"`
		Combinator string `json:"combinator,omitempty"`
		Not        bool   `json:"not,omitempty"`
		Disabled   bool   `json:"disabled,omitempty"`
		Path       Path   `json:"path,omitempty"`
		Rules      []Node `json:"rules"`
	}{g.ID, g.Combinator, g.Not, g.Disabled, g.Path, g.Rules}
	if out.Rules == nil {
		out.Rules = []Node{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the canonical interchange shape, discriminating each
// rules element: string literal -> Combinator, object with a "rules" key ->
// nested group, any other object -> rule.
func (g *RuleGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string            `json:"id"`
		Combinator string            `json:"combinator"`
		Not        bool              `json:"not"`
		Disabled   bool              `json:"disabled"`
		Path       Path              `json:"path"`
		Rules      []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.ID = raw.ID
	g.Combinator = raw.Combinator
	g.Not = raw.Not
	g.Disabled = raw.Disabled
	g.Path = raw.Path
	g.Rules = make([]Node, 0, len(raw.Rules))
	for i, rm := range raw.Rules {
		n, err := decodeNode(rm)
		if err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
		g.Rules = append(g.Rules, n)
	}
	return nil
}

// decodeNode discriminates a single rules element during unmarshaling.
func decodeNode(data json.RawMessage) (Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty node")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return Combinator(s), nil
	}
	var probe struct {
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, err
	}
	if probe.Rules != nil {
		var child RuleGroup
		if err := json.Unmarshal(trimmed, &child); err != nil {
			return nil, err
		}
		return &child, nil
	}
	var r Rule
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseJSON decodes a serialized query tree.
func ParseJSON(data []byte) (*RuleGroup, error) {
	var g RuleGroup
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("invalid query tree: %w", err)
	}
	return &g, nil
}
