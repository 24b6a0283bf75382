// querytree/transform.go
package querytree

import "encoding/json"

/*
 * Generic tree rewrite.
 *
 * TransformQuery walks either tree shape once, handing every rule and group
 * (as a generic map) to caller-supplied processors, with key renaming and
 * combinator/operator value substitution on top. The output is a generic
 * map tree rather than a typed one because PropertyMap can rename keys the
 * typed model reserves.
 *
 * The recursion cannot be short-circuited: whatever a group processor
 * returns, its "rules" entry is recomputed by recursing into the original
 * children afterwards.
 */

// TransformOptions configures TransformQuery. All fields are optional; the
// zero value performs a structure-preserving deep copy to generic maps.
type TransformOptions struct {
	// RuleProcessor replaces each rule map. Path is the rule's position.
	RuleProcessor func(rule map[string]any, path Path) map[string]any

	// GroupProcessor replaces each group map; its "rules" entry is always
	// overwritten by the recursion afterwards.
	GroupProcessor func(group map[string]any, path Path) map[string]any

	// PropertyMap renames keys on rules and groups.
	PropertyMap map[string]string

	// CombinatorMap substitutes combinator values, including inline
	// combinator strings of independent-combinator groups.
	CombinatorMap map[string]string

	// OperatorMap substitutes rule operator values.
	OperatorMap map[string]string

	// KeepRemappedProperties retains the original key alongside the renamed
	// one. By default the original is deleted.
	KeepRemappedProperties bool
}

// TransformQuery produces a rewritten generic-map copy of q. The input tree
// is never mutated.
func TransformQuery(q *RuleGroup, opts *TransformOptions) map[string]any {
	if q == nil {
		return nil
	}
	if opts == nil {
		opts = &TransformOptions{}
	}
	return transformGroup(q, Path{}, opts)
}

func transformGroup(g *RuleGroup, at Path, opts *TransformOptions) map[string]any {
	m := nodeToMap(g)
	if opts.GroupProcessor != nil {
		if out := opts.GroupProcessor(m, at); out != nil {
			m = out
		}
	}

	// Recurse into the original children regardless of what the processor
	// returned for "rules".
	children := make([]any, 0, len(g.Rules))
	for i, n := range g.Rules {
		switch node := n.(type) {
		case *RuleGroup:
			children = append(children, transformGroup(node, at.child(i), opts))
		case *Rule:
			children = append(children, transformRule(node, at.child(i), opts))
		case Combinator:
			children = append(children, remapValue(string(node), opts.CombinatorMap))
		}
	}
	m["rules"] = children

	if comb, ok := m["combinator"].(string); ok {
		m["combinator"] = remapValue(comb, opts.CombinatorMap)
	}
	applyPropertyMap(m, opts)
	return m
}

func transformRule(r *Rule, at Path, opts *TransformOptions) map[string]any {
	m := nodeToMap(r)
	if opts.RuleProcessor != nil {
		if out := opts.RuleProcessor(m, at); out != nil {
			m = out
		}
	}
	if op, ok := m["operator"].(string); ok {
		m["operator"] = remapValue(op, opts.OperatorMap)
	}
	applyPropertyMap(m, opts)
	return m
}

// nodeToMap converts a typed node to its generic-map representation via the
// canonical JSON shape, so the transform sees exactly what serializes.
func nodeToMap(n Node) map[string]any {
	data, err := json.Marshal(n)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func remapValue(v string, valueMap map[string]string) string {
	if mapped, ok := valueMap[v]; ok {
		return mapped
	}
	return v
}

func applyPropertyMap(m map[string]any, opts *TransformOptions) {
	if len(opts.PropertyMap) == 0 {
		return
	}
	for from, to := range opts.PropertyMap {
		v, ok := m[from]
		if !ok || from == to {
			continue
		}
		m[to] = v
		if !opts.KeepRemappedProperties {
			delete(m, from)
		}
	}
}
