// querytree/convert.go
package querytree

/*
 * Form conversion between the combinator and independent-combinator shapes.
 *
 * Grouped -> IC interleaves the group combinator between children. IC ->
 * grouped adopts the group's first inline combinator as the group combinator
 * (normalization: an IC group mixing "and" and "or" flattens to its first
 * combinator, so ConvertQuery is an involution only modulo this placement).
 */

// ConvertQuery toggles a tree between the combinator form and the
// independent-combinator form, structure preserving. The input is not
// mutated.
func ConvertQuery(q *RuleGroup) *RuleGroup {
	if q == nil {
		return nil
	}
	if q.Independent() {
		return groupedFromIC(q)
	}
	return icFromGrouped(q)
}

func icFromGrouped(g *RuleGroup) *RuleGroup {
	ng := *g
	ng.Combinator = ""
	comb := Combinator(g.Combinator)
	if comb == "" {
		comb = Combinator(DefaultCombinator)
	}
	ng.Rules = make([]Node, 0, 2*len(g.Rules))
	for i, n := range g.Rules {
		if i > 0 {
			ng.Rules = append(ng.Rules, comb)
		}
		ng.Rules = append(ng.Rules, convertChild(n, true))
	}
	return &ng
}

func groupedFromIC(g *RuleGroup) *RuleGroup {
	items, combs := icParts(g.Rules)
	ng := *g
	ng.Combinator = DefaultCombinator
	if len(combs) > 0 {
		ng.Combinator = string(combs[0])
	}
	ng.Rules = make([]Node, 0, len(items))
	for _, n := range items {
		ng.Rules = append(ng.Rules, convertChild(n, false))
	}
	return &ng
}

// convertChild recurses into nested groups; rules pass through untouched
// (shared, not copied, since conversion never edits leaves).
func convertChild(n Node, toIC bool) Node {
	child, ok := n.(*RuleGroup)
	if !ok {
		return n
	}
	if toIC {
		if child.Independent() {
			return child
		}
		return icFromGrouped(child)
	}
	if !child.Independent() {
		return child
	}
	return groupedFromIC(child)
}
