// querytree/ops.go
package querytree

/*
 * Structural operations: Add, Remove, Update, Move.
 *
 * All four are pure: the input tree is never mutated, and a new root is
 * returned with copy-on-write along the touched path only. Unaffected
 * subtrees are shared between the old and new roots.
 *
 * Addressing convention (asymmetric, fixed here deliberately): Add's path
 * parameter addresses the TARGET PARENT GROUP and the new node becomes its
 * last child; Remove, Update, and Move address the node itself.
 *
 * Error policy: any path that does not resolve to an existing node or group
 * is a no-op returning the original tree unchanged. Structural operations
 * never return errors; callers racing against stale paths must not crash.
 *
 * Independent-combinator bookkeeping works on item positions: a group's
 * Rules slice is split into nodes (even indices) and combinator strings (odd
 * indices), edited, and re-interleaved, so the alternation invariant holds
 * by construction after every operation.
 */

// AddOptions tunes Add behavior.
type AddOptions struct {
	// Combinators overrides the combinator vocabulary; the first entry is
	// inserted before the new node when appending to a non-empty
	// independent-combinator group. Defaults to DefaultCombinators.
	Combinators []string
}

// UpdateOptions tunes Update behavior. A nil options pointer selects the
// defaults from DefaultUpdateOptions.
type UpdateOptions struct {
	// ResetOnFieldChange re-derives operator and value when the field
	// property changes. Default true.
	ResetOnFieldChange bool

	// ResetOnOperatorChange re-derives value when the operator property
	// changes. Default false.
	ResetOnOperatorChange bool

	// GetRuleDefaultOperator supplies the default operator for a field.
	// Defaults to "=".
	GetRuleDefaultOperator func(field string) string

	// GetRuleDefaultValue supplies the default value for a rule after a
	// reset. Defaults to the empty string.
	GetRuleDefaultValue func(r Rule) any

	// GetValueSources lists the allowed value sources for a field/operator
	// pair. Defaults to DefaultValueSources.
	GetValueSources func(field, operator string) []string
}

// DefaultUpdateOptions returns the spec defaults: field changes reset the
// operator and value, operator changes do not.
func DefaultUpdateOptions() *UpdateOptions {
	return &UpdateOptions{ResetOnFieldChange: true}
}

// MoveOptions tunes Move behavior.
type MoveOptions struct {
	// Clone duplicates the node with fresh identifiers instead of
	// relocating it.
	Clone bool

	// Combinators overrides the combinator vocabulary used for
	// independent-combinator bookkeeping at the destination.
	Combinators []string
}

// Add inserts node as the last child of the group addressed by parentPath.
// For a non-empty independent-combinator group, a combinator string is
// inserted before the node to preserve alternation. The node (and any
// descendants) receive generated IDs where missing. No-op when parentPath
// does not address a group or node is a bare combinator string.
func Add(q *RuleGroup, node Node, parentPath Path, opts *AddOptions) *RuleGroup {
	if q == nil || node == nil {
		return q
	}
	if _, isComb := node.(Combinator); isComb {
		return q
	}
	combo := firstCombinator(optCombinators(opts))
	prepared := ensureIDs(cloneNode(node))
	out, ok := rewriteGroup(q, parentPath, func(g *RuleGroup) (*RuleGroup, bool) {
		ng := *g
		rules := make([]Node, len(g.Rules), len(g.Rules)+2)
		copy(rules, g.Rules)
		if g.Independent() && len(rules) > 0 {
			rules = append(rules, Combinator(combo))
		}
		ng.Rules = append(rules, prepared)
		return &ng, true
	})
	if !ok {
		return q
	}
	return out
}

// Remove deletes the node at path. Independent-combinator groups also drop
// the adjacent combinator string: removing the first element drops the
// following combinator, any other element drops the preceding one. Removing
// the root, a combinator slot, or an unresolvable path is a no-op.
func Remove(q *RuleGroup, path Path) *RuleGroup {
	if q == nil || len(path) == 0 {
		return q
	}
	idx := path[len(path)-1]
	out, ok := rewriteGroup(q, path.Parent(), func(g *RuleGroup) (*RuleGroup, bool) {
		if idx < 0 || idx >= len(g.Rules) {
			return nil, false
		}
		if _, isComb := g.Rules[idx].(Combinator); isComb {
			return nil, false
		}
		ng := *g
		if g.Independent() && len(g.Rules) > 1 {
			items, combs := icParts(g.Rules)
			ni := idx / 2
			items = removeAt(items, ni)
			ci := ni - 1
			if ni == 0 {
				ci = 0
			}
			combs = removeCombAt(combs, ci)
			ng.Rules = icJoin(items, combs)
		} else {
			rules := make([]Node, 0, len(g.Rules)-1)
			rules = append(rules, g.Rules[:idx]...)
			rules = append(rules, g.Rules[idx+1:]...)
			ng.Rules = rules
		}
		return &ng, true
	})
	if !ok {
		return q
	}
	return out
}

// Update sets prop on the node at path. The empty path updates the root
// group. When path addresses a combinator slot of an independent-combinator
// group, prop "combinator" (or "value") replaces the combinator string.
// Unknown properties and unresolvable paths are no-ops.
func Update(q *RuleGroup, prop string, value any, path Path, opts *UpdateOptions) *RuleGroup {
	if q == nil {
		return q
	}
	if opts == nil {
		opts = DefaultUpdateOptions()
	}
	if len(path) == 0 {
		ng, ok := updateGroupProp(q, prop, value)
		if !ok {
			return q
		}
		return ng
	}
	idx := path[len(path)-1]
	out, ok := rewriteGroup(q, path.Parent(), func(g *RuleGroup) (*RuleGroup, bool) {
		if idx < 0 || idx >= len(g.Rules) {
			return nil, false
		}
		var replacement Node
		switch node := g.Rules[idx].(type) {
		case Combinator:
			if prop != "combinator" && prop != "value" {
				return nil, false
			}
			s, ok := value.(string)
			if !ok {
				return nil, false
			}
			replacement = Combinator(s)
		case *RuleGroup:
			ng, ok := updateGroupProp(node, prop, value)
			if !ok {
				return nil, false
			}
			replacement = ng
		case *Rule:
			nr, ok := updateRuleProp(node, prop, value, opts)
			if !ok {
				return nil, false
			}
			replacement = nr
		default:
			return nil, false
		}
		ng := *g
		ng.Rules = make([]Node, len(g.Rules))
		copy(ng.Rules, g.Rules)
		ng.Rules[idx] = replacement
		return &ng, true
	})
	if !ok {
		return q
	}
	return out
}

// Move relocates the node at oldPath to the position addressed by newPath,
// or duplicates it with fresh identifiers when opts.Clone is set. newPath is
// reinterpreted against the post-removal tree: sibling indices after the
// source shift left by one (two in independent-combinator groups, where the
// adjacent combinator leaves with the node). Moving a node into its own
// descendant, moving the root, or addressing a combinator slot is a no-op.
func Move(q *RuleGroup, oldPath, newPath Path, opts *MoveOptions) *RuleGroup {
	if q == nil || len(oldPath) == 0 || len(newPath) == 0 {
		return q
	}
	if opts == nil {
		opts = &MoveOptions{}
	}
	if !opts.Clone && oldPath.IsSameOrAncestorOf(newPath) {
		return q
	}
	node := FindPath(oldPath, q)
	switch node.(type) {
	case *Rule, *RuleGroup:
	default:
		return q
	}

	moved := node
	if opts.Clone {
		moved = CloneWithNewIDs(node)
	}

	work := q
	adjusted := newPath.clone()
	if !opts.Clone {
		srcParent, _ := FindPath(oldPath.Parent(), q).(*RuleGroup)
		if srcParent == nil {
			return q
		}
		work = Remove(q, oldPath)
		if work == q {
			return q
		}
		pp := oldPath.Parent()
		if pp.IsSameOrAncestorOf(adjusted) && len(adjusted) > len(pp) {
			j := len(pp)
			oldIdx := oldPath[len(oldPath)-1]
			if adjusted[j] > oldIdx {
				shift := 1
				if srcParent.Independent() && len(srcParent.Rules) > 1 {
					shift = 2
				}
				adjusted[j] -= shift
				if adjusted[j] < 0 {
					adjusted[j] = 0
				}
			}
		}
	}

	combo := firstCombinator(opts.Combinators)
	out, ok := insertAt(work, moved, adjusted, combo)
	if !ok {
		return q
	}
	return out
}

// rewriteGroup rebuilds the spine from the root to the group at path,
// applying fn to a copy of that group. Returns false without allocating a
// new root when the path does not address a group or fn vetoes the edit.
func rewriteGroup(g *RuleGroup, path Path, fn func(*RuleGroup) (*RuleGroup, bool)) (*RuleGroup, bool) {
	if len(path) == 0 {
		return fn(g)
	}
	idx := path[0]
	if idx < 0 || idx >= len(g.Rules) {
		return nil, false
	}
	child, ok := g.Rules[idx].(*RuleGroup)
	if !ok {
		return nil, false
	}
	newChild, ok := rewriteGroup(child, path[1:], fn)
	if !ok {
		return nil, false
	}
	ng := *g
	ng.Rules = make([]Node, len(g.Rules))
	copy(ng.Rules, g.Rules)
	ng.Rules[idx] = newChild
	return &ng, true
}

// insertAt places node at the raw index given by the last path segment
// inside the group addressed by the rest of the path. Indices are clamped;
// independent-combinator groups gain a combinator string next to the node.
func insertAt(q *RuleGroup, node Node, path Path, combo string) (*RuleGroup, bool) {
	idx := path[len(path)-1]
	return rewriteGroup(q, path.Parent(), func(g *RuleGroup) (*RuleGroup, bool) {
		ng := *g
		if g.Independent() {
			items, combs := icParts(g.Rules)
			ni := (idx + 1) / 2
			if ni < 0 {
				ni = 0
			}
			if ni > len(items) {
				ni = len(items)
			}
			items = insertNodeAt(items, ni, node)
			if len(items) > 1 {
				ci := ni - 1
				if ci < 0 {
					ci = 0
				}
				if ci > len(combs) {
					ci = len(combs)
				}
				combs = insertCombAt(combs, ci, Combinator(combo))
			}
			ng.Rules = icJoin(items, combs)
		} else {
			if idx < 0 {
				idx = 0
			}
			if idx > len(g.Rules) {
				idx = len(g.Rules)
			}
			rules := make([]Node, 0, len(g.Rules)+1)
			rules = append(rules, g.Rules[:idx]...)
			rules = append(rules, node)
			rules = append(rules, g.Rules[idx:]...)
			ng.Rules = rules
		}
		return &ng, true
	})
}

// updateGroupProp returns a copy of g with prop set. Setting a combinator on
// an independent-combinator group is rejected; its combinators live inline.
func updateGroupProp(g *RuleGroup, prop string, value any) (*RuleGroup, bool) {
	ng := *g
	switch prop {
	case "combinator":
		s, ok := value.(string)
		if !ok || g.Independent() {
			return nil, false
		}
		ng.Combinator = s
	case "not":
		b, ok := value.(bool)
		if !ok {
			return nil, false
		}
		ng.Not = b
	case "disabled":
		b, ok := value.(bool)
		if !ok {
			return nil, false
		}
		ng.Disabled = b
	case "id":
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		ng.ID = s
	default:
		return nil, false
	}
	return &ng, true
}

// updateRuleProp returns a copy of r with prop set, applying the reset
// semantics from opts for field, operator, and valueSource changes.
func updateRuleProp(r *Rule, prop string, value any, opts *UpdateOptions) (*Rule, bool) {
	nr := *r
	switch prop {
	case "field":
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		nr.Field = s
		if opts.ResetOnFieldChange && s != r.Field {
			nr.Operator = opts.defaultOperator(s)
			sources := opts.valueSources(nr.Field, nr.Operator)
			if !containsString(sources, effectiveSource(nr.ValueSource)) {
				nr.ValueSource = sources[0]
			}
			nr.Value = opts.defaultValue(nr)
		}
	case "operator":
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		nr.Operator = s
		if opts.ResetOnOperatorChange && s != r.Operator {
			nr.Value = opts.defaultValue(nr)
		}
	case "value":
		nr.Value = value
	case "valueSource":
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		old := effectiveSource(r.ValueSource)
		nr.ValueSource = s
		if s != old {
			// The two sources accept different value shapes: a field
			// reference must start empty, a literal restarts at the default.
			if s == ValueSourceField {
				nr.Value = ""
			} else {
				nr.Value = opts.defaultValue(nr)
			}
		}
	case "disabled":
		b, ok := value.(bool)
		if !ok {
			return nil, false
		}
		nr.Disabled = b
	case "id":
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		nr.ID = s
	default:
		return nil, false
	}
	return &nr, true
}

func (o *UpdateOptions) defaultOperator(field string) string {
	if o.GetRuleDefaultOperator != nil {
		return o.GetRuleDefaultOperator(field)
	}
	return "="
}

func (o *UpdateOptions) defaultValue(r Rule) any {
	if o.GetRuleDefaultValue != nil {
		return o.GetRuleDefaultValue(r)
	}
	return ""
}

func (o *UpdateOptions) valueSources(field, operator string) []string {
	if o.GetValueSources != nil {
		if sources := o.GetValueSources(field, operator); len(sources) > 0 {
			return sources
		}
	}
	return DefaultValueSources
}

// effectiveSource maps the zero value to the default literal source.
func effectiveSource(s string) string {
	if s == "" {
		return ValueSourceValue
	}
	return s
}

// icParts splits an independent-combinator Rules slice into its node items
// (even indices) and combinator strings (odd indices).
func icParts(rules []Node) ([]Node, []Combinator) {
	items := make([]Node, 0, (len(rules)+1)/2)
	combs := make([]Combinator, 0, len(rules)/2)
	for i, n := range rules {
		if i%2 == 0 {
			items = append(items, n)
			continue
		}
		c, ok := n.(Combinator)
		if !ok {
			c = Combinator(DefaultCombinator)
		}
		combs = append(combs, c)
	}
	return items, combs
}

// icJoin interleaves items and combinators back into an alternating Rules
// slice. Missing combinators are filled with the default; extras dropped.
func icJoin(items []Node, combs []Combinator) []Node {
	if len(items) == 0 {
		return []Node{}
	}
	rules := make([]Node, 0, 2*len(items)-1)
	for i, item := range items {
		if i > 0 {
			c := Combinator(DefaultCombinator)
			if i-1 < len(combs) {
				c = combs[i-1]
			}
			rules = append(rules, c)
		}
		rules = append(rules, item)
	}
	return rules
}

func removeAt(items []Node, i int) []Node {
	out := make([]Node, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func removeCombAt(combs []Combinator, i int) []Combinator {
	if i < 0 || i >= len(combs) {
		return combs
	}
	out := make([]Combinator, 0, len(combs)-1)
	out = append(out, combs[:i]...)
	return append(out, combs[i+1:]...)
}

func insertNodeAt(items []Node, i int, n Node) []Node {
	out := make([]Node, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, n)
	return append(out, items[i:]...)
}

func insertCombAt(combs []Combinator, i int, c Combinator) []Combinator {
	out := make([]Combinator, 0, len(combs)+1)
	out = append(out, combs[:i]...)
	out = append(out, c)
	return append(out, combs[i:]...)
}

func optCombinators(opts *AddOptions) []string {
	if opts != nil && len(opts.Combinators) > 0 {
		return opts.Combinators
	}
	return nil
}

func firstCombinator(combinators []string) string {
	if len(combinators) > 0 {
		return combinators[0]
	}
	return DefaultCombinator
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ensureIDs assigns generated identifiers to every rule and group in the
// subtree that lacks one. Mutates only the given (freshly cloned) subtree.
func ensureIDs(n Node) Node {
	switch node := n.(type) {
	case *Rule:
		if node.ID == "" {
			node.ID = NewNodeID()
		}
	case *RuleGroup:
		if node.ID == "" {
			node.ID = NewNodeID()
		}
		for _, child := range node.Rules {
			ensureIDs(child)
		}
	}
	return n
}
