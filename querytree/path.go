// querytree/path.go
package querytree

/*
 * Path addressing.
 *
 * A Path is an ordered sequence of child indices descending from the root;
 * the empty path addresses the root group. All predicates are pure, total,
 * and O(depth). Addressing always re-descends from the root; cached Path
 * fields on nodes are informational only.
 */

// Path locates a node by descending child indices from the root.
// The empty path addresses the root group itself.
type Path []int

// Parent returns the path with the last element dropped.
// The root's parent is defined as the root itself (empty path).
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[:len(p)-1]
}

// Equal reports element-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a strict prefix of other.
func (p Path) IsAncestorOf(other Path) bool {
	if len(p) >= len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// IsSameOrAncestorOf reports whether p equals other or is a strict prefix
// of it.
func (p Path) IsSameOrAncestorOf(other Path) bool {
	return p.Equal(other) || p.IsAncestorOf(other)
}

// Compare orders paths lexicographically on the index sequence. A shorter
// prefix sorts before its descendants. Returns -1, 0, or 1.
func (p Path) Compare(other Path) int {
	n := len(p)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		switch {
		case p[i] < other[i]:
			return -1
		case p[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(other):
		return -1
	case len(p) > len(other):
		return 1
	}
	return 0
}

// clone returns an independent copy. Paths are stored on new nodes, so
// aliasing the caller's backing array would leak mutations.
func (p Path) clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// child returns the path extended by one index.
func (p Path) child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// FindPath returns the node addressed by path, or nil when any prefix fails
// to address an existing group or the final index is out of range. The empty
// path returns the root group.
func FindPath(path Path, q *RuleGroup) Node {
	if q == nil {
		return nil
	}
	var current Node = q
	for _, idx := range path {
		g, ok := current.(*RuleGroup)
		if !ok {
			return nil
		}
		if idx < 0 || idx >= len(g.Rules) {
			return nil
		}
		current = g.Rules[idx]
	}
	return current
}

// WithCalculatedPaths returns a fully copied tree whose cached Path fields
// reflect each node's current position. Structural operations do not refresh
// caches on shared subtrees, so callers that read Path should pass the tree
// through here first.
func WithCalculatedPaths(q *RuleGroup) *RuleGroup {
	if q == nil {
		return nil
	}
	return recalcGroup(q, Path{})
}

func recalcGroup(g *RuleGroup, at Path) *RuleGroup {
	ng := *g
	ng.Path = at.clone()
	ng.Rules = make([]Node, len(g.Rules))
	for i, n := range g.Rules {
		switch node := n.(type) {
		case *RuleGroup:
			ng.Rules[i] = recalcGroup(node, at.child(i))
		case *Rule:
			nr := *node
			nr.Path = at.child(i)
			ng.Rules[i] = &nr
		default:
			ng.Rules[i] = n
		}
	}
	return &ng
}
