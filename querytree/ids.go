// querytree/ids.go
package querytree

import "github.com/google/uuid"

// NewNodeID generates a UUIDv7 node identifier.
// Time-ordered IDs keep nodes created in sequence adjacent when persisted.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewNodeID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// cloneNode deep-copies a node's structure. Values are shared: the tree
// discipline is copy-on-write, so both copies treat them as read-only.
func cloneNode(n Node) Node {
	switch node := n.(type) {
	case *Rule:
		r := *node
		r.Path = node.Path.clone()
		return &r
	case *RuleGroup:
		g := *node
		g.Path = node.Path.clone()
		g.Rules = make([]Node, len(node.Rules))
		for i, child := range node.Rules {
			g.Rules[i] = cloneNode(child)
		}
		return &g
	default:
		return n
	}
}

// CloneWithNewIDs deep-copies a node, assigning a fresh identifier to every
// rule and group in the subtree. Used by Move when duplicating.
func CloneWithNewIDs(n Node) Node {
	switch node := n.(type) {
	case *Rule:
		r := *node
		r.ID = NewNodeID()
		r.Path = node.Path.clone()
		return &r
	case *RuleGroup:
		g := *node
		g.ID = NewNodeID()
		g.Path = node.Path.clone()
		g.Rules = make([]Node, len(node.Rules))
		for i, child := range node.Rules {
			g.Rules[i] = CloneWithNewIDs(child)
		}
		return &g
	default:
		return n
	}
}
