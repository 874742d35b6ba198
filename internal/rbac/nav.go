package rbac

import "encoding/json"

// Rule decides whether a navigation node is visible. The set of rules is
// closed: Always, AnyOf and AllOf.
type Rule interface {
	allows(c Checker) bool
	isRule()
}

type alwaysRule struct{}

func (alwaysRule) allows(Checker) bool { return true }
func (alwaysRule) isRule()             {}

type anyOfRule []string

func (r anyOfRule) allows(c Checker) bool { return c.CanAny(r...) }
func (anyOfRule) isRule()                 {}

type allOfRule []string

func (r allOfRule) allows(c Checker) bool { return c.CanAll(r...) }
func (allOfRule) isRule()                 {}

// Always makes a node visible regardless of permissions.
var Always Rule = alwaysRule{}

// AnyOf requires at least one of keys. With no keys it behaves as Always.
func AnyOf(keys ...string) Rule {
	if len(keys) == 0 {
		return Always
	}
	return anyOfRule(append([]string(nil), keys...))
}

// AllOf requires every key. With no keys it behaves as Always.
func AllOf(keys ...string) Rule {
	if len(keys) == 0 {
		return Always
	}
	return allOfRule(append([]string(nil), keys...))
}

func allowed(r Rule, c Checker) bool {
	if r == nil {
		return true
	}
	return r.allows(c)
}

// Node is a navigation entry: either a Leaf or a Group.
type Node interface {
	NodeLabel() string
	isNode()
}

// Leaf is a navigable destination.
type Leaf struct {
	Label  string
	Target string
	Rule   Rule
}

// NodeLabel implements Node.
func (l Leaf) NodeLabel() string { return l.Label }
func (Leaf) isNode()             {}

// MarshalJSON renders the leaf without its rule.
func (l Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Label  string `json:"label"`
		Target string `json:"target"`
	}{l.Label, l.Target})
}

// Group is a section holding child nodes.
type Group struct {
	Label    string
	Rule     Rule
	Children []Node
}

// NodeLabel implements Node.
func (g Group) NodeLabel() string { return g.Label }
func (Group) isNode()             {}

// MarshalJSON renders the group and its children without rules.
func (g Group) MarshalJSON() ([]byte, error) {
	children := g.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(struct {
		Label    string `json:"label"`
		Children []Node `json:"children"`
	}{g.Label, children})
}

// FilterNav prunes nodes to what c allows. Children are filtered first; a
// group survives when its own rule allows it or any child survived, and it
// keeps only surviving children. Sibling order is preserved.
func FilterNav(nodes []Node, c Checker) []Node {
	out := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		switch n := node.(type) {
		case Leaf:
			if allowed(n.Rule, c) {
				out = append(out, n)
			}
		case Group:
			children := FilterNav(n.Children, c)
			if allowed(n.Rule, c) || len(children) > 0 {
				n.Children = children
				out = append(out, n)
			}
		}
	}
	return out
}
