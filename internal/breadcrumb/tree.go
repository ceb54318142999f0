package breadcrumb

import content "github.com/hanpama/crumbgraph/internal/content"

// Descriptor is one step of a flattened navigation branch: an entry
// reference or a raw link.
type Descriptor struct {
	Kind    content.NodeKind
	EntryID string
	Title   string
	URL     string
}

// FindInTree searches tree depth-first, children in order, for the first
// node matching id. It returns the root-to-target path as a single-child
// chain built from copies, with the target's own children dropped, or nil
// when id does not occur. The input is never modified.
func FindInTree(tree []content.NavNode, id string) *content.NavNode {
	for i := range tree {
		n := tree[i]
		if n.Matches(id) {
			n.Children = nil
			return &n
		}
		if child := FindInTree(n.Children, id); child != nil {
			n.Children = []content.NavNode{*child}
			return &n
		}
	}
	return nil
}

// FlattenBranch turns a chain from FindInTree into descriptors, root first.
func FlattenBranch(branch *content.NavNode) []Descriptor {
	var out []Descriptor
	for n := branch; n != nil; {
		d := Descriptor{Kind: n.Kind}
		switch n.Kind {
		case content.NodeEntry:
			d.EntryID = n.EntryID
		default:
			d.Title, d.URL = n.Title, n.URL
		}
		out = append(out, d)
		if len(n.Children) == 0 {
			break
		}
		n = &n.Children[0]
	}
	return out
}
