package vfs

import "sort"

// TreeView is the read projection the explorer UI consumes. It never exposes
// tree internals for mutation: callers toggle folders through it and treat
// returned nodes as immutable snapshots. Revision increments on every
// successful mutation so callers can key memoized renders off it.
type TreeView struct {
	tree     *Tree
	revision uint64
}

// NewTreeView creates a view over the given tree.
func NewTreeView(tree *Tree) *TreeView {
	return &TreeView{tree: tree}
}

// Root returns the current root node.
func (v *TreeView) Root() *Node {
	return v.tree.Root
}

// Revision returns the current revision counter.
func (v *TreeView) Revision() uint64 {
	return v.revision
}

// Refresh bumps the revision; the owning store calls it after rebuilds.
func (v *TreeView) Refresh() {
	v.revision++
}

// Toggle flips the expand state of the folder at path, bumping the revision
// on success.
func (v *TreeView) Toggle(path string) bool {
	if v.tree.ToggleFolder(path) {
		v.revision++
		return true
	}
	return false
}

// Children returns a node's children in display order. A node built by this
// package sorts itself; a bare node coming from elsewhere (deserialized
// snapshots) gets the same folders-first ordering applied manually.
func (v *TreeView) Children(n *Node) []*Node {
	if n == nil {
		return nil
	}
	if n.Type == NodeFolder && n.Children != nil {
		return n.ChildrenSorted()
	}

	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == NodeFolder
		}
		return out[i].Name < out[j].Name
	})
	return out
}
