package vfs

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NodeType discriminates file and folder tree nodes.
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// collator orders sibling names the way the file explorer displays them.
var collator = collate.New(language.Und, collate.IgnoreCase)

// Node is a single entry in the virtual file tree. Children are keyed by
// name; ordering is imposed on read, never stored. Content mirrors the flat
// map's code for file nodes and is bookkeeping only — the FileMap remains
// the source of truth for persistence.
type Node struct {
	Name     string
	Type     NodeType
	Path     string
	Children map[string]*Node
	Expanded bool
	Content  string
}

// NewNode creates a node. Folders start expanded.
func NewNode(name string, typ NodeType, path string) *Node {
	return &Node{
		Name:     name,
		Type:     typ,
		Path:     path,
		Children: make(map[string]*Node),
		Expanded: true,
	}
}

// AddChild inserts or replaces a child by name.
func (n *Node) AddChild(child *Node) {
	n.Children[child.Name] = child
}

// RemoveChild deletes a child by name.
func (n *Node) RemoveChild(name string) {
	delete(n.Children, name)
}

// GetChild returns the child with the given name, or nil.
func (n *Node) GetChild(name string) *Node {
	return n.Children[name]
}

// HasChild reports whether a child with the given name exists.
func (n *Node) HasChild(name string) bool {
	_, ok := n.Children[name]
	return ok
}

// ChildrenSorted returns the children with folders before files, each group
// ordered case-insensitively by name. The explorer UI relies on exactly this
// ordering.
func (n *Node) ChildrenSorted() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == NodeFolder
		}
		if c := collator.CompareString(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ToggleExpanded flips the expand state.
func (n *Node) ToggleExpanded() {
	n.Expanded = !n.Expanded
}

// Tree holds the hierarchical view of a project's flat file map.
type Tree struct {
	Root *Node
}

// NewTree creates a tree with an empty root folder at "/".
func NewTree() *Tree {
	return &Tree{Root: NewNode("root", NodeFolder, "/")}
}

// BuildFromFiles rebuilds the whole tree from the flat map. Expand state is
// snapshotted by folder path before the rebuild and restored after, so a
// full rebuild triggered by any edit never resets what the user collapsed.
// Folders that did not exist before default to expanded.
func (t *Tree) BuildFromFiles(files FileMap) *Node {
	states := make(map[string]bool)
	saveExpandState(t.Root, states)

	t.Root = NewNode("root", NodeFolder, "/")
	for _, path := range files.Paths() {
		t.AddFile(path, files[path].Code)
	}

	restoreExpandState(t.Root, states)
	return t.Root
}

func saveExpandState(n *Node, states map[string]bool) {
	if n == nil {
		return
	}
	if n.Type == NodeFolder && n.Path != "" {
		states[n.Path] = n.Expanded
	}
	for _, c := range n.Children {
		saveExpandState(c, states)
	}
}

func restoreExpandState(n *Node, states map[string]bool) {
	if n == nil {
		return
	}
	if n.Type == NodeFolder {
		if expanded, ok := states[n.Path]; ok {
			n.Expanded = expanded
		}
	}
	for _, c := range n.Children {
		restoreExpandState(c, states)
	}
}

// AddFile walks the path from the root, creating any missing intermediate
// folder nodes and a file leaf for the last segment. Existing nodes are
// left untouched, making this the cheap incremental counterpart to
// BuildFromFiles.
func (t *Tree) AddFile(path, content string) {
	parts := splitPath(path)
	node := t.Root
	current := ""

	for i, part := range parts {
		current += "/" + part
		if !node.HasChild(part) {
			typ := NodeFolder
			if i == len(parts)-1 {
				typ = NodeFile
			}
			child := NewNode(part, typ, current)
			if typ == NodeFile {
				child.Content = content
			}
			node.AddChild(child)
		}
		node = node.GetChild(part)
	}
}

// RemoveFile removes the leaf at path and prunes any folder nodes the
// removal left empty, walking bottom-up and stopping at the first ancestor
// that still has children. Returns false when the path does not resolve.
func (t *Tree) RemoveFile(path string) bool {
	parts := splitPath(path)
	if len(parts) == 0 {
		return false
	}

	node := t.Root
	ancestors := []*Node{node}
	for _, part := range parts[:len(parts)-1] {
		if !node.HasChild(part) {
			return false
		}
		node = node.GetChild(part)
		ancestors = append(ancestors, node)
	}

	leaf := parts[len(parts)-1]
	if !node.HasChild(leaf) {
		return false
	}
	node.RemoveChild(leaf)

	for i := len(ancestors) - 1; i > 0; i-- {
		if ancestors[i].Type == NodeFolder && len(ancestors[i].Children) == 0 {
			ancestors[i-1].RemoveChild(ancestors[i].Name)
		} else {
			break
		}
	}
	return true
}

// FilesObject flattens the tree back into a FileMap via pre-order traversal.
// The primary data direction is flat-map-to-tree; this inverse exists so
// tree-only mutations can regenerate the canonical map, and round-trips with
// BuildFromFiles.
func (t *Tree) FilesObject() FileMap {
	files := FileMap{}
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Type == NodeFile {
			files[n.Path] = File{Code: n.Content}
		}
		for _, c := range n.ChildrenSorted() {
			walk(c)
		}
	}
	walk(t.Root)
	return files
}

// ToggleFolder flips the expand state of the folder at path. Returns false
// when the path does not resolve to an existing folder.
func (t *Tree) ToggleFolder(path string) bool {
	node := t.walk(path)
	if node == nil || node.Type != NodeFolder {
		return false
	}
	node.ToggleExpanded()
	return true
}

// PathExists reports whether a file or folder node exists at path.
func (t *Tree) PathExists(path string) bool {
	return t.walk(path) != nil
}

func (t *Tree) walk(path string) *Node {
	node := t.Root
	for _, part := range splitPath(path) {
		if !node.HasChild(part) {
			return nil
		}
		node = node.GetChild(part)
	}
	return node
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
