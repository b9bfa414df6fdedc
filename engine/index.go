package engine

// Index is the flat id-to-node map behind the explorer tree. The root
// sentinel is always present and never removed.
type Index struct {
	nodes map[string]*Node
	root  *Node
}

func newIndex() *Index {
	root := &Node{
		ID:         RootID,
		Name:       RootID,
		Indent:     -1,
		Expandable: true,
		Expanded:   true,
	}
	return &Index{
		nodes: map[string]*Node{RootID: root},
		root:  root,
	}
}

// Root returns the sentinel node whose children are the loaded files.
func (ix *Index) Root() *Node {
	return ix.root
}

// Get returns the node with the given id.
func (ix *Index) Get(id string) (*Node, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

// Len returns the number of nodes, excluding the root.
func (ix *Index) Len() int {
	return len(ix.nodes) - 1
}

// Files returns the file nodes in root order.
func (ix *Index) Files() []*Node {
	files := make([]*Node, 0, len(ix.root.children.ids))
	for _, id := range ix.root.children.ids {
		if n, ok := ix.nodes[id]; ok {
			files = append(files, n)
		}
	}
	return files
}

// Walk visits n's descendants depth-first in child order. Returning false
// from fn skips the node's subtree.
func (ix *Index) Walk(n *Node, fn func(*Node) bool) {
	for _, id := range n.children.ids {
		child, ok := ix.nodes[id]
		if !ok {
			continue
		}
		if fn(child) {
			ix.Walk(child, fn)
		}
	}
}

// Ancestors returns the chain from n's parent up to its file, nearest
// first. The root is not included.
func (ix *Index) Ancestors(n *Node) []*Node {
	var chain []*Node
	for id := n.ParentID; id != RootID && id != ""; {
		parent, ok := ix.nodes[id]
		if !ok {
			break
		}
		chain = append(chain, parent)
		id = parent.ParentID
	}
	return chain
}

// remove deletes n and its descendants and detaches n from its parent.
func (ix *Index) remove(id string) {
	n, ok := ix.nodes[id]
	if !ok || n == ix.root {
		return
	}
	ix.Walk(n, func(child *Node) bool {
		delete(ix.nodes, child.ID)
		return true
	})
	delete(ix.nodes, id)
	if parent, ok := ix.nodes[n.ParentID]; ok {
		parent.children.remove(id)
	}
}

func (ix *Index) reset() {
	ix.root.children = childSet{}
	ix.nodes = map[string]*Node{RootID: ix.root}
}
