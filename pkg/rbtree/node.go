package rbtree

// Node is a read-only view of a tree position: either a key-bearing node or
// a sentinel leaf. Views are comparable, and two views of the same position
// are equal. The zero Node is the absent node.
//
// A view of a key-bearing node becomes invalid once that node is deleted,
// same as an iterator to an erased element of a C++ std::map.
type Node struct {
	tree *Tree

	// Key-bearing node index, 0 for leaves.
	idx uint32

	// For leaves: the key-bearing node above and the slot it occupies.
	above uint32
	side  direction
}

func (tree *Tree) view(nodeIdx uint32) Node {
	return Node{tree: tree, idx: nodeIdx}
}

func (tree *Tree) leaf(above uint32, side direction) Node {
	return Node{tree: tree, above: above, side: side}
}

// Valid reports whether the view refers to a position in a tree.
func (n Node) Valid() bool {
	return n.tree != nil
}

// IsLeaf reports whether the view is a sentinel leaf.
func (n Node) IsLeaf() bool {
	return n.tree != nil && n.idx == 0
}

// Key returns the node key. Leaves carry no key and report zero.
func (n Node) Key() int {
	if n.idx == 0 {
		return 0
	}

	return n.tree.storage()[n.idx].key
}

// Color returns the node color. Leaves are always black.
func (n Node) Color() Color {
	if n.idx == 0 {
		return Black
	}

	return n.tree.storage()[n.idx].color
}

// Left returns the left child, a leaf if there is none.
// Leaves have no children and return the zero Node.
func (n Node) Left() Node {
	return n.child(left)
}

// Right returns the right child, a leaf if there is none.
// Leaves have no children and return the zero Node.
func (n Node) Right() Node {
	return n.child(right)
}

// Parent returns the structural parent. The root, the root leaf of an empty
// tree and the zero Node have no parent and return the zero Node.
func (n Node) Parent() Node {
	if n.tree == nil {
		return Node{}
	}

	parent := n.above
	if n.idx != 0 {
		parent = n.tree.storage()[n.idx].parent
	}

	if parent == 0 {
		return Node{}
	}

	return n.tree.view(parent)
}

func (n Node) child(dir direction) Node {
	if n.idx == 0 {
		return Node{}
	}

	childIdx := n.tree.storage()[n.idx].child[dir]
	if childIdx == 0 {
		return n.tree.leaf(n.idx, dir)
	}

	return n.tree.view(childIdx)
}
