// Package rbtree provides a red-black tree of unique integer keys whose nodes
// live in an index-addressed Allocator, with LZ4 hibernation of the arena and
// an invariant checker for the red-black axioms.
package rbtree

// Color is the color of a tree node.
type Color bool

// Node colors. The zero value is Red so that freshly allocated nodes start red.
const (
	Red   Color = false
	Black Color = true
)

// String returns "red" or "black".
func (color Color) String() string {
	if color == Black {
		return "black"
	}

	return "red"
}

// direction selects a child slot. The rebalancing routines are written once
// for one side and mirrored by flipping the direction.
type direction uint8

const (
	left direction = iota
	right
)

func (dir direction) opposite() direction {
	return 1 - dir
}

type node struct {
	key    int
	parent uint32
	child  [2]uint32
	color  Color
}

// Stats holds cumulative rebalancing counters of a tree.
type Stats struct {
	Rotations    uint64
	Recolors     uint64
	InsertFixups uint64
	DeleteFixups uint64
}

// Tree is a red-black tree with unique int keys.
//
// Trees are not safe for concurrent use. Parent links are plain indices and
// never own anything: nodes are released only through child links.
type Tree struct {
	// Nodes allocator.
	allocator *Allocator

	// Root of the tree, 0 when empty.
	root uint32

	// Number of key-bearing nodes.
	count int

	stats Stats
}

// NewTree creates an empty tree bound to the given allocator.
func NewTree(allocator *Allocator) *Tree {
	return &Tree{allocator: allocator}
}

// New creates an empty tree with a private allocator.
func New() *Tree {
	return NewTree(NewAllocator())
}

func (tree *Tree) storage() []node {
	tree.allocator.mustBeAwake()

	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *Tree) Allocator() *Allocator {
	return tree.allocator
}

// Len returns the number of keys in the tree.
func (tree *Tree) Len() int {
	return tree.count
}

// Stats returns the rebalancing counters accumulated since creation.
func (tree *Tree) Stats() Stats {
	return tree.stats
}

// Root returns the root node, or the lone root leaf of an empty tree.
func (tree *Tree) Root() Node {
	if tree.root == 0 {
		return tree.leaf(0, left)
	}

	return tree.view(tree.root)
}

// FindNode looks up key. The second result is false if the key is absent.
func (tree *Tree) FindNode(key int) (Node, bool) {
	nodeIdx := tree.find(key)
	if nodeIdx == 0 {
		return Node{}, false
	}

	return tree.view(nodeIdx), true
}

// InsertNode adds key to the tree. If the key is already present the tree is
// left unchanged and the existing node is returned with false.
func (tree *Tree) InsertNode(key int) (bool, Node) {
	alloc := tree.storage()
	parent, dir := uint32(0), left

	for cursor := tree.root; cursor != 0; cursor = alloc[parent].child[dir] {
		nd := &alloc[cursor]

		switch {
		case key == nd.key:
			return false, tree.view(cursor)
		case key < nd.key:
			dir = left
		default:
			dir = right
		}

		parent = cursor
	}

	nodeIdx := tree.allocator.malloc()
	alloc = tree.storage()
	alloc[nodeIdx] = node{key: key, parent: parent, color: Red}

	if parent == 0 {
		tree.root = nodeIdx
	} else {
		alloc[parent].child[dir] = nodeIdx
	}

	tree.count++
	tree.insertFixup(nodeIdx)

	return true, tree.view(nodeIdx)
}

// DeleteNode removes key from the tree. Returns true iff the key was found.
//
// A node with two children takes over its in-order successor's key and the
// successor's slot is released instead, so node handles of the successor
// become invalid.
func (tree *Tree) DeleteNode(key int) bool {
	target := tree.find(key)
	if target == 0 {
		return false
	}

	alloc := tree.storage()
	spliced := target

	if alloc[target].child[left] != 0 && alloc[target].child[right] != 0 {
		spliced = tree.leftmost(alloc[target].child[right])
		alloc[target].key = alloc[spliced].key
	}

	child := alloc[spliced].child[left]
	if child == 0 {
		child = alloc[spliced].child[right]
	}

	parent := alloc[spliced].parent
	side := left

	if parent != 0 {
		side = tree.sideOf(spliced)
	}

	tree.transplant(spliced, child)

	// Removing a red node leaves every black-height intact.
	if alloc[spliced].color == Black {
		tree.deleteFixup(child, parent, side)
	}

	tree.allocator.free(spliced)
	tree.count--

	return true
}

// Erase removes all the nodes from the tree, returning their slots to the allocator.
func (tree *Tree) Erase() {
	if tree.root == 0 {
		return
	}

	alloc := tree.storage()
	pending := []uint32{tree.root}

	for len(pending) > 0 {
		nodeIdx := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for _, child := range alloc[nodeIdx].child {
			if child != 0 {
				pending = append(pending, child)
			}
		}

		tree.allocator.free(nodeIdx)
	}

	tree.root = 0
	tree.count = 0
}

// GetLeafNodes appends every sentinel leaf position to out, in pre-order, and
// returns the extended slice. An empty tree has a single leaf with no parent.
func (tree *Tree) GetLeafNodes(out []Node) []Node {
	if tree.root == 0 {
		return append(out, tree.leaf(0, left))
	}

	alloc := tree.storage()

	tree.walk(tree.root, func(nodeIdx uint32) {
		for _, dir := range [...]direction{left, right} {
			if alloc[nodeIdx].child[dir] == 0 {
				out = append(out, tree.leaf(nodeIdx, dir))
			}
		}
	})

	return out
}

// GetNonLeafNodes appends every key-bearing node to out, in pre-order, and
// returns the extended slice.
func (tree *Tree) GetNonLeafNodes(out []Node) []Node {
	tree.walk(tree.root, func(nodeIdx uint32) {
		out = append(out, tree.view(nodeIdx))
	})

	return out
}

// Height returns the number of key-bearing nodes on the longest root-to-leaf path.
func (tree *Tree) Height() int {
	alloc := tree.storage()

	var height func(nodeIdx uint32) int

	height = func(nodeIdx uint32) int {
		if nodeIdx == 0 {
			return 0
		}

		return 1 + max(height(alloc[nodeIdx].child[left]), height(alloc[nodeIdx].child[right]))
	}

	return height(tree.root)
}

func (tree *Tree) walk(nodeIdx uint32, visit func(nodeIdx uint32)) {
	if nodeIdx == 0 {
		return
	}

	alloc := tree.storage()

	visit(nodeIdx)
	tree.walk(alloc[nodeIdx].child[left], visit)
	tree.walk(alloc[nodeIdx].child[right], visit)
}

func (tree *Tree) find(key int) uint32 {
	alloc := tree.storage()
	cursor := tree.root

	for cursor != 0 {
		nd := &alloc[cursor]

		switch {
		case key < nd.key:
			cursor = nd.child[left]
		case key > nd.key:
			cursor = nd.child[right]
		default:
			return cursor
		}
	}

	return 0
}

func (tree *Tree) leftmost(nodeIdx uint32) uint32 {
	alloc := tree.storage()

	for alloc[nodeIdx].child[left] != 0 {
		nodeIdx = alloc[nodeIdx].child[left]
	}

	return nodeIdx
}

// sideOf reports which child of its parent a non-root node is.
func (tree *Tree) sideOf(nodeIdx uint32) direction {
	alloc := tree.storage()
	doAssert(nodeIdx != 0 && alloc[nodeIdx].parent != 0)

	if alloc[alloc[nodeIdx].parent].child[left] == nodeIdx {
		return left
	}

	return right
}

// paint sets a node color, counting actual changes. The sentinel stays black.
func (tree *Tree) paint(nodeIdx uint32, color Color) {
	alloc := tree.storage()

	if alloc[nodeIdx].color == color {
		return
	}

	doAssert(nodeIdx != 0)

	alloc[nodeIdx].color = color
	tree.stats.Recolors++
}

// insertFixup restores the red-black properties after nodeIdx was linked in red.
// The sentinel is black, so the loop stops at the root without a parent check.
func (tree *Tree) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for alloc[alloc[nodeIdx].parent].color == Red {
		tree.stats.InsertFixups++

		parent := alloc[nodeIdx].parent
		grandparent := alloc[parent].parent
		side := tree.sideOf(parent)
		uncle := alloc[grandparent].child[side.opposite()]

		// Red uncle: push the blackness down from the grandparent and retry there.
		if alloc[uncle].color == Red {
			tree.paint(parent, Black)
			tree.paint(uncle, Black)
			tree.paint(grandparent, Red)
			nodeIdx = grandparent

			continue
		}

		// Inner child: straighten the zig-zag first.
		if nodeIdx == alloc[parent].child[side.opposite()] {
			nodeIdx = parent
			tree.rotate(nodeIdx, side)
			parent = alloc[nodeIdx].parent
		}

		tree.paint(parent, Black)
		tree.paint(grandparent, Red)
		tree.rotate(grandparent, side.opposite())
	}

	tree.paint(tree.root, Black)
}

// deleteFixup removes the extra blackness carried by nodeIdx, which may be the
// sentinel. parent and side locate nodeIdx because the sentinel has no parent link.
func (tree *Tree) deleteFixup(nodeIdx, parent uint32, side direction) {
	alloc := tree.storage()

	for nodeIdx != tree.root && alloc[nodeIdx].color == Black {
		tree.stats.DeleteFixups++

		far := side.opposite()
		sibling := alloc[parent].child[far]

		// Red sibling: rotate it above the parent to get a black sibling.
		if alloc[sibling].color == Red {
			tree.paint(sibling, Black)
			tree.paint(parent, Red)
			tree.rotate(parent, side)
			sibling = alloc[parent].child[far]
		}

		nearChild, farChild := alloc[sibling].child[side], alloc[sibling].child[far]

		// Both nephews black: the sibling gives up its blackness and the deficit moves up.
		if alloc[nearChild].color == Black && alloc[farChild].color == Black {
			tree.paint(sibling, Red)
			nodeIdx = parent
			parent = alloc[nodeIdx].parent

			if parent != 0 {
				side = tree.sideOf(nodeIdx)
			}

			continue
		}

		// Only the near nephew is red: turn it into the far one.
		if alloc[farChild].color == Black {
			tree.paint(nearChild, Black)
			tree.paint(sibling, Red)
			tree.rotate(sibling, far)
			sibling = alloc[parent].child[far]
			farChild = alloc[sibling].child[far]
		}

		tree.paint(sibling, alloc[parent].color)
		tree.paint(parent, Black)
		tree.paint(farChild, Black)
		tree.rotate(parent, side)
		nodeIdx = tree.root
	}

	tree.paint(nodeIdx, Black)
}

// transplant puts newIdx (possibly the sentinel) in oldIdx's place under oldIdx's parent.
func (tree *Tree) transplant(oldIdx, newIdx uint32) {
	alloc := tree.storage()
	parent := alloc[oldIdx].parent

	if parent == 0 {
		tree.root = newIdx
	} else {
		alloc[parent].child[tree.sideOf(oldIdx)] = newIdx
	}

	if newIdx != 0 {
		alloc[newIdx].parent = parent
	}
}

// rotate moves pivot down towards dir and promotes its child from the other side.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation is the mirror image.
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree) rotate(pivot uint32, dir direction) {
	alloc := tree.storage()
	child := alloc[pivot].child[dir.opposite()]
	doAssert(child != 0)

	// Move the inner subtree.
	inner := alloc[child].child[dir]
	alloc[pivot].child[dir.opposite()] = inner

	if inner != 0 {
		alloc[inner].parent = pivot
	}

	tree.transplant(pivot, child)

	alloc[child].child[dir] = pivot
	alloc[pivot].parent = child
	tree.stats.Rotations++
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
