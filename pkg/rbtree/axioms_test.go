package rbtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// newAxiomTree builds the tree the axiom checks run against: keys 0, 1, 2
// inserted in order, next to an empty one.
func newAxiomTrees(t *testing.T) (*rbtree.Tree, *rbtree.Tree) {
	t.Helper()

	empty, tree := rbtree.New(), rbtree.New()

	for key := range 3 {
		tree.InsertNode(key)
	}

	t.Cleanup(func() {
		empty.Erase()
		tree.Erase()
	})

	return empty, tree
}

func TestTreeAxioms_LeavesAreBlack(t *testing.T) {
	t.Parallel()

	empty, tree := newAxiomTrees(t)

	for _, subject := range []*rbtree.Tree{empty, tree} {
		for _, leaf := range subject.GetLeafNodes(nil) {
			assert.Equal(t, rbtree.Black, leaf.Color())
		}
	}
}

func TestTreeAxioms_RedNodesHaveBlackNeighbours(t *testing.T) {
	t.Parallel()

	_, tree := newAxiomTrees(t)

	for _, nd := range tree.GetNonLeafNodes(nil) {
		if nd.Color() != rbtree.Red {
			continue
		}

		assert.Equal(t, rbtree.Black, nd.Left().Color())
		assert.Equal(t, rbtree.Black, nd.Right().Color())
		assert.Equal(t, rbtree.Black, nd.Parent().Color())
	}
}

func TestTreeAxioms_UniformBlackHeight(t *testing.T) {
	t.Parallel()

	_, tree := newAxiomTrees(t)
	expected := -1

	for _, leaf := range tree.GetLeafNodes(nil) {
		count := 0

		for cursor := leaf; cursor.Valid(); cursor = cursor.Parent() {
			if cursor.Color() == rbtree.Black {
				count++
			}
		}

		if expected != -1 {
			assert.Equal(t, expected, count)
		}

		expected = count
	}

	assert.Equal(t, 2, expected)
}

func TestTreeAxioms_HoldUnderChurn(t *testing.T) {
	t.Parallel()

	tree := rbtree.New()
	t.Cleanup(tree.Erase)

	for key := range 256 {
		tree.InsertNode(key ^ 0x5a)
		require.NoError(t, rbtree.CheckAxioms(tree))
	}

	for key := 255; key >= 0; key -= 2 {
		require.True(t, tree.DeleteNode(key))
		require.NoError(t, rbtree.CheckAxioms(tree))
	}

	assert.Equal(t, 128, tree.Len())
}

func TestColorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "red", rbtree.Red.String())
	assert.Equal(t, "black", rbtree.Black.String())
}
