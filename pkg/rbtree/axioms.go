package rbtree

import (
	"errors"
	"fmt"
)

// Axiom violations reported by Verify.
var (
	ErrRedLeaf          = errors.New("leaf is not black")
	ErrRedRoot          = errors.New("root is not black")
	ErrRedRedAdjacency  = errors.New("red node adjacent to a red node")
	ErrBlackHeight      = errors.New("black-height differs between leaves")
	ErrOrder            = errors.New("keys are out of order")
	ErrBrokenParentLink = errors.New("child does not link back to its parent")
	ErrCountMismatch    = errors.New("node count does not match the tree size")
	ErrParentCycle      = errors.New("leaf walk did not reach the root")
)

// Verify checks the red-black axioms and the search-tree structure, and
// returns the first violation found.
func (tree *Tree) Verify() error {
	return CheckAxioms(tree)
}

// CheckAxioms inspects a tree through its read-only node views:
//   - every leaf is black;
//   - a red node has a black parent and black children;
//   - all leaf-to-root paths hold the same number of black nodes;
//   - the root is black, keys are ordered and child links match parent links.
func CheckAxioms(tree *Tree) error {
	if tree.Root().Color() != Black {
		return ErrRedRoot
	}

	leaves := tree.GetLeafNodes(nil)

	for _, leaf := range leaves {
		if leaf.Color() != Black {
			return fmt.Errorf("%w: under key %d", ErrRedLeaf, leaf.Parent().Key())
		}
	}

	nodes := tree.GetNonLeafNodes(nil)
	if len(nodes) != tree.Len() {
		return fmt.Errorf("%w: %d nodes, size %d", ErrCountMismatch, len(nodes), tree.Len())
	}

	for _, nd := range nodes {
		err := checkLinks(nd)
		if err != nil {
			return err
		}

		if nd.Color() != Red {
			continue
		}

		for _, neighbour := range [...]Node{nd.Left(), nd.Right(), nd.Parent()} {
			if neighbour.Color() != Black {
				return fmt.Errorf("%w: keys %d and %d", ErrRedRedAdjacency, nd.Key(), neighbour.Key())
			}
		}
	}

	_, err := leafBlackHeight(leaves)
	if err != nil {
		return err
	}

	return checkOrder(tree.Root())
}

// BlackHeight returns the number of black nodes on every path from a child of
// the root down to a leaf. The leaf is counted and the root is not, so a
// single black root has black-height 1. An empty tree has black-height 0.
func (tree *Tree) BlackHeight() (int, error) {
	height, err := leafBlackHeight(tree.GetLeafNodes(nil))
	if err != nil {
		return 0, err
	}

	root := tree.Root()
	if root.IsLeaf() {
		return 0, nil
	}

	if root.Color() == Black {
		height--
	}

	return height, nil
}

// leafBlackHeight counts black nodes from each leaf up to the root, both ends
// included, and requires the counts to agree.
func leafBlackHeight(leaves []Node) (int, error) {
	expected := -1

	for _, leaf := range leaves {
		count, steps := 0, 0

		for cursor := leaf; cursor.Valid(); cursor = cursor.Parent() {
			if cursor.Color() == Black {
				count++
			}

			// n key-bearing nodes always have n+1 leaves.
			steps++
			if steps > len(leaves)+1 {
				return 0, ErrParentCycle
			}
		}

		if expected != -1 && count != expected {
			return 0, fmt.Errorf("%w: %d and %d", ErrBlackHeight, expected, count)
		}

		expected = count
	}

	return expected, nil
}

func checkLinks(nd Node) error {
	for _, child := range [...]Node{nd.Left(), nd.Right()} {
		if child.IsLeaf() {
			continue
		}

		if child.Parent() != nd {
			return fmt.Errorf("%w: key %d under key %d", ErrBrokenParentLink, child.Key(), nd.Key())
		}
	}

	return nil
}

func checkOrder(root Node) error {
	var walk func(nd Node, low, high *int) error

	walk = func(nd Node, low, high *int) error {
		if nd.IsLeaf() {
			return nil
		}

		key := nd.Key()
		if (low != nil && key <= *low) || (high != nil && key >= *high) {
			return fmt.Errorf("%w: key %d", ErrOrder, key)
		}

		err := walk(nd.Left(), low, &key)
		if err != nil {
			return err
		}

		return walk(nd.Right(), &key, high)
	}

	return walk(root, nil, nil)
}
