package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// Tree dump formats.
const (
	FormatTree = "tree"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown format")

// DumpNode is the serialized form of a key-bearing node. Absent children are leaves.
type DumpNode struct {
	Key   int       `json:"key"             yaml:"key"`
	Color string    `json:"color"           yaml:"color"`
	Left  *DumpNode `json:"left,omitempty"  yaml:"left,omitempty"`
	Right *DumpNode `json:"right,omitempty" yaml:"right,omitempty"`
}

// BuildDump converts the subtree under nd. Leaves convert to nil.
func BuildDump(nd rbtree.Node) *DumpNode {
	if !nd.Valid() || nd.IsLeaf() {
		return nil
	}

	return &DumpNode{
		Key:   nd.Key(),
		Color: nd.Color().String(),
		Left:  BuildDump(nd.Left()),
		Right: BuildDump(nd.Right()),
	}
}

// WriteDump writes the tree in the requested format.
func WriteDump(out io.Writer, tree *rbtree.Tree, format string) error {
	switch format {
	case FormatTree:
		return writeTreeText(out, tree.Root())
	case FormatYAML:
		encoder := yaml.NewEncoder(out)

		err := encoder.Encode(BuildDump(tree.Root()))
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return encoder.Close()
	case FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(BuildDump(tree.Root()))
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// writeTreeText draws the tree with box characters, right subtree first.
func writeTreeText(out io.Writer, root rbtree.Node) error {
	if root.IsLeaf() {
		_, err := fmt.Fprintln(out, "(empty)")

		return err
	}

	var builder strings.Builder

	var draw func(nd rbtree.Node, prefix, branch string)

	draw = func(nd rbtree.Node, prefix, branch string) {
		builder.WriteString(prefix + branch + nodeLabel(nd) + "\n")

		if nd.IsLeaf() {
			return
		}

		childPrefix := prefix
		switch branch {
		case "├── ":
			childPrefix += "│   "
		case "└── ":
			childPrefix += "    "
		}

		draw(nd.Right(), childPrefix, "├── ")
		draw(nd.Left(), childPrefix, "└── ")
	}

	draw(root, "", "")

	_, err := io.WriteString(out, builder.String())

	return err
}

func nodeLabel(nd rbtree.Node) string {
	if nd.IsLeaf() {
		return "NIL"
	}

	label := fmt.Sprintf("%d (%s)", nd.Key(), nd.Color())
	if nd.Color() == rbtree.Red {
		return color.New(color.FgRed).Sprint(label)
	}

	return color.New(color.Bold).Sprint(label)
}
