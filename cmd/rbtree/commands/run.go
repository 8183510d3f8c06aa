package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// OpResult is the outcome of one scripted operation.
type OpResult struct {
	Op  Op
	Hit bool
}

// Text describes the outcome the way the run table prints it.
func (res OpResult) Text() string {
	switch {
	case res.Op.Kind == OpInsert && res.Hit:
		return "inserted"
	case res.Op.Kind == OpInsert:
		return "present"
	case res.Op.Kind == OpDelete && res.Hit:
		return "deleted"
	case res.Op.Kind == OpFind && res.Hit:
		return "found"
	default:
		return "absent"
	}
}

// RunCommand executes an operation script against a fresh tree.
type RunCommand struct {
	global   *GlobalOptions
	file     string
	format   string
	noVerify bool
}

// NewRunCommand creates the run command.
func NewRunCommand(global *GlobalOptions) *cobra.Command {
	rc := &RunCommand{global: global}

	cmd := &cobra.Command{
		Use:   "run [ops...]",
		Short: "Apply insert, delete and find operations to a tree",
		Long: `Apply a script of operations to an empty tree, then dump it and check
the red-black axioms.

Operations are +K (insert), -K (delete) and ?K (find). Put "--" before the
operations so that deletes are not taken for flags:

  rbtree run -- +10 +5 +7 -5 ?7`,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.file, "file", "f", "", "read operations from a file, '#' starts a comment")
	cmd.Flags().StringVar(&rc.format, "format", FormatTree, "tree dump format: tree, yaml or json")
	cmd.Flags().BoolVar(&rc.noVerify, "no-verify", false, "skip the axiom check")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	ops, err := rc.loadOps(args)
	if err != nil {
		return err
	}

	_, providers, err := rc.global.setup(observability.ModeRun)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	defer func() {
		shutdownErr := providers.Shutdown(ctx)
		if shutdownErr != nil {
			providers.Logger.WarnContext(ctx, "observability shutdown failed", "error", shutdownErr)
		}
	}()

	tree := rbtree.New()
	defer tree.Erase()

	results := ApplyOps(tree, ops)
	out := cmd.OutOrStdout()

	// Machine formats keep stdout for the dump alone.
	report := out
	if rc.format != FormatTree {
		report = cmd.ErrOrStderr()
	}

	writeResults(report, results)

	err = WriteDump(out, tree, rc.format)
	if err != nil {
		return err
	}

	if rc.noVerify {
		return nil
	}

	err = tree.Verify()
	if err != nil {
		providers.Logger.ErrorContext(ctx, "axiom check failed", "error", err)
		color.New(color.FgRed).Fprintf(report, "axioms: FAIL (%v)\n", err)

		return fmt.Errorf("%w: %w", ErrAxiomViolation, err)
	}

	color.New(color.FgGreen).Fprintf(report, "axioms: OK (%d keys)\n", tree.Len())

	return nil
}

func (rc *RunCommand) loadOps(args []string) ([]Op, error) {
	if rc.file == "" {
		return ParseOps(args)
	}

	file, err := os.Open(rc.file)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()

	ops, err := ReadScript(file)
	if err != nil {
		return nil, err
	}

	extra, err := ParseOps(args)
	if err != nil {
		return nil, err
	}

	return append(ops, extra...), nil
}

// ApplyOps runs ops in order against tree.
func ApplyOps(tree *rbtree.Tree, ops []Op) []OpResult {
	results := make([]OpResult, 0, len(ops))

	for _, op := range ops {
		var hit bool

		switch op.Kind {
		case OpInsert:
			hit, _ = tree.InsertNode(op.Key)
		case OpDelete:
			hit = tree.DeleteNode(op.Key)
		case OpFind:
			_, hit = tree.FindNode(op.Key)
		}

		results = append(results, OpResult{Op: op, Hit: hit})
	}

	return results
}

func writeResults(out io.Writer, results []OpResult) {
	if len(results) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Op", "Key", "Result"})

	for idx, res := range results {
		tbl.AppendRow(table.Row{idx + 1, res.Op.Kind.String(), strconv.Itoa(res.Op.Key), res.Text()})
	}

	tbl.AppendFooter(table.Row{"", "", "Total", fmt.Sprintf("%d ops", len(results))})
	tbl.Render()
}
