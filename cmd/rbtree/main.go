// Package main provides the entry point for the rbtree CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/cmd/rbtree/commands"
	"github.com/Sumatoshi-tech/redblack/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	global := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rbtree",
		Short: "Red-black tree playground",
		Long: `rbtree drives an integer-keyed red-black tree.

Commands:
  run       Apply an operation script and dump the tree
  stress    Randomized workload with axiom checks and metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&global.ConfigPath, "config", "", "config file (default is $HOME/.rbtree.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&global.LogJSON, "log-json", false, "JSON log output")
	rootCmd.PersistentFlags().BoolVar(&global.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(commands.NewRunCommand(global))
	rootCmd.AddCommand(commands.NewStressCommand(global))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rbtree %s\n", version.String())
		},
	}
}
