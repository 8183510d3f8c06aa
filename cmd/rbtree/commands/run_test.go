package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// buildTestRootCmd mirrors the binary's root command with color disabled.
func buildTestRootCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())

	global := &GlobalOptions{NoColor: true}
	rootCmd := &cobra.Command{Use: "rbtree", SilenceUsage: true, SilenceErrors: true}
	rootCmd.PersistentFlags().StringVar(&global.ConfigPath, "config", "", "config file")
	rootCmd.AddCommand(NewRunCommand(global), NewStressCommand(global))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	return rootCmd, buf
}

func TestApplyOps(t *testing.T) {
	t.Parallel()

	tree := rbtree.New()
	t.Cleanup(tree.Erase)

	ops, err := ParseOps([]string{"+1", "+1", "?1", "-1", "-1", "?1"})
	require.NoError(t, err)

	results := ApplyOps(tree, ops)
	texts := make([]string, 0, len(results))

	for _, res := range results {
		texts = append(texts, res.Text())
	}

	assert.Equal(t, []string{"inserted", "present", "found", "deleted", "absent", "absent"}, texts)
	assert.Zero(t, tree.Len())
}

func TestRunCommand_Args(t *testing.T) {
	rootCmd, buf := buildTestRootCmd(t)
	rootCmd.SetArgs([]string{"run", "--", "+10", "+5", "+7", "-5", "?7", "?5"})

	require.NoError(t, rootCmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "inserted")
	assert.Contains(t, out, "deleted")
	assert.Contains(t, out, "found")
	assert.Contains(t, out, "7 (black)")
	assert.Contains(t, out, "10 (red)")
	assert.NotContains(t, out, "5 (red)")
	assert.Contains(t, out, "axioms: OK (2 keys)")
}

func TestRunCommand_File(t *testing.T) {
	script := filepath.Join(t.TempDir(), "ops.txt")
	require.NoError(t, os.WriteFile(script, []byte("# ascending\n+1 +2 +3\n+4 # recolor\n"), 0o600))

	rootCmd, buf := buildTestRootCmd(t)
	rootCmd.SetArgs([]string{"run", "--file", script, "--format", "yaml", "--", "-2"})

	require.NoError(t, rootCmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "key: 3")
	assert.Contains(t, out, "axioms: OK (3 keys)")
}

func TestRunCommand_JSONKeepsStdoutClean(t *testing.T) {
	rootCmd, _ := buildTestRootCmd(t)

	var stdout, stderr bytes.Buffer

	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"run", "--format", "json", "--", "+7", "+3", "?3"})

	require.NoError(t, rootCmd.Execute())

	var dump DumpNode

	require.NoError(t, json.Unmarshal(stdout.Bytes(), &dump), stdout.String())
	assert.Equal(t, 7, dump.Key)
	assert.NotContains(t, stdout.String(), "axioms")
	assert.NotContains(t, stdout.String(), "inserted")

	assert.Contains(t, stderr.String(), "inserted")
	assert.Contains(t, stderr.String(), "axioms: OK (2 keys)")
}

func TestRunCommand_Errors(t *testing.T) {
	tests := [][]string{
		{"run", "--", "+1", "bogus"},
		{"run", "--format", "xml", "--", "+1"},
		{"run", "--file", "/nonexistent/ops.txt"},
	}

	for _, args := range tests {
		rootCmd, _ := buildTestRootCmd(t)
		rootCmd.SetArgs(args)

		require.Error(t, rootCmd.Execute(), "args %v", args)
	}
}
