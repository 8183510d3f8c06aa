package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rbtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Workload.Count)
	assert.Equal(t, 1<<16, cfg.Workload.KeySpan)
	assert.InDelta(t, 0.4, cfg.Workload.DeleteRatio, 1e-9)
	assert.Equal(t, 1, cfg.Workload.CheckEvery)
	assert.Equal(t, int64(1), cfg.Workload.Seed)
	assert.Equal(t, 1000, cfg.Allocator.HibernationThreshold)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.OTLPEndpoint)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	limit, err := cfg.MaxMemoryBytes()
	require.NoError(t, err)
	assert.Zero(t, limit)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
logging:
  level: debug
  format: json

allocator:
  hibernation_threshold: 0

workload:
  count: 500
  seed: 42
  delete_ratio: 0.25
  max_memory: 64MiB
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Workload.Count)
	assert.Equal(t, int64(42), cfg.Workload.Seed)
	assert.InDelta(t, 0.25, cfg.Workload.DeleteRatio, 1e-9)
	assert.Equal(t, 0, cfg.Allocator.HibernationThreshold)
	assert.Equal(t, "json", cfg.Logging.Format)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	limit, err := cfg.MaxMemoryBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<20), limit)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("RBTREE_WORKLOAD_COUNT", "77")
	t.Setenv("RBTREE_LOGGING_LEVEL", "warn")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 77, cfg.Workload.Count)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    error
	}{
		{"count", "workload:\n  count: 0\n", config.ErrInvalidCount},
		{"key_span", "workload:\n  key_span: -1\n", config.ErrInvalidKeySpan},
		{"delete_ratio", "workload:\n  delete_ratio: 1.5\n", config.ErrInvalidDeleteRatio},
		{"check_every", "workload:\n  check_every: -2\n", config.ErrInvalidCheckEvery},
		{"max_memory", "workload:\n  max_memory: lots\n", config.ErrInvalidMaxMemory},
		{"threshold", "allocator:\n  hibernation_threshold: -1\n", config.ErrInvalidThreshold},
		{"log_level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"log_format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tc.content))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
