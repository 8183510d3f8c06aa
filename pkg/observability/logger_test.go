package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", observability.ModeStress))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "test message")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "stress", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "rbtree", observability.ModeRun))

	logger.InfoContext(context.Background(), "no span")

	record := decodeRecord(t, &buf)

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)
	assert.Equal(t, "rbtree", record["service"])
	assert.Equal(t, "run", record["mode"])
}

func TestTracingHandler_WithGroupKeepsServiceOnTop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "rbtree", observability.ModeRun))

	logger.WithGroup("tree").With("size", 3).Info("grouped")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "rbtree", record["service"])

	group, ok := record["tree"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, group["size"], 0)
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogLevel = slog.LevelWarn

	logger := observability.NewLogger(&buf, cfg)
	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept", "key", 5)

	record := decodeRecord(t, &buf)
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "rbtree", record["service"])

	buf.Reset()

	cfg.LogJSON = false
	observability.NewLogger(&buf, cfg).Error("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
