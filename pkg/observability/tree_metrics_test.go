package observability_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

func newProviders(t *testing.T) observability.Providers {
	t.Helper()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	return providers
}

func TestTreeMetrics_WriteMetrics(t *testing.T) {
	t.Parallel()

	providers := newProviders(t)
	ctx := context.Background()

	tm, err := observability.NewTreeMetrics(providers.Meter)
	require.NoError(t, err)

	tree := rbtree.New()
	t.Cleanup(tree.Erase)

	for key := range 10 {
		inserted, _ := tree.InsertNode(key)
		tm.RecordOperation(ctx, observability.OpInsert, inserted)
	}

	tm.RecordOperation(ctx, observability.OpFind, false)
	tm.RecordStats(ctx, tree.Stats())
	tm.RecordStats(ctx, tree.Stats())
	tm.RecordAxiomFailure(ctx)

	require.NoError(t, tm.PublishShape(tree))

	reg, err := tm.ObserveShape()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, reg.Unregister()) })

	var buf bytes.Buffer

	require.NoError(t, observability.WriteMetrics(&buf, providers.Registry))

	text := buf.String()
	assert.Contains(t, text, "rbtree_operations")
	assert.Contains(t, text, `op="insert"`)
	assert.Contains(t, text, `result="miss"`)
	assert.Contains(t, text, "rbtree_rotations")
	assert.Regexp(t, `rbtree_size(\{[^}]*\})? 10\n`, text)
	assert.Contains(t, text, "rbtree_height")
	assert.Contains(t, text, "rbtree_axiom_failures")
}

func TestTreeMetrics_PublishNilTree(t *testing.T) {
	t.Parallel()

	tm, err := observability.NewTreeMetrics(newProviders(t).Meter)
	require.NoError(t, err)

	require.ErrorIs(t, tm.PublishShape(nil), observability.ErrNilTree)
}

// discardExporter drops every batch; it only drives the periodic reader.
type discardExporter struct{}

func (discardExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (discardExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (discardExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }

func (discardExporter) ForceFlush(context.Context) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }

// Run with -race: collections happen on the reader goroutine while the tree
// keeps changing on this one.
func TestTreeMetrics_PeriodicCollectionDuringChurn(t *testing.T) {
	t.Parallel()

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(discardExporter{}, sdkmetric.WithInterval(time.Millisecond)),
	))

	tm, err := observability.NewTreeMetrics(provider.Meter("churn"))
	require.NoError(t, err)

	reg, err := tm.ObserveShape()
	require.NoError(t, err)

	tree := rbtree.New()
	ctx := context.Background()

	for deadline := time.Now().Add(100 * time.Millisecond); time.Now().Before(deadline); {
		for key := range 64 {
			inserted, _ := tree.InsertNode(key)
			tm.RecordOperation(ctx, observability.OpInsert, inserted)
		}

		require.NoError(t, tm.PublishShape(tree))

		for key := range 64 {
			tm.RecordOperation(ctx, observability.OpDelete, tree.DeleteNode(key))
		}

		tm.RecordStats(ctx, tree.Stats())
		require.NoError(t, tm.PublishShape(tree))
	}

	require.NoError(t, reg.Unregister())
	require.NoError(t, provider.Shutdown(ctx))
	require.NoError(t, tree.Verify())
	tree.Erase()
}

func TestPrometheusHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	providers := newProviders(t)

	tm, err := observability.NewTreeMetrics(providers.Meter)
	require.NoError(t, err)
	tm.RecordOperation(context.Background(), observability.OpDelete, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()

	observability.PrometheusHandler(providers.Registry).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "target_info")
	assert.Contains(t, rec.Body.String(), `op="delete"`)
}
