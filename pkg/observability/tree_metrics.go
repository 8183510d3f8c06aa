package observability

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const (
	metricOperations   = "rbtree.operations"
	metricRotations    = "rbtree.rotations"
	metricRecolors     = "rbtree.recolors"
	metricFixupSteps   = "rbtree.fixup.steps"
	metricTreeSize     = "rbtree.size"
	metricTreeHeight   = "rbtree.height"
	metricArenaSlots   = "rbtree.arena.slots"
	metricAxiomFailure = "rbtree.axiom.failures"

	attrOp     = "op"
	attrResult = "result"
	attrPhase  = "phase"

	// Operation names.
	OpInsert = "insert"
	OpDelete = "delete"
	OpFind   = "find"
)

// ErrNilTree is returned when observing a nil tree.
var ErrNilTree = errors.New("nil tree")

// metricBuilder accumulates instrument creation errors so that a batch of
// instruments is checked once.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) gauge(name, desc, unit string) metric.Int64ObservableGauge {
	g, err := b.meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return g
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// TreeMetrics holds the OTel instruments describing a tree workload.
type TreeMetrics struct {
	operations    metric.Int64Counter
	rotations     metric.Int64Counter
	recolors      metric.Int64Counter
	fixupSteps    metric.Int64Counter
	axiomFailures metric.Int64Counter
	size          metric.Int64ObservableGauge
	height        metric.Int64ObservableGauge
	arenaSlots    metric.Int64ObservableGauge
	meter         metric.Meter

	// Stats already reported, so that only deltas are added.
	reported rbtree.Stats

	shape treeShape
}

// treeShape is written by the tree owner and read by metric collections.
type treeShape struct {
	size   atomic.Int64
	height atomic.Int64
	slots  atomic.Int64
}

// NewTreeMetrics creates the tree instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	b := &metricBuilder{meter: mt}

	tm := &TreeMetrics{
		operations:    b.counter(metricOperations, "Tree operations by kind and result", "{operation}"),
		rotations:     b.counter(metricRotations, "Subtree rotations performed by rebalancing", "{rotation}"),
		recolors:      b.counter(metricRecolors, "Node color changes performed by rebalancing", "{recolor}"),
		fixupSteps:    b.counter(metricFixupSteps, "Rebalancing loop iterations", "{step}"),
		axiomFailures: b.counter(metricAxiomFailure, "Red-black axiom checks that failed", "{failure}"),
		size:          b.gauge(metricTreeSize, "Keys stored in the tree", "{key}"),
		height:        b.gauge(metricTreeHeight, "Longest root-to-leaf path", "{node}"),
		arenaSlots:    b.gauge(metricArenaSlots, "Slots allocated by the node arena", "{slot}"),
		meter:         mt,
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordOperation counts one tree operation. hit is true when the operation
// changed the tree or found the key.
func (tm *TreeMetrics) RecordOperation(ctx context.Context, op string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	tm.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrResult, result),
	))
}

// RecordAxiomFailure counts a failed invariant check.
func (tm *TreeMetrics) RecordAxiomFailure(ctx context.Context) {
	tm.axiomFailures.Add(ctx, 1)
}

// RecordStats adds the growth of the rebalancing counters since the previous call.
func (tm *TreeMetrics) RecordStats(ctx context.Context, stats rbtree.Stats) {
	tm.rotations.Add(ctx, delta(stats.Rotations, tm.reported.Rotations))
	tm.recolors.Add(ctx, delta(stats.Recolors, tm.reported.Recolors))
	tm.fixupSteps.Add(ctx, delta(stats.InsertFixups, tm.reported.InsertFixups),
		metric.WithAttributes(attribute.String(attrPhase, OpInsert)))
	tm.fixupSteps.Add(ctx, delta(stats.DeleteFixups, tm.reported.DeleteFixups),
		metric.WithAttributes(attribute.String(attrPhase, OpDelete)))

	tm.reported = stats
}

// PublishShape stores the current size, height and arena slots of tree for
// the next collection. Call it from the goroutine that owns the tree;
// collections read only the published values.
func (tm *TreeMetrics) PublishShape(tree *rbtree.Tree) error {
	if tree == nil {
		return ErrNilTree
	}

	tm.shape.size.Store(int64(tree.Len()))
	tm.shape.height.Store(int64(tree.Height()))
	tm.shape.slots.Store(int64(tree.Allocator().Size()))

	return nil
}

// ObserveShape reports the last published shape on every collection. It is
// safe to collect from another goroutine, e.g. a periodic OTLP reader.
func (tm *TreeMetrics) ObserveShape() (metric.Registration, error) {
	reg, err := tm.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(tm.size, tm.shape.size.Load())
		obs.ObserveInt64(tm.height, tm.shape.height.Load())
		obs.ObserveInt64(tm.arenaSlots, tm.shape.slots.Load())

		return nil
	}, tm.size, tm.height, tm.arenaSlots)
	if err != nil {
		return nil, fmt.Errorf("register tree callback: %w", err)
	}

	return reg, nil
}

func delta(current, previous uint64) int64 {
	if current < previous {
		return 0
	}

	return int64(current - previous) //nolint:gosec // per-interval growth is far below MaxInt64.
}
