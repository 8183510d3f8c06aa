package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/redblack/pkg/config"
	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// ErrMemoryLimit is returned when the node arena outgrows workload.max_memory.
var ErrMemoryLimit = errors.New("allocator exceeded the memory limit")

// maxChartSamples bounds the number of points in the height chart.
const maxChartSamples = 200

// StressReport summarizes a randomized workload.
type StressReport struct {
	Ops             int
	Inserted        int
	Deleted         int
	Misses          int
	Checks          int
	Stats           rbtree.Stats
	Len             int
	Height          int
	BlackHeight     int
	AllocatorSize   int
	MemoryBytes     uint64
	HibernatedBytes int
	Samples         []HeightSample
}

// Workload drives random inserts and deletes against a tree.
type Workload struct {
	Config   config.WorkloadConfig
	MaxBytes uint64
	Metrics  *observability.TreeMetrics
	Logger   *slog.Logger
}

// Run applies Config.Count operations and checks the axioms every
// Config.CheckEvery operations, and once more at the end.
func (wl *Workload) Run(ctx context.Context, tree *rbtree.Tree) (StressReport, error) {
	cfg := wl.Config
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed))) //nolint:gosec // reproducible workload, not crypto.
	report := StressReport{Ops: cfg.Count}
	sampleEvery := max(cfg.Count/maxChartSamples, 1)

	for step := 1; step <= cfg.Count; step++ {
		key := rng.IntN(cfg.KeySpan)

		if rng.Float64() < cfg.DeleteRatio {
			hit := tree.DeleteNode(key)
			wl.count(ctx, &report, OpDelete, hit)
		} else {
			hit, _ := tree.InsertNode(key)
			wl.count(ctx, &report, OpInsert, hit)
		}

		if wl.MaxBytes > 0 && tree.Allocator().MemoryBytes() > wl.MaxBytes {
			return report, fmt.Errorf("%w: %s > %s after op %d", ErrMemoryLimit,
				humanize.IBytes(tree.Allocator().MemoryBytes()), humanize.IBytes(wl.MaxBytes), step)
		}

		if cfg.CheckEvery > 0 && step%cfg.CheckEvery == 0 {
			err := wl.check(ctx, tree, &report, step)
			if err != nil {
				return report, err
			}
		}

		if step%sampleEvery == 0 || step == cfg.Count {
			report.Samples = append(report.Samples, HeightSample{Op: step, Size: tree.Len(), Height: tree.Height()})

			err := wl.publish(tree)
			if err != nil {
				return report, err
			}
		}
	}

	err := wl.check(ctx, tree, &report, cfg.Count)
	if err != nil {
		return report, err
	}

	report.Stats = tree.Stats()
	report.Len = tree.Len()
	report.Height = tree.Height()
	report.AllocatorSize = tree.Allocator().Size()
	report.MemoryBytes = tree.Allocator().MemoryBytes()

	report.BlackHeight, err = tree.BlackHeight()
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrAxiomViolation, err)
	}

	return report, nil
}

// publish hands the tree shape to metric collections, which may run on
// another goroutine and must never read the tree itself.
func (wl *Workload) publish(tree *rbtree.Tree) error {
	if wl.Metrics == nil {
		return nil
	}

	return wl.Metrics.PublishShape(tree)
}

func (wl *Workload) count(ctx context.Context, report *StressReport, kind OpKind, hit bool) {
	switch {
	case !hit:
		report.Misses++
	case kind == OpInsert:
		report.Inserted++
	default:
		report.Deleted++
	}

	if wl.Metrics != nil {
		wl.Metrics.RecordOperation(ctx, kind.String(), hit)
	}
}

func (wl *Workload) check(ctx context.Context, tree *rbtree.Tree, report *StressReport, step int) error {
	report.Checks++

	if wl.Metrics != nil {
		wl.Metrics.RecordStats(ctx, tree.Stats())
	}

	err := tree.Verify()
	if err == nil {
		return nil
	}

	if wl.Metrics != nil {
		wl.Metrics.RecordAxiomFailure(ctx)
	}

	if wl.Logger != nil {
		wl.Logger.ErrorContext(ctx, "axiom check failed", "op", step, "keys", tree.Len(), "error", err)
	}

	return fmt.Errorf("%w after op %d: %w", ErrAxiomViolation, step, err)
}

// StressCommand runs the randomized workload.
type StressCommand struct {
	global      *GlobalOptions
	count       int
	seed        int64
	deleteRatio float64
	hibernate   bool
	metrics     bool
	metricsAddr string
	chartPath   string
}

// NewStressCommand creates the stress command.
func NewStressCommand(global *GlobalOptions) *cobra.Command {
	sc := &StressCommand{global: global}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized workload and check the red-black axioms",
		Long: `Insert and delete random keys, checking the red-black axioms every
workload.check_every operations. Flags override the configuration file.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().IntVarP(&sc.count, "count", "n", 0, "number of operations")
	cmd.Flags().Int64Var(&sc.seed, "seed", 0, "random seed")
	cmd.Flags().Float64Var(&sc.deleteRatio, "delete-ratio", 0, "share of operations that are deletes")
	cmd.Flags().BoolVar(&sc.hibernate, "hibernate", false, "hibernate and boot the allocator after the workload")
	cmd.Flags().BoolVar(&sc.metrics, "metrics", false, "print the collected metrics in Prometheus text format")
	cmd.Flags().StringVar(&sc.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&sc.chartPath, "chart", "", "write an HTML chart of the tree height to this path")

	return cmd
}

func (sc *StressCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, providers, err := sc.global.setup(observability.ModeStress)
	if err != nil {
		return err
	}

	err = sc.applyFlags(cmd, cfg)
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

	maxBytes, err := cfg.MaxMemoryBytes()
	if err != nil {
		return err
	}

	treeMetrics, err := observability.NewTreeMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create tree metrics: %w", err)
	}

	allocator := rbtree.NewAllocator()
	allocator.HibernationThreshold = cfg.Allocator.HibernationThreshold
	tree := rbtree.NewTree(allocator)

	defer tree.Erase()

	registration, err := treeMetrics.ObserveShape()
	if err != nil {
		return err
	}

	defer func() { _ = registration.Unregister() }()

	if sc.metricsAddr != "" {
		server, serveErr := observability.NewMetricsServer(sc.metricsAddr, providers.Registry, providers.Logger)
		if serveErr != nil {
			return serveErr
		}

		defer func() {
			closeErr := server.Close(ctx)
			if closeErr != nil {
				providers.Logger.WarnContext(ctx, "metrics server shutdown failed", "error", closeErr)
			}
		}()

		fmt.Fprintf(cmd.ErrOrStderr(), "serving metrics on http://%s/metrics\n", server.Addr())
	}

	ctx, span := providers.Tracer.Start(ctx, "rbtree.stress", trace.WithAttributes(
		attribute.Int("workload.count", cfg.Workload.Count),
		attribute.Int64("workload.seed", cfg.Workload.Seed),
	))
	defer span.End()

	providers.Logger.InfoContext(ctx, "workload started",
		"count", cfg.Workload.Count, "seed", cfg.Workload.Seed, "delete_ratio", cfg.Workload.DeleteRatio)

	workload := &Workload{Config: cfg.Workload, MaxBytes: maxBytes, Metrics: treeMetrics, Logger: providers.Logger}

	report, err := workload.Run(ctx, tree)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workload failed")

		return err
	}

	if sc.hibernate {
		report.HibernatedBytes, err = hibernateRoundTrip(tree)
		if err != nil {
			span.RecordError(err)

			return err
		}
	}

	providers.Logger.InfoContext(ctx, "workload finished",
		"keys", report.Len, "height", report.Height, "rotations", report.Stats.Rotations)

	out := cmd.OutOrStdout()
	writeReport(out, report)

	if sc.chartPath != "" {
		err = writeChartFile(sc.chartPath, report.Samples)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "chart written to %s\n", sc.chartPath)
	}

	if sc.metrics {
		return observability.WriteMetrics(out, providers.Registry)
	}

	return nil
}

func (sc *StressCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("count") {
		if sc.count <= 0 {
			return fmt.Errorf("%w: %d", config.ErrInvalidCount, sc.count)
		}

		cfg.Workload.Count = sc.count
	}

	if cmd.Flags().Changed("seed") {
		cfg.Workload.Seed = sc.seed
	}

	if cmd.Flags().Changed("delete-ratio") {
		if sc.deleteRatio < 0 || sc.deleteRatio > 1 {
			return fmt.Errorf("%w: %v", config.ErrInvalidDeleteRatio, sc.deleteRatio)
		}

		cfg.Workload.DeleteRatio = sc.deleteRatio
	}

	return nil
}

// hibernateRoundTrip compresses the tree's allocator, boots it back and
// checks that the tree survived. Returns the compressed size.
func hibernateRoundTrip(tree *rbtree.Tree) (int, error) {
	allocator := tree.Allocator()
	allocator.Hibernate()

	if !allocator.Hibernated() {
		return 0, nil
	}

	hibernated := allocator.HibernatedBytes()

	err := allocator.Boot()
	if err != nil {
		return 0, err
	}

	err = tree.Verify()
	if err != nil {
		return 0, fmt.Errorf("%w after boot: %w", ErrAxiomViolation, err)
	}

	return hibernated, nil
}

func writeChartFile(path string, samples []HeightSample) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}

	err = WriteHeightChart(file, samples)
	if err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

func writeReport(out io.Writer, report StressReport) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	tbl.AppendRows([]table.Row{
		{"operations", humanize.Comma(int64(report.Ops))},
		{"inserted", humanize.Comma(int64(report.Inserted))},
		{"deleted", humanize.Comma(int64(report.Deleted))},
		{"misses", humanize.Comma(int64(report.Misses))},
		{"axiom checks", humanize.Comma(int64(report.Checks))},
		{"rotations", commaUint(report.Stats.Rotations)},
		{"recolors", commaUint(report.Stats.Recolors)},
		{"keys", humanize.Comma(int64(report.Len))},
		{"height", report.Height},
		{"height bound", fmt.Sprintf("%.2f", HeightBound(report.Len))},
		{"black-height", report.BlackHeight},
		{"allocator slots", humanize.Comma(int64(report.AllocatorSize))},
		{"allocator memory", humanize.IBytes(report.MemoryBytes)},
	})

	if report.HibernatedBytes > 0 {
		tbl.AppendRow(table.Row{"hibernated", humanize.IBytes(uint64(report.HibernatedBytes))})
	}

	tbl.Render()

	color.New(color.FgGreen).Fprintf(out, "axioms: OK (%d checks)\n", report.Checks)
}

func commaUint(value uint64) string {
	return humanize.Comma(int64(value)) //nolint:gosec // counters stay far below MaxInt64.
}
