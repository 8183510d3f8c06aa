package commands

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth     = "100%"
	chartHeight    = "500px"
	lineWidth      = 2
	lineWidthThin  = 1
	heightColor    = "#5470c6"
	boundColor     = "#ee6666"
	boundLineStyle = "dashed"
)

// HeightSample records the tree height at a given size.
type HeightSample struct {
	Op     int
	Size   int
	Height int
}

// HeightBound is the red-black height limit 2*log2(n+1) for n keys.
func HeightBound(size int) float64 {
	return 2 * math.Log2(float64(size)+1) //nolint:mnd // the bound's factor.
}

func buildHeightChart(samples []HeightSample) *charts.Line {
	labels := make([]string, len(samples))
	heights := make([]opts.LineData, len(samples))
	bounds := make([]opts.LineData, len(samples))

	for idx, sample := range samples {
		labels[idx] = strconv.Itoa(sample.Op)
		heights[idx] = opts.LineData{Value: sample.Height, Name: fmt.Sprintf("%d keys", sample.Size)}
		bounds[idx] = opts.LineData{Value: math.Round(HeightBound(sample.Size)*100) / 100} //nolint:mnd // two decimals.
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "rbtree height", Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Tree height", Subtitle: "against the 2·log2(n+1) bound", Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "10%", Left: "center"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Operation"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Height"}),
	)
	line.SetXAxis(labels)

	line.AddSeries("height", heights,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: heightColor}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)
	line.AddSeries("2·log2(n+1)", bounds,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: boundColor}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidthThin, Type: boundLineStyle}),
	)

	return line
}

// WriteHeightChart renders the samples as an HTML line chart.
func WriteHeightChart(out io.Writer, samples []HeightSample) error {
	err := buildHeightChart(samples).Render(out)
	if err != nil {
		return fmt.Errorf("render height chart: %w", err)
	}

	return nil
}
