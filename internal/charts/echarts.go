package charts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// EChartsRenderer draws the forecast chart as a self-contained ECharts page.
type EChartsRenderer struct{}

// NewEChartsRenderer creates an ECharts renderer.
func NewEChartsRenderer() *EChartsRenderer {
	return &EChartsRenderer{}
}

// Create paints the chart once and returns the live resource.
func (r *EChartsRenderer) Create(ctx context.Context, surface Surface, data *ChartData, opts Options) (Resource, error) {
	c, err := createPainted(ctx, paintECharts, surface, data, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func paintECharts(id string, data *ChartData, o Options) ([]byte, string, error) {
	n := len(data.Labels)
	if n == 0 {
		return nil, "", fmt.Errorf("chart has no points")
	}

	// RTL reverses the point order.
	order := make([]int, n)
	for i := range order {
		order[i] = i
		if o.XAxis.Reverse {
			order[i] = n - 1 - i
		}
	}

	ticks := make([]string, n)
	for pos, i := range order {
		if o.XAxis.Tick != nil {
			ticks[pos] = strings.Join(o.XAxis.Tick(data.Labels[i]), "\n")
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       "Forecast",
			Width:           fmt.Sprintf("%dpx", o.Width),
			Height:          fmt.Sprintf("%dpx", o.Height),
			BackgroundColor: o.Theme.Background,
			ChartID:         id,
		}),
		charts.WithLegendOpts(opts.Legend{Show: false}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: ticks}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Show: false,
			Min:  axisBound(o.TempAxis.SuggestedMin),
			Max:  axisBound(o.TempAxis.SuggestedMax),
		}),
	)
	bar.ExtendYAxis(opts.YAxis{
		Type: "value",
		Show: false,
		Min:  0,
		Max:  precipCeiling(data, o.PrecipAxis),
	})
	bar.SetXAxis(ticks)

	line := charts.NewLine()
	line.SetXAxis(ticks)

	for ds, set := range data.Datasets {
		switch set.Kind {
		case KindBar:
			items := make([]opts.BarData, n)
			for pos, i := range order {
				items[pos] = opts.BarData{Value: barValue(set.Data, i), Name: echartsLabel(data, set, i)}
			}
			bar.AddSeries(set.Label, items,
				charts.WithBarChartOpts(opts.BarChart{
					YAxisIndex:     1,
					BarCategoryGap: fmt.Sprintf("%d%%", int((1-set.BarPercentage)*100)),
				}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: set.Color}),
				charts.WithLabelOpts(opts.Label{
					Show:      true,
					Position:  "insideBottom",
					Color:     set.DataLabels.Color,
					Formatter: "{b}",
				}),
			)
		default:
			items := make([]opts.LineData, n)
			for pos, i := range order {
				items[pos] = opts.LineData{Value: lineValue(set.Data, i)}
			}
			position := "top"
			if ds == TempLowDataset {
				position = "bottom"
			}
			line.AddSeries(set.Label, items,
				charts.WithLineChartOpts(opts.LineChart{
					Smooth:       true,
					ConnectNulls: set.SpanGaps,
				}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: set.Color}),
				charts.WithLabelOpts(opts.Label{
					Show:      true,
					Position:  position,
					Color:     set.DataLabels.Color,
					Formatter: "{c}°",
				}),
			)
		}
	}
	bar.Overlap(line)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render forecast chart: %w", err)
	}
	return buf.Bytes(), "text/html; charset=utf-8", nil
}

// echartsLabel is the bar label text; empty where the label is hidden.
func echartsLabel(data *ChartData, set Dataset, i int) string {
	if set.DataLabels.Formatter == nil {
		return ""
	}
	if set.DataLabels.Display != nil && !set.DataLabels.Display(data, i) {
		return ""
	}
	return set.DataLabels.Formatter(data, i)
}

func axisBound(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// precipCeiling is the suggested maximum, raised to the largest bar.
func precipCeiling(data *ChartData, axis ValueAxis) interface{} {
	ceiling := axis.SuggestedMax
	for _, set := range data.Datasets {
		if set.Axis != AxisPrecip {
			continue
		}
		for _, v := range set.Data {
			if v != nil && (ceiling == nil || *v > *ceiling) {
				ceiling = v
			}
		}
	}
	return axisBound(ceiling)
}

func barValue(values []*float64, i int) interface{} {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

// lineValue uses "-", ECharts' marker for a missing point.
func lineValue(values []*float64, i int) interface{} {
	if i >= len(values) || values[i] == nil {
		return "-"
	}
	return *values[i]
}
