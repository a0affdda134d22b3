package charts

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNGRenderer draws the forecast chart as a static PNG image.
type PNGRenderer struct{}

// NewPNGRenderer creates a PNG renderer.
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{}
}

// Create paints the chart once and returns the live resource.
func (r *PNGRenderer) Create(ctx context.Context, surface Surface, data *ChartData, opts Options) (Resource, error) {
	c, err := createPainted(ctx, paintPNG, surface, data, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var (
	defaultText       = drawing.Color{R: 33, G: 33, B: 33, A: 255}
	defaultBackground = drawing.ColorWhite
)

func paintPNG(_ string, data *ChartData, opts Options) ([]byte, string, error) {
	n := len(data.Labels)
	if n == 0 {
		return nil, "", fmt.Errorf("chart has no points")
	}

	textColor := parseColor(opts.Theme.Text, defaultText)
	tickColor := parseColor(opts.XAxis.TickColor, textColor)

	var series []chart.Series
	tempMin, tempMax := math.Inf(1), math.Inf(-1)
	precipMax := 0.0

	for ds, set := range data.Datasets {
		color := parseColor(set.Color, textColor)
		yAxis := chart.YAxisPrimary
		if set.Axis == AxisPrecip {
			yAxis = chart.YAxisSecondary
		}

		var xs, ys []float64
		var notes []chart.Value2
		for i, v := range set.Data {
			if v == nil {
				continue
			}
			xs = append(xs, float64(i))
			ys = append(ys, *v)
			if set.Axis == AxisPrecip {
				precipMax = math.Max(precipMax, *v)
			} else {
				tempMin = math.Min(tempMin, *v)
				tempMax = math.Max(tempMax, *v)
			}
			if set.DataLabels.Formatter != nil && (set.DataLabels.Display == nil || set.DataLabels.Display(data, i)) {
				notes = append(notes, chart.Value2{
					XValue: float64(i),
					YValue: *v,
					Label:  strings.ReplaceAll(set.DataLabels.Formatter(data, i), "\n\n", " "),
				})
			}
		}
		if len(xs) == 0 {
			continue
		}

		switch set.Kind {
		case KindBar:
			series = append(series, chart.HistogramSeries{
				Name:  set.Label,
				YAxis: yAxis,
				Style: chart.Style{
					FillColor:   color,
					StrokeColor: color,
					StrokeWidth: 1,
				},
				InnerSeries: chart.ContinuousSeries{XValues: xs, YValues: ys},
			})
		default:
			series = append(series, chart.ContinuousSeries{
				Name:  set.Label,
				YAxis: yAxis,
				Style: chart.Style{
					StrokeColor: color,
					StrokeWidth: 1.5,
					DotColor:    color,
					DotWidth:    2,
				},
				XValues: xs,
				YValues: ys,
			})
		}

		if len(notes) > 0 {
			series = append(series, chart.AnnotationSeries{
				Name:  fmt.Sprintf("%s labels %d", set.Label, ds),
				YAxis: yAxis,
				Style: chart.Style{
					FontSize:    float64(set.DataLabels.FontSize),
					FontColor:   parseColor(set.DataLabels.Color, textColor),
					FillColor:   parseColor(set.DataLabels.Background, defaultBackground),
					StrokeColor: parseColor(set.DataLabels.BorderColor, color),
					StrokeWidth: 1,
					Padding:     chart.NewBox(set.DataLabels.Padding, set.DataLabels.Padding, set.DataLabels.Padding, set.DataLabels.Padding),
				},
				Annotations: notes,
			})
		}
	}
	if len(series) == 0 {
		return nil, "", fmt.Errorf("chart has no values")
	}

	ticks := make([]chart.Tick, 0, n)
	for i, ts := range data.Labels {
		label := ""
		if opts.XAxis.Tick != nil {
			label = strings.Join(opts.XAxis.Tick(ts), " ")
		}
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: label})
	}

	graph := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			FillColor: parseColor(opts.Theme.Background, defaultBackground),
			Padding: chart.Box{
				Top:    opts.XAxis.TickPadding + 10,
				Left:   10,
				Right:  10,
				Bottom: 10,
			},
		},
		Canvas: chart.Style{
			FillColor: parseColor(opts.Theme.Background, defaultBackground),
		},
		XAxis: chart.XAxis{
			Style: chart.Style{
				FontSize:    tickFontSize(data),
				FontColor:   tickColor,
				StrokeColor: parseColor(opts.Theme.Divider, tickColor),
			},
			Range: &chart.ContinuousRange{
				Min:        -0.5,
				Max:        float64(n) - 0.5,
				Descending: opts.XAxis.Reverse,
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: suggestedRange(opts.TempAxis, tempMin, tempMax),
		},
		YAxisSecondary: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: suggestedRange(opts.PrecipAxis, 0, precipMax),
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, "", fmt.Errorf("failed to render forecast chart: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// suggestedRange widens the suggested bounds to include the data.
func suggestedRange(axis ValueAxis, dataMin, dataMax float64) *chart.ContinuousRange {
	lo, hi := dataMin, dataMax
	if axis.SuggestedMin != nil {
		lo = math.Min(lo, *axis.SuggestedMin)
	}
	if axis.SuggestedMax != nil {
		hi = math.Max(hi, *axis.SuggestedMax)
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		lo, hi = 0, 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// tickFontSize follows the label font size, 10pt when unset.
func tickFontSize(data *ChartData) float64 {
	size := 0
	for _, set := range data.Datasets {
		size = max(size, set.DataLabels.FontSize)
	}
	if size == 0 {
		return 10
	}
	return float64(size)
}
