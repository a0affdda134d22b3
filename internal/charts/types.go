// Package charts owns the single live forecast chart and renders it either
// as a PNG (go-chart) or as an ECharts HTML page (go-echarts).
package charts

import (
	"context"
	"errors"
	"time"
)

// ErrResourceDestroyed is returned by Update on a destroyed resource.
var ErrResourceDestroyed = errors.New("chart resource already destroyed")

// Axis identifiers used by datasets.
const (
	AxisTemp   = "TempAxis"
	AxisPrecip = "PrecipAxis"
)

// DatasetKind selects how a dataset is drawn.
type DatasetKind string

const (
	KindLine DatasetKind = "line"
	KindBar  DatasetKind = "bar"
)

// LabelFunc formats a label for point i. It reads the live chart data so
// that formatters stay correct after an in-place update.
type LabelFunc func(data *ChartData, i int) string

// DisplayFunc decides whether the label for point i is drawn.
type DisplayFunc func(data *ChartData, i int) bool

// DataLabels describes the value labels drawn next to each point.
type DataLabels struct {
	Display     DisplayFunc
	Formatter   LabelFunc
	Color       string
	Background  string
	BorderColor string
	Padding     int
	FontSize    int
	// Align is "top", "bottom" or empty for centred.
	Align string
}

// Dataset is one series of the chart.
type Dataset struct {
	Label         string
	Kind          DatasetKind
	Axis          string
	Data          []*float64
	Color         string
	SpanGaps      bool
	BarPercentage float64
	DataLabels    DataLabels
	TooltipLabel  LabelFunc
}

// ChartData is the mutable data of a chart resource.
type ChartData struct {
	Labels   []time.Time
	Datasets []Dataset
	// Probability is kept alongside the datasets for the precipitation
	// label and tooltip formatters.
	Probability []*float64
}

// Value returns dataset ds at point i, or nil.
func (c *ChartData) Value(ds, i int) *float64 {
	if ds < 0 || ds >= len(c.Datasets) || i < 0 || i >= len(c.Datasets[ds].Data) {
		return nil
	}
	return c.Datasets[ds].Data[i]
}

// ProbabilityAt returns the precipitation probability at point i, or nil.
func (c *ChartData) ProbabilityAt(i int) *float64 {
	if i < 0 || i >= len(c.Probability) {
		return nil
	}
	return c.Probability[i]
}

// Theme carries the colours of one render. It is passed explicitly into
// every chart creation.
type Theme struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Divider    string `json:"divider"`
}

// ValueAxis holds suggested bounds; data outside them still widens the axis.
type ValueAxis struct {
	SuggestedMin *float64
	SuggestedMax *float64
}

// XAxis describes the time axis.
type XAxis struct {
	Reverse     bool
	TickPadding int
	TickColor   string
	// Tick returns the lines of the label for a timestamp.
	Tick func(t time.Time) []string
}

// Options are the render options of a chart resource.
type Options struct {
	Width        int
	Height       int
	Theme        Theme
	Animation    bool
	XAxis        XAxis
	TempAxis     ValueAxis
	PrecipAxis   ValueAxis
	TooltipTitle func(t time.Time) string
}

// Surface is where a chart is drawn to.
type Surface interface {
	Name() string
	Publish(ctx context.Context, content []byte, contentType string) error
}

// Resource is a live chart bound to a surface.
type Resource interface {
	// Data returns the mutable chart data. Changes become visible on Update.
	Data() *ChartData
	Update(ctx context.Context) error
	Destroy() error
}

// Renderer creates chart resources.
type Renderer interface {
	Create(ctx context.Context, surface Surface, data *ChartData, opts Options) (Resource, error)
}
