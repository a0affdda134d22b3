package forecast

import (
	"math"

	"weatherchart/internal/models"
)

// itemPadding is the horizontal space added to the label font size per item.
const itemPadding = 20

// VisibleItems returns how many forecast points fit the container. A fixed
// number_of_forecasts wins; otherwise the width is divided by the label width.
func VisibleItems(cfg models.ForecastConfig, containerWidth int) int {
	if cfg.NumberOfForecasts > 0 {
		return cfg.NumberOfForecasts
	}
	perItem := float64(cfg.LabelsFontSize + itemPadding)
	n := int(math.Round(float64(containerWidth)/perItem - 1))
	if n < 0 {
		return 0
	}
	return n
}

// Layout describes the widths needed to show the visible window.
type Layout struct {
	Items int `json:"items"`
	// Width is the forecast container width; larger than the available
	// width when the window has to scroll horizontally.
	Width      int  `json:"width"`
	ChartWidth int  `json:"chart_width"`
	RowWidth   int  `json:"row_width"`
	Scroll     bool `json:"scroll"`
}

// Measure computes the layout for a container of the given width holding
// available forecast points.
func Measure(cfg models.ForecastConfig, containerWidth, available int) Layout {
	l := Layout{
		Items:      VisibleItems(cfg, containerWidth),
		Width:      containerWidth,
		ChartWidth: containerWidth,
		RowWidth:   containerWidth,
	}
	if cfg.NumberOfForecasts <= 0 || available == 0 {
		return l
	}

	font := float64(cfg.LabelsFontSize)
	wanted := (cfg.LabelsFontSize + itemPadding) * min(available, l.Items)
	if wanted < containerWidth {
		return l
	}
	l.Width = wanted
	l.ChartWidth = wanted + int(font*2.5) + 5
	l.RowWidth = wanted + int(font*2)
	l.Scroll = true
	return l
}
