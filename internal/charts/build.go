package charts

import (
	"math"
	"strconv"
	"time"

	"weatherchart/internal/locale"
	"weatherchart/internal/models"
	"weatherchart/internal/units"
)

// Dataset positions inside ChartData.Datasets.
const (
	TempHighDataset = iota
	TempLowDataset
	PrecipDataset
)

// Env carries everything a render needs besides the series and card config.
type Env struct {
	Theme  Theme
	Locale locale.Locale
	// Direction overrides the locale's text direction when set to "rtl" or "ltr".
	Direction string
	// TempUnit is appended to temperature tooltips, e.g. "°C".
	TempUnit string
	// LengthUnit is the host's length unit; "km" selects metric precipitation.
	LengthUnit string
	Width      int
	Location   *time.Location
}

func (e Env) rtl() bool {
	switch e.Direction {
	case "rtl":
		return true
	case "ltr":
		return false
	}
	return e.Locale.RTL()
}

func (e Env) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

// PrecipitationScale returns the suggested ceiling of the precipitation axis
// and the unit shown next to precipitation values.
func PrecipitationScale(cfg models.ForecastConfig, lengthUnit string) (float64, string) {
	if cfg.PrecipitationType == models.PrecipitationProbability {
		return 100, "%"
	}
	hourly := cfg.Type == models.ForecastHourly
	if lengthUnit == "km" {
		if hourly {
			return 4, "mm"
		}
		return 20, "mm"
	}
	if hourly {
		return 1, "in"
	}
	return 5, "in"
}

// TempBounds returns min-5 and max+3 over all non-null temperatures.
func TempBounds(series models.ForecastSeries) (lo, hi *float64) {
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, values := range [][]*float64{series.TempHigh, series.TempLow} {
		for _, v := range values {
			if v == nil {
				continue
			}
			minV = math.Min(minV, *v)
			maxV = math.Max(maxV, *v)
		}
	}
	if math.IsInf(minV, 1) {
		return nil, nil
	}
	return models.Float(minV - 5), models.Float(maxV + 3)
}

// Build turns a normalized series into chart data and render options.
func Build(series models.ForecastSeries, cfg models.CardConfig, env Env) (*ChartData, Options) {
	fc := cfg.Forecast
	loc := env.Locale
	precipMax, precipUnit := PrecipitationScale(fc, env.LengthUnit)
	precipUnitLabel := loc.Unit(precipUnit)

	textColor := fc.ChartTextColor
	if textColor == "auto" || textColor == "" {
		textColor = env.Theme.Text
	}

	compactProbability := fc.PrecipitationType == models.PrecipitationRainfall && fc.ShowProbability && fc.Type != models.ForecastHourly
	labelPadding, tickPadding := 4, 10
	if compactProbability {
		labelPadding, tickPadding = 3, 4
	}

	base := DataLabels{
		Background: env.Theme.Background,
		Color:      textColor,
		Padding:    labelPadding,
		FontSize:   fc.LabelsFontSize,
	}

	tempLabels := func(ds int, color, align string) DataLabels {
		dl := base
		dl.BorderColor = color
		dl.Display = func(c *ChartData, i int) bool {
			return c.Value(ds, i) != nil
		}
		dl.Formatter = func(c *ChartData, i int) string {
			return formatNumber(c.Value(ds, i)) + "°"
		}
		if fc.Style == "style2" {
			dl.Align = align
			dl.Background = "transparent"
			dl.BorderColor = "transparent"
			dl.Color = fc.ChartTextColor
			if dl.Color == "" || dl.Color == "auto" {
				dl.Color = color
			}
		}
		return dl
	}

	tempTooltip := func(ds int) LabelFunc {
		return func(c *ChartData, i int) string {
			return c.Datasets[ds].Label + ": " + formatNumber(c.Value(ds, i)) + env.TempUnit
		}
	}

	precipLabels := base
	precipLabels.BorderColor = fc.PrecipitationColor
	precipLabels.Align = "top"
	precipLabels.Display = func(c *ChartData, i int) bool {
		v := c.Value(PrecipDataset, i)
		return v != nil && *v > 0
	}
	precipLabels.Formatter = func(c *ChartData, i int) string {
		v := c.Value(PrecipDataset, i)
		if v == nil {
			return ""
		}
		precision := int32(1)
		if *v > 1 {
			precision = 0
		}
		text := units.Value{Number: *v, Precision: precision}.String() + " " + precipUnitLabel
		if fc.ShowProbability && fc.PrecipitationType != models.PrecipitationProbability {
			if p := c.ProbabilityAt(i); p != nil {
				text += "\n\n" + units.Value{Number: *p}.String() + "%"
			}
		}
		return text
	}

	precipTooltip := func(c *ChartData, i int) string {
		text := c.Datasets[PrecipDataset].Label + ": " + formatNumber(c.Value(PrecipDataset, i)) + precipUnit
		if !fc.ShowProbability && fc.PrecipitationType != models.PrecipitationProbability {
			if p := c.ProbabilityAt(i); p != nil {
				text += " / " + units.Value{Number: *p}.String() + "%"
			}
		}
		return text
	}

	data := &ChartData{
		Labels: series.Timestamps,
		Datasets: []Dataset{
			{
				Label:        loc.Strings.TempHi,
				Kind:         KindLine,
				Axis:         AxisTemp,
				Data:         series.TempHigh,
				Color:        fc.Temperature1Color,
				SpanGaps:     true,
				DataLabels:   tempLabels(TempHighDataset, fc.Temperature1Color, "top"),
				TooltipLabel: tempTooltip(TempHighDataset),
			},
			{
				Label:        loc.Strings.TempLo,
				Kind:         KindLine,
				Axis:         AxisTemp,
				Data:         series.TempLow,
				Color:        fc.Temperature2Color,
				SpanGaps:     true,
				DataLabels:   tempLabels(TempLowDataset, fc.Temperature2Color, "bottom"),
				TooltipLabel: tempTooltip(TempLowDataset),
			},
			{
				Label:         loc.Strings.Precip,
				Kind:          KindBar,
				Axis:          AxisPrecip,
				Data:          toPointers(series.Precip),
				Color:         fc.PrecipitationColor,
				BarPercentage: float64(fc.PrecipBarSize) / 100,
				DataLabels:    precipLabels,
				TooltipLabel:  precipTooltip,
			},
		},
		Probability: series.Probability,
	}

	tempMin, tempMax := TempBounds(series)
	tickColor := fc.ChartDatetimeColor
	if tickColor == "" {
		tickColor = env.Theme.Text
	}

	opts := Options{
		Width:     env.Width,
		Height:    fc.ChartHeight,
		Theme:     env.Theme,
		Animation: !fc.DisableAnimation,
		XAxis: XAxis{
			Reverse:     env.rtl(),
			TickPadding: tickPadding,
			TickColor:   tickColor,
			Tick:        tickFormatter(fc.Type, cfg.Use12HourFormat, loc, env.location()),
		},
		TempAxis:   ValueAxis{SuggestedMin: tempMin, SuggestedMax: tempMax},
		PrecipAxis: ValueAxis{SuggestedMax: models.Float(precipMax)},
		TooltipTitle: func(t time.Time) string {
			return loc.DateTime(t.In(env.location()), cfg.Use12HourFormat)
		},
	}
	return data, opts
}

// tickFormatter labels hourly points with the hour, prefixed by the weekday
// at local midnight, and other types with the weekday only.
func tickFormatter(ft models.ForecastType, use12h bool, loc locale.Locale, tz *time.Location) func(time.Time) []string {
	return func(t time.Time) []string {
		t = t.In(tz)
		weekday := loc.Weekday(t)
		if ft != models.ForecastHourly {
			return []string{weekday}
		}
		hour := loc.Hour(t, use12h)
		if t.Hour() == 0 && t.Minute() == 0 {
			return []string{weekday, hour}
		}
		return []string{hour}
	}
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// SeriesData converts a series into the three dataset arrays in dataset order.
func SeriesData(series models.ForecastSeries) [3][]*float64 {
	return [3][]*float64{series.TempHigh, series.TempLow, toPointers(series.Precip)}
}

func toPointers(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		out[i] = models.Float(values[i])
	}
	return out
}
