// Package forecast turns raw feed points into the parallel series the chart
// consumes and works out how many points fit the visible window.
package forecast

import (
	"math"
	"time"

	"weatherchart/internal/models"
)

// Autoscroll cutoffs: points older than this are dropped from the window.
const (
	HourlyCutoff  = time.Hour
	DefaultCutoff = 24 * time.Hour
)

// Normalize reshapes the first windowSize points into a ForecastSeries.
//
// With autoscroll enabled, points further in the past than the cutoff for
// the forecast type are skipped. Twice-daily points fill either the high or
// the low slot depending on is_daytime; other types use temperature and
// templow, optionally rounded. Precipitation falls back to 0 when absent.
func Normalize(points []models.ForecastPoint, cfg models.CardConfig, windowSize int, now time.Time) models.ForecastSeries {
	points = Visible(points, cfg, windowSize, now)

	series := models.ForecastSeries{
		Timestamps:  make([]time.Time, 0, len(points)),
		TempHigh:    make([]*float64, 0, len(points)),
		TempLow:     make([]*float64, 0, len(points)),
		Precip:      make([]float64, 0, len(points)),
		Probability: make([]*float64, 0, len(points)),
	}

	for _, p := range points {
		high, low := temperatureSlots(p, cfg.Forecast)
		series.Timestamps = append(series.Timestamps, p.Datetime)
		series.TempHigh = append(series.TempHigh, high)
		series.TempLow = append(series.TempLow, low)
		series.Precip = append(series.Precip, precipitation(p, cfg.Forecast.PrecipitationType))
		series.Probability = append(series.Probability, p.PrecipitationProbability)
	}
	return series
}

// Visible returns the points shown in the window: the first windowSize
// points, minus those autoscroll has moved past. The input is not modified.
func Visible(points []models.ForecastPoint, cfg models.CardConfig, windowSize int, now time.Time) []models.ForecastPoint {
	if windowSize < 0 {
		windowSize = 0
	}
	if len(points) > windowSize {
		points = points[:windowSize]
	}
	if !cfg.Autoscroll {
		return points
	}

	cutoff := Cutoff(cfg.Forecast.Type)
	visible := make([]models.ForecastPoint, 0, len(points))
	for _, p := range points {
		if now.Sub(p.Datetime) > cutoff {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}

// Cutoff returns how far in the past a point may lie before autoscroll hides it.
func Cutoff(t models.ForecastType) time.Duration {
	if t == models.ForecastHourly {
		return HourlyCutoff
	}
	return DefaultCutoff
}

func temperatureSlots(p models.ForecastPoint, cfg models.ForecastConfig) (high, low *float64) {
	if cfg.Type == models.ForecastTwiceDaily {
		if p.IsDaytime != nil && *p.IsDaytime {
			return models.Float(p.Temperature), nil
		}
		return nil, models.Float(p.Temperature)
	}

	high = models.Float(p.Temperature)
	if p.TempLow != nil {
		low = models.Float(*p.TempLow)
	}
	if cfg.RoundTemp {
		high = roundTemp(high)
		low = roundTemp(low)
	}
	return high, low
}

// roundTemp rounds half up, so -2.5 becomes -2.
func roundTemp(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(math.Floor(*v + 0.5))
}

func precipitation(p models.ForecastPoint, kind models.PrecipitationType) float64 {
	v := p.Precipitation
	if kind == models.PrecipitationProbability {
		v = p.PrecipitationProbability
	}
	if v == nil {
		return 0
	}
	return *v
}
