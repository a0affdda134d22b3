package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weatherchart/internal/models"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func cardConfig(t models.ForecastType) models.CardConfig {
	return models.CardConfig{
		Entity: "weather.home",
		Forecast: models.ForecastConfig{
			Type:              t,
			PrecipitationType: models.PrecipitationRainfall,
			LabelsFontSize:    11,
		},
	}
}

func hourlyPoints(n int, start time.Time) []models.ForecastPoint {
	points := make([]models.ForecastPoint, n)
	for i := range points {
		points[i] = models.ForecastPoint{
			Datetime:    start.Add(time.Duration(i) * time.Hour),
			Temperature: float64(10 + i),
		}
	}
	return points
}

func TestNormalizeLengthsAndWindow(t *testing.T) {
	points := hourlyPoints(10, base)
	for _, window := range []int{0, 1, 4, 10, 25} {
		s := Normalize(points, cardConfig(models.ForecastHourly), window, base)
		require.Equal(t, len(s.Timestamps), len(s.TempHigh))
		require.Equal(t, len(s.Timestamps), len(s.TempLow))
		require.Equal(t, len(s.Timestamps), len(s.Precip))
		require.Equal(t, len(s.Timestamps), len(s.Probability))
		require.LessOrEqual(t, s.Len(), window)
		require.Equal(t, min(window, len(points)), s.Len())
	}
}

func TestNormalizePreservesOrder(t *testing.T) {
	points := hourlyPoints(5, base)
	s := Normalize(points, cardConfig(models.ForecastHourly), 5, base)
	for i, p := range points {
		require.Equal(t, p.Datetime, s.Timestamps[i])
		require.Equal(t, p.Temperature, *s.TempHigh[i])
	}
}

func TestNormalizeAutoscrollCutoff(t *testing.T) {
	now := base
	points := []models.ForecastPoint{
		{Datetime: now.Add(-61 * time.Minute), Temperature: 1},
		{Datetime: now.Add(-59 * time.Minute), Temperature: 2},
		{Datetime: now.Add(time.Hour), Temperature: 3},
	}

	cfg := cardConfig(models.ForecastHourly)
	cfg.Autoscroll = true
	s := Normalize(points, cfg, 10, now)
	require.Equal(t, 2, s.Len())
	require.Equal(t, 2.0, *s.TempHigh[0])
	require.Equal(t, 3.0, *s.TempHigh[1])

	// daily keeps anything from the last 24 hours
	cfg = cardConfig(models.ForecastDaily)
	cfg.Autoscroll = true
	daily := []models.ForecastPoint{
		{Datetime: now.Add(-25 * time.Hour), Temperature: 1},
		{Datetime: now.Add(-23 * time.Hour), Temperature: 2},
	}
	s = Normalize(daily, cfg, 10, now)
	require.Equal(t, 1, s.Len())
	require.Equal(t, 2.0, *s.TempHigh[0])

	// without autoscroll nothing is filtered
	cfg.Autoscroll = false
	require.Equal(t, 2, Normalize(daily, cfg, 10, now).Len())
}

func TestNormalizeTruncatesBeforeFiltering(t *testing.T) {
	points := []models.ForecastPoint{
		{Datetime: base.Add(-3 * time.Hour), Temperature: 1},
		{Datetime: base.Add(-2 * time.Hour), Temperature: 2},
		{Datetime: base.Add(time.Hour), Temperature: 3},
	}
	cfg := cardConfig(models.ForecastHourly)
	cfg.Autoscroll = true
	require.Equal(t, 0, Normalize(points, cfg, 2, base).Len())
}

func TestNormalizeTwiceDaily(t *testing.T) {
	points := []models.ForecastPoint{
		{Datetime: base, Temperature: 20, IsDaytime: models.Bool(true), TempLow: models.Float(5)},
		{Datetime: base.Add(12 * time.Hour), Temperature: 9, IsDaytime: models.Bool(false)},
		{Datetime: base.Add(24 * time.Hour), Temperature: 8},
	}
	cfg := cardConfig(models.ForecastTwiceDaily)
	cfg.Forecast.RoundTemp = true

	s := Normalize(points, cfg, 3, base)
	require.Equal(t, 20.0, *s.TempHigh[0])
	require.Nil(t, s.TempLow[0])
	require.Nil(t, s.TempHigh[1])
	require.Equal(t, 9.0, *s.TempLow[1])
	require.Nil(t, s.TempHigh[2])
	require.Equal(t, 8.0, *s.TempLow[2])
}

func TestNormalizeDailyRounding(t *testing.T) {
	points := []models.ForecastPoint{{
		Datetime:      base,
		Temperature:   21.6,
		TempLow:       models.Float(14.2),
		Precipitation: models.Float(2.3),
	}}
	cfg := cardConfig(models.ForecastDaily)
	cfg.Forecast.RoundTemp = true

	s := Normalize(points, cfg, 1, base)
	require.Equal(t, 22.0, *s.TempHigh[0])
	require.Equal(t, 14.0, *s.TempLow[0])
	require.Equal(t, 2.3, s.Precip[0])
}

func TestNormalizeRoundingHalfUp(t *testing.T) {
	points := []models.ForecastPoint{{Datetime: base, Temperature: -2.5, TempLow: models.Float(2.5)}}
	cfg := cardConfig(models.ForecastDaily)
	cfg.Forecast.RoundTemp = true

	s := Normalize(points, cfg, 1, base)
	require.Equal(t, -2.0, *s.TempHigh[0])
	require.Equal(t, 3.0, *s.TempLow[0])
}

func TestNormalizeMissingTempLow(t *testing.T) {
	points := []models.ForecastPoint{{Datetime: base, Temperature: 18.4}}
	s := Normalize(points, cardConfig(models.ForecastDaily), 1, base)
	require.Equal(t, 18.4, *s.TempHigh[0])
	require.Nil(t, s.TempLow[0])
}

func TestNormalizePrecipitationSelection(t *testing.T) {
	points := []models.ForecastPoint{
		{Datetime: base, Precipitation: models.Float(1.2), PrecipitationProbability: models.Float(40)},
		{Datetime: base.Add(time.Hour), Precipitation: models.Float(0.4)},
		{Datetime: base.Add(2 * time.Hour)},
	}

	rain := Normalize(points, cardConfig(models.ForecastHourly), 3, base)
	require.Equal(t, []float64{1.2, 0.4, 0}, rain.Precip)

	cfg := cardConfig(models.ForecastHourly)
	cfg.Forecast.PrecipitationType = models.PrecipitationProbability
	prob := Normalize(points, cfg, 3, base)
	require.Equal(t, []float64{40, 0, 0}, prob.Precip)
	require.Equal(t, 40.0, *prob.Probability[0])
	require.Nil(t, prob.Probability[1])
}

func TestVisibleItems(t *testing.T) {
	cfg := models.ForecastConfig{LabelsFontSize: 11}
	require.Equal(t, 18, VisibleItems(cfg, 600))
	require.Equal(t, 0, VisibleItems(cfg, 10))
	require.Equal(t, 0, VisibleItems(cfg, 0))

	cfg.NumberOfForecasts = 5
	require.Equal(t, 5, VisibleItems(cfg, 600))
}

func TestMeasure(t *testing.T) {
	cfg := models.ForecastConfig{LabelsFontSize: 10}

	l := Measure(cfg, 400, 24)
	require.False(t, l.Scroll)
	require.Equal(t, 400, l.Width)

	cfg.NumberOfForecasts = 20
	l = Measure(cfg, 400, 24)
	require.True(t, l.Scroll)
	require.Equal(t, 600, l.Width)
	require.Equal(t, 630, l.ChartWidth)
	require.Equal(t, 620, l.RowWidth)

	// fewer points than requested shrink the wanted width
	l = Measure(cfg, 400, 8)
	require.False(t, l.Scroll)
	require.Equal(t, 400, l.Width)
}

func TestVisibleMatchesNormalize(t *testing.T) {
	cfg := cardConfig(models.ForecastHourly)
	cfg.Autoscroll = true
	points := hourlyPoints(6, base.Add(-3*time.Hour))

	visible := Visible(points, cfg, 5, base)
	series := Normalize(points, cfg, 5, base)
	require.Len(t, visible, series.Len())
	for i, p := range visible {
		require.Equal(t, p.Datetime, series.Timestamps[i])
	}
	// 3h and 2h in the past are dropped, 1h is exactly on the cutoff
	require.Equal(t, base.Add(-time.Hour), visible[0].Datetime)
	require.Len(t, points, 6)

	cfg.Autoscroll = false
	require.Len(t, Visible(points, cfg, -1, base), 0)
	require.Len(t, Visible(points, cfg, 3, base), 3)
}
