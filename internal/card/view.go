package card

import (
	"context"
	"errors"
	"time"

	"weatherchart/internal/forecast"
	"weatherchart/internal/locale"
	"weatherchart/internal/models"
)

// ErrEntityMissing is returned when the weather entity cannot be resolved.
var ErrEntityMissing = errors.New("weather entity is absent")

// ErrNotConfigured is returned before the first Apply.
var ErrNotConfigured = errors.New("card is not configured")

// View is the rendered forecast together with the rows drawn around it.
type View struct {
	Status     string                `json:"status"`
	Message    string                `json:"message,omitempty"`
	Series     models.ForecastSeries `json:"series"`
	Layout     forecast.Layout       `json:"layout"`
	Wind       []WindItem            `json:"wind,omitempty"`
	Conditions []ConditionItem       `json:"conditions,omitempty"`
	Rendered   time.Time             `json:"rendered"`
}

// Forecast returns the last rendered series and its wind and condition rows.
func (c *Card) Forecast(ctx context.Context) (View, error) {
	c.mu.RLock()
	cfg, ok := c.cfg, c.hasCfg
	points, layout, series, rendered := c.points, c.layout, c.series, c.rendered
	status := c.status
	c.mu.RUnlock()
	if !ok {
		return View{}, ErrNotConfigured
	}

	v := View{
		Status:   status.String(),
		Message:  c.StatusMessage(),
		Series:   series,
		Layout:   layout,
		Rendered: rendered,
	}
	if status == StatusEntityMissing || rendered.IsZero() {
		return v, nil
	}

	loc := locale.Lookup(cfg.Locale)
	visible := forecast.Visible(points, cfg, layout.Items, rendered)
	r := newResolver(ctx, c.store, cfg)

	if cfg.Forecast.ShowWindForecast {
		fromUnit, _ := r.Text("wind_speed_unit")
		v.Wind = windRow(visible, fromUnit, cfg.Units.Speed, loc)
	}
	if cfg.Forecast.ConditionIcons {
		sun, _ := r.entity(SunEntity)
		v.Conditions = conditionRow(visible, cfg.Forecast.Type, sun, loc, c.location)
	}
	return v, nil
}

// CurrentConditions reads the current weather of the card entity.
func (c *Card) CurrentConditions(ctx context.Context) (Conditions, error) {
	cfg, ok := c.Config()
	if !ok {
		return Conditions{}, ErrNotConfigured
	}

	r := newResolver(ctx, c.store, cfg)
	weather, found := r.entity(cfg.Entity)
	if !found {
		c.setStatus(StatusEntityMissing)
		return Conditions{}, ErrEntityMissing
	}
	return buildConditions(r, weather, locale.Lookup(cfg.Locale), c.units, c.location, c.now()), nil
}
