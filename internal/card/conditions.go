package card

import (
	"time"

	"weatherchart/internal/locale"
	"weatherchart/internal/models"
	"weatherchart/internal/units"
)

// SunEntity supplies sunrise and sunset times.
const SunEntity = "sun.sun"

// Reading is a formatted value with its display unit.
type Reading struct {
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// OptionEntity is an extra entity shown next to the conditions.
type OptionEntity struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Unit  string `json:"unit,omitempty"`
}

// SunTimes are the next sunrise and sunset, formatted.
type SunTimes struct {
	Rising  string `json:"rising"`
	Setting string `json:"setting"`
}

// Conditions summarises the current weather of the card entity.
type Conditions struct {
	Entity        string         `json:"entity"`
	Title         string         `json:"title,omitempty"`
	State         string         `json:"state"`
	Condition     string         `json:"condition"`
	Temperature   *Reading       `json:"temperature,omitempty"`
	FeelsLike     *Reading       `json:"feels_like,omitempty"`
	Description   string         `json:"description,omitempty"`
	Humidity      *Reading       `json:"humidity,omitempty"`
	Pressure      *Reading       `json:"pressure,omitempty"`
	DewPoint      *Reading       `json:"dew_point,omitempty"`
	Visibility    *Reading       `json:"visibility,omitempty"`
	UVIndex       *Reading       `json:"uv_index,omitempty"`
	WindDirection string         `json:"wind_direction,omitempty"`
	WindSpeed     *Reading       `json:"wind_speed,omitempty"`
	WindGust      *Reading       `json:"wind_gust_speed,omitempty"`
	Sun           *SunTimes      `json:"sun,omitempty"`
	Options       []OptionEntity `json:"options,omitempty"`
	LastUpdated   string         `json:"last_updated,omitempty"`
}

// WindItem is one cell of the wind forecast row.
type WindItem struct {
	Direction string `json:"direction"`
	Sector    int    `json:"sector"`
	Speed     string `json:"speed"`
}

// ConditionItem is one cell of the condition row.
type ConditionItem struct {
	Condition string `json:"condition"`
	Label     string `json:"label"`
	Daytime   bool   `json:"daytime"`
}

// buildConditions reads the current conditions through the configured sources.
func buildConditions(r *resolver, weather *models.Entity, loc locale.Locale, hostUnits UnitProvider, tz *time.Location, now time.Time) Conditions {
	cfg := r.cfg
	tempUnit := hostUnits.UnitFor("temperature")

	c := Conditions{
		Entity:    cfg.Entity,
		Title:     cfg.Title,
		State:     weather.State,
		Condition: loc.Condition(weather.State),
	}

	if v, ok := r.Number("temperature"); ok {
		c.Temperature = &Reading{Value: fixed(v, 0), Unit: tempUnit}
	}
	if cfg.ShowApparent {
		if v, ok := r.Number("apparent_temperature"); ok {
			c.FeelsLike = &Reading{Value: fixed(v, 0), Unit: tempUnit}
		}
	}
	if cfg.ShowDescription {
		c.Description, _ = r.Text("description")
	}
	if cfg.ShowHumidity {
		if v, ok := r.Text("humidity"); ok {
			c.Humidity = &Reading{Value: v, Unit: "%"}
		}
	}
	if cfg.ShowPressure {
		if v, ok := r.Number("pressure"); ok {
			from, _ := r.Text("pressure_unit")
			to := orDefault(cfg.Units.Pressure, from)
			c.Pressure = &Reading{Value: units.ConvertPressure(v, from, to).String(), Unit: loc.Unit(to)}
		}
	}
	if cfg.ShowDewPoint {
		if v, ok := r.Text("dew_point"); ok {
			c.DewPoint = &Reading{Value: v, Unit: weather.StringAttribute("temperature_unit")}
		}
	}
	if cfg.ShowVisibility {
		if v, ok := r.Number("visibility"); ok {
			from, _ := r.Text("visibility_unit")
			to := orDefault(cfg.Units.Distance, from)
			c.Visibility = &Reading{Value: units.ConvertDistance(v, from, to).String(), Unit: loc.Unit(to)}
		}
	}
	if cfg.ShowUVIndex {
		if v, ok := r.Text("uv_index"); ok {
			c.UVIndex = &Reading{Value: v}
		}
	}
	if cfg.ShowWindBearing {
		if v, ok := r.Value("wind_bearing"); ok {
			c.WindDirection = units.WindDirection(bearingOf(v), loc.Strings.CardinalDirections)
		}
	}
	if cfg.ShowWindSpeed {
		c.WindSpeed = windReading(r, "wind_speed", "wind_speed_unit", cfg.Units.Speed, loc)
	}
	if cfg.ShowWindGust {
		c.WindGust = windReading(r, "wind_gust_speed", "wind_gust_speed_unit", cfg.Units.Speed, loc)
	}

	if sun, ok := r.entity(SunEntity); ok {
		c.Sun = sunTimes(sun, loc, cfg.Use12HourFormat, tz)
	}
	for _, id := range []string{cfg.Option1, cfg.Option2, cfg.Option3} {
		if id == "" {
			continue
		}
		if e, ok := r.entity(id); ok {
			c.Options = append(c.Options, OptionEntity{
				Name:  e.StringAttribute("friendly_name"),
				State: e.State,
				Unit:  e.StringAttribute("unit_of_measurement"),
			})
		}
	}
	if cfg.ShowLastChanged {
		c.LastUpdated = lastUpdated(weather, loc, now)
	}
	return c
}

func windReading(r *resolver, valueSource, unitSource, target string, loc locale.Locale) *Reading {
	v, ok := r.Number(valueSource)
	if !ok {
		return nil
	}
	from, _ := r.Text(unitSource)
	to := orDefault(target, from)
	converted, err := units.ConvertSpeed(v, from, to)
	if err != nil {
		log.Warn("Unable to convert wind speed", map[string]interface{}{
			"source": valueSource,
			"error":  err.Error(),
		})
		return nil
	}
	return &Reading{Value: converted.String(), Unit: loc.Unit(to)}
}

func sunTimes(sun *models.Entity, loc locale.Locale, use12h bool, tz *time.Location) *SunTimes {
	rising, okRising := parseTime(sun.StringAttribute("next_rising"))
	setting, okSetting := parseTime(sun.StringAttribute("next_setting"))
	if !okRising || !okSetting {
		return nil
	}
	layout := "15:04"
	if use12h {
		layout = "3:04 PM"
	}
	return &SunTimes{
		Rising:  rising.In(tz).Format(layout),
		Setting: setting.In(tz).Format(layout),
	}
}

func lastUpdated(weather *models.Entity, loc locale.Locale, now time.Time) string {
	changed, ok := parseTime(weather.LastChanged)
	if !ok {
		return ""
	}
	return loc.Ago(now.Sub(changed))
}

// windRow formats wind speed and direction for each visible point.
func windRow(points []models.ForecastPoint, fromUnit, target string, loc locale.Locale) []WindItem {
	to := orDefault(target, fromUnit)
	row := make([]WindItem, 0, len(points))
	for _, p := range points {
		item := WindItem{
			Direction: units.WindDirection(p.WindBearing, loc.Strings.CardinalDirections),
			Sector:    units.WindSector(p.WindBearing),
		}
		if p.WindSpeed != nil {
			if v, err := units.ConvertSpeed(*p.WindSpeed, fromUnit, to); err == nil {
				item.Speed = v.String()
			} else {
				log.Warn("Unable to convert forecast wind speed", map[string]interface{}{"error": err.Error()})
			}
		}
		row = append(row, item)
	}
	return row
}

// conditionRow labels each visible point and decides whether it falls in
// daylight. Daily points are always day; points carrying is_daytime use it;
// others are compared with today's sunrise and sunset moved onto their date.
func conditionRow(points []models.ForecastPoint, ft models.ForecastType, sun *models.Entity, loc locale.Locale, tz *time.Location) []ConditionItem {
	var rising, setting time.Time
	haveSun := false
	if sun != nil {
		var okRising, okSetting bool
		rising, okRising = parseTime(sun.StringAttribute("next_rising"))
		setting, okSetting = parseTime(sun.StringAttribute("next_setting"))
		haveSun = okRising && okSetting
	}

	row := make([]ConditionItem, 0, len(points))
	for _, p := range points {
		day := true
		switch {
		case ft == models.ForecastDaily:
		case p.IsDaytime != nil:
			day = *p.IsDaytime
		case haveSun:
			at := p.Datetime.In(tz)
			sunrise := onDate(at, rising.In(tz))
			sunset := onDate(at, setting.In(tz))
			day = !at.Before(sunrise) && !at.After(sunset)
		}
		row = append(row, ConditionItem{
			Condition: p.Condition,
			Label:     loc.Condition(p.Condition),
			Daytime:   day,
		})
	}
	return row
}

// onDate returns clock's time of day on day's date.
func onDate(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
}

func bearingOf(v interface{}) models.Bearing {
	switch t := v.(type) {
	case float64:
		return models.Bearing{Degrees: models.Float(t)}
	case string:
		return models.Bearing{Label: t}
	}
	return models.Bearing{}
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func fixed(v float64, precision int32) string {
	return units.Value{Number: v, Precision: precision}.String()
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
