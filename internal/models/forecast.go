package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ForecastType selects which forecast stream is subscribed and how
// temperatures are slotted.
type ForecastType string

const (
	ForecastDaily      ForecastType = "daily"
	ForecastHourly     ForecastType = "hourly"
	ForecastTwiceDaily ForecastType = "twice_daily"
)

// PrecipitationType selects the value shown by the precipitation bars.
type PrecipitationType string

const (
	PrecipitationRainfall    PrecipitationType = "rainfall"
	PrecipitationProbability PrecipitationType = "probability"
)

// ForecastPoint is one timestamped prediction as delivered by the feed.
// Optional numeric fields are nil when absent or not numeric.
type ForecastPoint struct {
	Datetime                 time.Time `json:"datetime"`
	Temperature              float64   `json:"temperature"`
	TempLow                  *float64  `json:"templow,omitempty"`
	Precipitation            *float64  `json:"precipitation,omitempty"`
	PrecipitationProbability *float64  `json:"precipitation_probability,omitempty"`
	WindSpeed                *float64  `json:"wind_speed,omitempty"`
	WindBearing              Bearing   `json:"wind_bearing,omitempty"`
	Condition                string    `json:"condition"`
	IsDaytime                *bool     `json:"is_daytime,omitempty"`
}

// rawForecastPoint keeps every numeric field loose so that strings, nulls
// and garbage degrade to "absent" instead of failing the whole payload.
type rawForecastPoint struct {
	Datetime                 string          `json:"datetime"`
	Temperature              json.RawMessage `json:"temperature"`
	TempLow                  json.RawMessage `json:"templow"`
	Precipitation            json.RawMessage `json:"precipitation"`
	PrecipitationProbability json.RawMessage `json:"precipitation_probability"`
	WindSpeed                json.RawMessage `json:"wind_speed"`
	WindBearing              Bearing         `json:"wind_bearing"`
	Condition                string          `json:"condition"`
	IsDaytime                *bool           `json:"is_daytime"`
}

// UnmarshalJSON decodes a feed point leniently.
func (p *ForecastPoint) UnmarshalJSON(data []byte) error {
	var raw rawForecastPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	dt, err := time.Parse(time.RFC3339, raw.Datetime)
	if err != nil {
		return fmt.Errorf("invalid forecast datetime %q: %w", raw.Datetime, err)
	}

	*p = ForecastPoint{
		Datetime:                 dt,
		TempLow:                  numberOrNil(raw.TempLow),
		Precipitation:            numberOrNil(raw.Precipitation),
		PrecipitationProbability: numberOrNil(raw.PrecipitationProbability),
		WindSpeed:                numberOrNil(raw.WindSpeed),
		WindBearing:              raw.WindBearing,
		Condition:                raw.Condition,
		IsDaytime:                raw.IsDaytime,
	}
	if t := numberOrNil(raw.Temperature); t != nil {
		p.Temperature = *t
	}
	return nil
}

// numberOrNil accepts only JSON numbers.
func numberOrNil(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// Bearing is a wind bearing that is either numeric degrees or a compass label.
type Bearing struct {
	Degrees *float64
	Label   string
}

// IsZero reports whether no bearing was supplied.
func (b Bearing) IsZero() bool {
	return b.Degrees == nil && b.Label == ""
}

// UnmarshalJSON accepts a number, a string or null.
func (b *Bearing) UnmarshalJSON(data []byte) error {
	*b = Bearing{}
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		b.Degrees = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("wind_bearing must be a number or a string: %w", err)
	}
	b.Label = s
	return nil
}

// MarshalJSON writes the bearing back in its original shape.
func (b Bearing) MarshalJSON() ([]byte, error) {
	switch {
	case b.Degrees != nil:
		return []byte(strconv.FormatFloat(*b.Degrees, 'f', -1, 64)), nil
	case b.Label != "":
		return json.Marshal(b.Label)
	default:
		return []byte("null"), nil
	}
}

// ForecastSeries holds the parallel chart-ready sequences produced by the
// normalizer. All slices have the same length.
type ForecastSeries struct {
	Timestamps []time.Time `json:"timestamps"`
	TempHigh   []*float64  `json:"temp_high"`
	TempLow    []*float64  `json:"temp_low"`
	Precip     []float64   `json:"precip"`

	// Probability is the raw precipitation probability per point, used by
	// label and tooltip callbacks only.
	Probability []*float64 `json:"probability"`
}

// Len returns the number of points in the series.
func (s ForecastSeries) Len() int {
	return len(s.Timestamps)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
