package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"weatherchart/internal/models"
)

// ErrMissingEntity is returned when a card config names no weather entity.
var ErrMissingEntity = errors.New("please, define entity in the card config")

var validate = validator.New()

// DefaultCardConfig returns the card defaults. Each call returns fresh maps.
func DefaultCardConfig() models.CardConfig {
	return models.CardConfig{
		Autoscroll:      false,
		Use12HourFormat: false,
		ShowWindSpeed:   true,
		ShowWindBearing: true,
		ShowPressure:    true,
		ShowHumidity:    true,
		ShowUVIndex:     true,
		Forecast: models.ForecastConfig{
			Type:               models.ForecastDaily,
			PrecipitationType:  models.PrecipitationRainfall,
			RoundTemp:          false,
			NumberOfForecasts:  0,
			ChartHeight:        180,
			Style:              "style1",
			LabelsFontSize:     11,
			PrecipBarSize:      100,
			PrecipitationColor: "rgba(132, 209, 253, 1.0)",
			Temperature1Color:  "rgba(255, 152, 0, 1.0)",
			Temperature2Color:  "rgba(68, 115, 158, 1.0)",
			ConditionIcons:     true,
			ShowWindForecast:   true,
		},
		Units: models.UnitSystem{
			Distance: "km",
			Pressure: "hPa",
			Speed:    "km/h",
		},
		Sources: map[string]string{
			"temperature":               "temperature",
			"temperature_unit":          "temperature_unit",
			"humidity":                  "humidity",
			"pressure":                  "pressure",
			"pressure_unit":             "pressure_unit",
			"uv_index":                  "uv_index",
			"wind_speed":                "wind_speed",
			"wind_speed_unit":           "wind_speed_unit",
			"dew_point":                 "dew_point",
			"dew_point_unit":            "temperature_unit",
			"wind_bearing":              "wind_bearing",
			"wind_gust_speed":           "wind_gust_speed",
			"wind_gust_speed_unit":      "wind_speed_unit",
			"visibility":                "visibility",
			"visibility_unit":           "visibility_unit",
			"apparent_temperature":      "apparent_temperature",
			"apparent_temperature_unit": "temperature_unit",
		},
	}
}

// ParseCard decodes a YAML (or JSON) card config over the defaults and
// validates the result. Nested sections merge key by key.
func ParseCard(data []byte) (models.CardConfig, error) {
	cfg := DefaultCardConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.CardConfig{}, fmt.Errorf("failed to parse card config: %w", err)
	}
	if cfg.Entity == "" {
		return models.CardConfig{}, ErrMissingEntity
	}
	if err := validate.Struct(cfg); err != nil {
		return models.CardConfig{}, fmt.Errorf("invalid card config: %w", err)
	}
	return cfg, nil
}

// LoadCard reads and parses a card config file
func LoadCard(path string) (models.CardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.CardConfig{}, fmt.Errorf("failed to read card config %s: %w", path, err)
	}
	return ParseCard(data)
}
