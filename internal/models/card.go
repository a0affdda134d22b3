package models

// CardConfig is the full card configuration after merging with defaults.
type CardConfig struct {
	Entity          string            `yaml:"entity" json:"entity" validate:"required"`
	Title           string            `yaml:"title,omitempty" json:"title,omitempty"`
	Locale          string            `yaml:"locale,omitempty" json:"locale,omitempty"`
	Autoscroll      bool              `yaml:"autoscroll" json:"autoscroll"`
	Use12HourFormat bool              `yaml:"use_12hour_format" json:"use_12hour_format"`
	ShowWindSpeed   bool              `yaml:"show_wind_speed" json:"show_wind_speed"`
	ShowWindGust    bool              `yaml:"show_wind_gust_speed" json:"show_wind_gust_speed"`
	ShowWindBearing bool              `yaml:"show_wind_bearing" json:"show_wind_bearing"`
	ShowPressure    bool              `yaml:"show_pressure" json:"show_pressure"`
	ShowHumidity    bool              `yaml:"show_humidity" json:"show_humidity"`
	ShowVisibility  bool              `yaml:"show_visibility" json:"show_visibility"`
	ShowDewPoint    bool              `yaml:"show_dew_point" json:"show_dew_point"`
	ShowUVIndex     bool              `yaml:"show_uv_index" json:"show_uv_index"`
	ShowApparent    bool              `yaml:"show_apparent_temperature" json:"show_apparent_temperature"`
	ShowDescription bool              `yaml:"show_description" json:"show_description"`
	ShowLastChanged bool              `yaml:"show_last_changed" json:"show_last_changed"`
	Forecast        ForecastConfig    `yaml:"forecast" json:"forecast"`
	Units           UnitSystem        `yaml:"units" json:"units"`
	Sources         map[string]string `yaml:"sources" json:"sources"`
	Option1         string            `yaml:"option1,omitempty" json:"option1,omitempty"`
	Option2         string            `yaml:"option2,omitempty" json:"option2,omitempty"`
	Option3         string            `yaml:"option3,omitempty" json:"option3,omitempty"`
}

// ForecastConfig controls the forecast chart.
type ForecastConfig struct {
	Type               ForecastType      `yaml:"type" json:"type" validate:"oneof=daily hourly twice_daily"`
	PrecipitationType  PrecipitationType `yaml:"precipitation_type" json:"precipitation_type" validate:"oneof=rainfall probability"`
	RoundTemp          bool              `yaml:"round_temp" json:"round_temp"`
	NumberOfForecasts  int               `yaml:"number_of_forecasts" json:"number_of_forecasts" validate:"gte=0"`
	ChartHeight        int               `yaml:"chart_height" json:"chart_height" validate:"gt=0"`
	Style              string            `yaml:"style" json:"style" validate:"oneof=style1 style2"`
	LabelsFontSize     int               `yaml:"labels_font_size" json:"labels_font_size" validate:"gt=0"`
	PrecipBarSize      int               `yaml:"precip_bar_size" json:"precip_bar_size" validate:"gte=0,lte=100"`
	PrecipitationColor string            `yaml:"precipitation_color" json:"precipitation_color"`
	Temperature1Color  string            `yaml:"temperature1_color" json:"temperature1_color"`
	Temperature2Color  string            `yaml:"temperature2_color" json:"temperature2_color"`
	ChartTextColor     string            `yaml:"chart_text_color,omitempty" json:"chart_text_color,omitempty"`
	ChartDatetimeColor string            `yaml:"chart_datetime_color,omitempty" json:"chart_datetime_color,omitempty"`
	ShowProbability    bool              `yaml:"show_probability" json:"show_probability"`
	DisableAnimation   bool              `yaml:"disable_animation" json:"disable_animation"`
	ConditionIcons     bool              `yaml:"condition_icons" json:"condition_icons"`
	ShowWindForecast   bool              `yaml:"show_wind_forecast" json:"show_wind_forecast"`
}

// UnitSystem holds the display unit per quantity.
type UnitSystem struct {
	Speed    string `yaml:"speed" json:"speed" validate:"omitempty,oneof=km/h m/s mph Bft"`
	Pressure string `yaml:"pressure" json:"pressure" validate:"omitempty,oneof=hPa mmHg inHg"`
	Distance string `yaml:"distance" json:"distance"`
}

// Entity is a host entity snapshot.
type Entity struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged string                 `json:"last_changed,omitempty"`
}

// Attribute returns a named attribute and whether it exists.
func (e *Entity) Attribute(name string) (interface{}, bool) {
	if e == nil || e.Attributes == nil {
		return nil, false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// StringAttribute returns a string attribute or "".
func (e *Entity) StringAttribute(name string) string {
	v, ok := e.Attribute(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
