package config

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the forecast chart service
type Config struct {
	// Server configuration
	Port string `env:"PORT,default=8981"`

	// Home Assistant connection
	HassURL        string  `env:"HASS_URL,default=http://homeassistant.local:8123"`
	HassToken      string  `env:"HASS_TOKEN"`
	HassRPS        float64 `env:"HASS_REQUESTS_PER_SECOND,default=5"`
	HassBurst      int     `env:"HASS_REQUEST_BURST,default=10"`
	CardConfigPath string  `env:"CARD_CONFIG,default=./card.yaml"`

	// Chart output
	Renderer       string `env:"CHART_RENDERER,default=png"`
	ChartWidth     int    `env:"CHART_WIDTH,default=600"`
	ChartName      string `env:"CHART_NAME,default=forecast"`
	StorageMode    string `env:"STORAGE_MODE,default=local"`
	LocalChartsDir string `env:"LOCAL_CHARTS_DIR,default=./charts"`
	GCSBucket      string `env:"GCS_BUCKET"`

	// Per-render theme colors
	ThemeBackground string `env:"THEME_BACKGROUND_COLOR,default=#ffffff"`
	ThemeText       string `env:"THEME_TEXT_COLOR,default=#212121"`
	ThemeDivider    string `env:"THEME_DIVIDER_COLOR,default=#e0e0e0"`
	TextDirection   string `env:"TEXT_DIRECTION"`

	// Local testing configuration
	MockupMode bool   `env:"MOCKUP_MODE,default=false"`
	MocksDir   string `env:"MOCKS_DIR,default=internal/mocks/data"`

	// Service configuration
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFormat   string `env:"LOG_FORMAT,default=json"`
}

// Load loads configuration from an optional .env file and environment variables
func Load(ctx context.Context) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !c.MockupMode && c.HassToken == "" {
		return fmt.Errorf("HASS_TOKEN is required unless MOCKUP_MODE is enabled")
	}
	switch c.Renderer {
	case "png", "echarts":
	default:
		return fmt.Errorf("unsupported CHART_RENDERER %q", c.Renderer)
	}
	switch c.StorageMode {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_MODE=gcs")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_MODE %q", c.StorageMode)
	}
	if c.ChartWidth <= 0 {
		return fmt.Errorf("CHART_WIDTH must be positive, got %d", c.ChartWidth)
	}
	return nil
}
