// Package app wires the forecast card to its storage, renderer, host
// connection and scheduler from the service configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"weatherchart/internal/card"
	"weatherchart/internal/charts"
	"weatherchart/internal/config"
	"weatherchart/internal/hass"
	"weatherchart/internal/logger"
	"weatherchart/internal/mocks"
	"weatherchart/internal/models"
	"weatherchart/internal/scheduler"
	"weatherchart/internal/storage"
	"weatherchart/internal/subscription"
)

var log = logger.Component("app")

// host is what the card needs from the weather host.
type host interface {
	card.EntityStore
	card.UnitProvider
	Location() *time.Location
}

// App is a fully wired chart service.
type App struct {
	Config     *config.Config
	CardConfig models.CardConfig
	Card       *card.Card
	Surface    *charts.StorageSurface
	Storage    storage.StorageClient
	// MockFeed is set in mockup mode.
	MockFeed *mocks.Feed

	closers []func() error
}

// New builds the service from cfg. The card config is loaded from
// cfg.CardConfigPath.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	cardCfg, err := config.LoadCard(cfg.CardConfigPath)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorageClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:     cfg,
		CardConfig: cardCfg,
		Storage:    store,
		Surface:    charts.NewStorageSurface(cfg.ChartName, store),
	}

	renderer, err := newRenderer(cfg.Renderer)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		feed subscription.Feed
		h    host
	)
	if cfg.MockupMode {
		ms := mocks.NewMockService(cfg.MocksDir)
		states, err := ms.LoadStates()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.MockFeed = ms.NewFeed()
		feed, h = a.MockFeed, states
		log.Info("Mockup mode enabled", map[string]interface{}{"mocks_dir": cfg.MocksDir})
	} else {
		rest := hass.NewRESTClient(cfg.HassURL, cfg.HassToken, cfg.HassRPS, cfg.HassBurst)
		if err := rest.LoadUnitSystem(ctx); err != nil {
			// units fall back to passthrough until the host answers
			log.Warn("Host unit system unavailable", map[string]interface{}{"error": err.Error()})
		}
		ws, err := hass.NewWebsocketFeed(cfg.HassURL, cfg.HassToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, ws.Close)
		feed, h = ws, rest
	}

	loc := h.Location()
	hourly := scheduler.NewHourly(loc)
	a.closers = append(a.closers, func() error {
		hourly.Stop()
		return nil
	})

	a.Card = card.New(card.Options{
		Charts:    charts.NewManager(renderer, a.Surface),
		Feed:      feed,
		Scheduler: hourly,
		Store:     h,
		Units:     h,
		Theme: charts.Theme{
			Background: cfg.ThemeBackground,
			Text:       cfg.ThemeText,
			Divider:    cfg.ThemeDivider,
		},
		Direction: cfg.TextDirection,
		Location:  loc,
		Width:     cfg.ChartWidth,
	})
	return a, nil
}

func newRenderer(name string) (charts.Renderer, error) {
	switch name {
	case "png":
		return charts.NewPNGRenderer(), nil
	case "echarts":
		return charts.NewEChartsRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported chart renderer %q", name)
	}
}

// Run applies the card config and draws until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Card.Apply(ctx, a.CardConfig); err != nil {
		return fmt.Errorf("failed to apply card config: %w", err)
	}
	log.Info("Card started", map[string]interface{}{
		"entity":        a.CardConfig.Entity,
		"forecast_type": string(a.CardConfig.Forecast.Type),
		"renderer":      a.Config.Renderer,
	})
	return a.Card.Run(ctx)
}

// Close releases the host connection, the scheduler and the storage client.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.Storage = nil
	}
	return firstErr
}
