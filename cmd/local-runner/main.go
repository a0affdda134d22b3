package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"weatherchart/internal/app"
	"weatherchart/internal/config"
	"weatherchart/internal/logger"
)

var log = logger.Component("local-runner")

// LocalRunner renders the mock forecast once without a weather host
type LocalRunner struct {
	cfg *config.Config
}

func NewLocalRunner(cardConfigPath, renderer string) *LocalRunner {
	return &LocalRunner{cfg: &config.Config{
		CardConfigPath:  cardConfigPath,
		Renderer:        renderer,
		ChartWidth:      600,
		ChartName:       "forecast",
		StorageMode:     "local",
		LocalChartsDir:  "charts",
		ThemeBackground: "#ffffff",
		ThemeText:       "#212121",
		ThemeDivider:    "#e0e0e0",
		MockupMode:      true,
		MocksDir:        "internal/mocks/data",
		Environment:     "local",
	}}
}

func (lr *LocalRunner) Render(timeout time.Duration) error {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := app.New(ctx, lr.cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer a.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	log.Info("Waiting for the first chart...", map[string]interface{}{"card": lr.cfg.CardConfigPath})
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, ok := a.Surface.Latest(); ok {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no chart rendered: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	snap, _ := a.Surface.Latest()
	archived, err := a.Surface.Archive(ctx)
	if err != nil {
		return err
	}

	view, err := a.Card.Forecast(ctx)
	if err != nil {
		return fmt.Errorf("failed to read forecast: %w", err)
	}
	viewJSON, _ := json.MarshalIndent(view, "", "  ")
	if err := a.Storage.StoreFile(ctx, lr.cfg.ChartName+".json", viewJSON); err != nil {
		log.Warn("Failed to save forecast view", map[string]interface{}{"error": err.Error()})
	}

	if conditions, err := a.Card.CurrentConditions(ctx); err == nil {
		conditionsJSON, _ := json.MarshalIndent(conditions, "", "  ")
		if err := a.Storage.StoreFile(ctx, "conditions.json", conditionsJSON); err != nil {
			log.Warn("Failed to save conditions", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("Chart rendered", map[string]interface{}{
		"path":     snap.Path,
		"archive":  archived,
		"bytes":    len(snap.Content),
		"points":   len(view.Series.Timestamps),
		"duration": time.Since(startTime).String(),
	})
	return nil
}

func main() {
	cardConfig := os.Getenv("CARD_CONFIG")
	if cardConfig == "" {
		cardConfig = "card.example.yaml"
	}
	renderer := os.Getenv("CHART_RENDERER")
	if renderer == "" {
		renderer = "png"
	}

	runner := NewLocalRunner(cardConfig, renderer)
	if err := runner.Render(30 * time.Second); err != nil {
		log.Fatal("Local render failed", err)
	}
}
