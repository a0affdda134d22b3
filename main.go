package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"weatherchart/internal/app"
	"weatherchart/internal/config"
	"weatherchart/internal/logger"
	"weatherchart/internal/server"
)

var log = logger.Component("main")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}
	configureLogger(cfg)

	log.Info("Starting weather chart service", map[string]interface{}{
		"port":         cfg.Port,
		"environment":  cfg.Environment,
		"storage_mode": cfg.StorageMode,
		"renderer":     cfg.Renderer,
		"mockup_mode":  cfg.MockupMode,
	})

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to create service", err)
	}
	defer a.Close()

	srv := server.NewServer(a.Card, a.Surface, a.Storage, cfg.CardConfigPath)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cardDone := make(chan error, 1)
	go func() { cardDone <- a.Run(ctx) }()

	go func() {
		log.Info("Server listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", err)
		}
	}()

	waitForShutdown(ctx, stop, httpServer, cardDone, 30*time.Second)
	log.Info("Server stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// waitForShutdown blocks until ctx ends or the card stops on its own, then
// shuts srv down gracefully and waits up to timeout for the card to finish.
func waitForShutdown(ctx context.Context, stop context.CancelFunc, srv shutdowner, cardDone <-chan error, timeout time.Duration) {
	cardStopped := false
	select {
	case <-ctx.Done():
	case err := <-cardDone:
		// cardDone carries a single value, already taken here
		cardStopped = true
		if err != nil {
			log.Error("Card stopped unexpectedly", err)
		}
		stop()
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}
	if cardStopped {
		return
	}
	select {
	case <-cardDone:
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for the card to stop")
	}
}

// configureLogger applies settings that may have come from .env after the
// global logger was created. Unknown values keep the defaults.
func configureLogger(cfg *config.Config) {
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.GetGlobalLogger().SetLevel(level)
	}
	if format, ok := logger.ParseFormat(cfg.LogFormat); ok {
		logger.GetGlobalLogger().SetFormat(format)
	}
}
