package server

import (
	"context"
	"net/http"

	"weatherchart/internal/card"
	"weatherchart/internal/charts"
	"weatherchart/internal/logger"
	"weatherchart/internal/models"
	"weatherchart/internal/storage"
)

var log = logger.Component("server")

// CardService is the part of a card the HTTP surface drives.
type CardService interface {
	Apply(ctx context.Context, cfg models.CardConfig) error
	Resize(ctx context.Context, width int) error
	EntityChanged(ctx context.Context) error
	Forecast(ctx context.Context) (card.View, error)
	CurrentConditions(ctx context.Context) (card.Conditions, error)
	Status() card.Status
}

// ChartSource serves the latest rendered chart.
type ChartSource interface {
	Latest() (charts.Snapshot, bool)
	Archive(ctx context.Context) (string, error)
}

// Server represents the HTTP surface of the chart service
type Server struct {
	Card           CardService
	Charts         ChartSource
	Storage        storage.StorageClient
	CardConfigPath string
}

// NewServer creates a new server instance
func NewServer(c CardService, chartSource ChartSource, store storage.StorageClient, cardConfigPath string) *Server {
	return &Server{
		Card:           c,
		Charts:         chartSource,
		Storage:        store,
		CardConfigPath: cardConfigPath,
	}
}

// SetupRoutes configures HTTP routes for the server
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/chart", s.HandleChart)
	mux.HandleFunc("/archive", s.HandleArchive)
	mux.HandleFunc("/files/", s.HandleFileProxy)
	mux.HandleFunc("/api/forecast", s.HandleForecast)
	mux.HandleFunc("/api/conditions", s.HandleConditions)
	mux.HandleFunc("/api/resize", s.HandleResize)
	mux.HandleFunc("/api/config", s.HandleConfig)
	mux.HandleFunc("/api/entity", s.HandleEntity)

	return mux
}

// Close cleans up server resources
func (s *Server) Close() error {
	if s.Storage != nil {
		return s.Storage.Close()
	}
	return nil
}
