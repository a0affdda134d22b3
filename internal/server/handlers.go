package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weatherchart/internal/card"
	"weatherchart/internal/charts"
	"weatherchart/internal/config"
	"weatherchart/internal/models"
	"weatherchart/internal/storage"
)

const maxConfigBytes = 1 << 20

// HandleHealth provides health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chart := "pending"
	if s.Charts != nil {
		if _, ok := s.Charts.Latest(); ok {
			chart = "ok"
		}
	}
	status := "healthy"
	if s.Card != nil && s.Card.Status() == card.StatusEntityMissing {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"chart": chart,
		},
	})
}

// HandleChart serves the latest rendered chart
func (s *Server) HandleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var snap charts.Snapshot
	ok := false
	if s.Charts != nil {
		snap, ok = s.Charts.Latest()
	}
	if !ok {
		http.Error(w, "Chart not rendered yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", snap.ContentType)
	w.Header().Set("Last-Modified", snap.Published.Format(http.TimeFormat))
	w.Header().Set("X-Chart-Version", strconv.Itoa(snap.Version))
	w.Write(snap.Content)
}

// HandleFileProxy serves stored chart files
func (s *Server) HandleFileProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Storage == nil {
		http.Error(w, "Storage not configured", http.StatusNotFound)
		return
	}

	filePath := strings.TrimPrefix(r.URL.Path, "/files/")
	if filePath == "" {
		http.Error(w, "File path required", http.StatusBadRequest)
		return
	}
	if strings.Contains(filePath, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	fileData, err := s.Storage.GetFile(r.Context(), filePath)
	if err != nil {
		log.Warn("Failed to get file from storage", map[string]interface{}{
			"path":  filePath,
			"error": err.Error(),
		})
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", storage.GetContentType(filePath))
	w.Write(fileData)
}

// HandleArchive lists archived charts on GET and archives the latest chart on POST
func (s *Server) HandleArchive(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listArchive(w, r)
	case http.MethodPost:
		s.archiveLatest(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) archiveLatest(w http.ResponseWriter, r *http.Request) {
	if s.Charts == nil {
		http.Error(w, "Chart not rendered yet", http.StatusServiceUnavailable)
		return
	}
	path, err := s.Charts.Archive(r.Context())
	if err != nil {
		if errors.Is(err, charts.ErrNothingPublished) {
			http.Error(w, "Chart not rendered yet", http.StatusServiceUnavailable)
			return
		}
		log.Error("Failed to archive chart", err)
		http.Error(w, "Failed to archive chart: "+err.Error(), http.StatusInternalServerError)
		return
	}

	log.Info("Chart archived", map[string]interface{}{"path": path})
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"path": path,
		"url":  "/files/" + path,
	})
}

// listArchive lists stored charts, newest first
func (s *Server) listArchive(w http.ResponseWriter, r *http.Request) {
	if s.Storage == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"files": []string{}, "count": 0})
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
		if limit > 100 {
			limit = 100
		}
	}

	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = storage.ArchiveDir
	}
	files, err := s.Storage.ListDir(r.Context(), dir)
	if err != nil {
		log.Error("Failed to list archive", err)
		http.Error(w, "Failed to list archive: "+err.Error(), http.StatusInternalServerError)
		return
	}

	newest := make([]string, 0, limit)
	for i := len(files) - 1; i >= 0 && len(newest) < limit; i-- {
		newest = append(newest, files[i])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": newest,
		"count": len(newest),
	})
}

// HandleForecast returns the rendered series with its wind and condition rows
func (s *Server) HandleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, err := s.Card.Forecast(r.Context())
	if err != nil {
		writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleConditions returns the current weather summary
func (s *Server) HandleConditions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conditions, err := s.Card.CurrentConditions(r.Context())
	if err != nil {
		writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conditions)
}

type resizeRequest struct {
	Width int `json:"width"`
}

// HandleResize changes the chart width
func (s *Server) HandleResize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid resize request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Width <= 0 {
		http.Error(w, "Width must be positive", http.StatusBadRequest)
		return
	}

	if err := s.Card.Resize(r.Context(), req.Width); err != nil {
		writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "queued", "width": req.Width})
}

// HandleConfig applies a card config from the request body, or reloads the
// config file when the body is empty.
func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		http.Error(w, "Failed to read config: "+err.Error(), http.StatusBadRequest)
		return
	}

	var cfg models.CardConfig
	source := "request"
	if len(strings.TrimSpace(string(body))) == 0 {
		source = s.CardConfigPath
		cfg, err = config.LoadCard(s.CardConfigPath)
	} else {
		cfg, err = config.ParseCard(body)
	}
	if err != nil {
		log.Warn("Rejected card config", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		http.Error(w, "Invalid card config: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Card.Apply(r.Context(), cfg); err != nil {
		writeCardError(w, err)
		return
	}

	log.Info("Card config applied", map[string]interface{}{
		"source":        source,
		"entity":        cfg.Entity,
		"forecast_type": string(cfg.Forecast.Type),
	})
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "queued",
		"entity": cfg.Entity,
	})
}

// HandleEntity signals that the weather entity state changed
func (s *Server) HandleEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.Card.EntityChanged(r.Context()); err != nil {
		writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "queued"})
}
