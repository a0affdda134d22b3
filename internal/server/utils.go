package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"weatherchart/internal/card"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", err)
	}
}

// writeCardError maps card errors to HTTP statuses.
func writeCardError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, card.ErrNotConfigured):
		status = http.StatusConflict
	case errors.Is(err, card.ErrEntityMissing):
		status = http.StatusNotFound
	case errors.Is(err, card.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"error":  err.Error(),
		"status": http.StatusText(status),
	})
}
