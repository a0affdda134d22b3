package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"weatherchart/internal/logger"
	"weatherchart/internal/models"
	"weatherchart/internal/subscription"
)

var log = logger.Component("mocks")

// statesFile mirrors the host state dump kept next to the forecasts.
type statesFile struct {
	UnitSystem map[string]string `json:"unit_system"`
	TimeZone   string            `json:"time_zone"`
	States     []models.Entity   `json:"states"`
}

// MockService loads recorded forecasts and host states for local runs
type MockService struct {
	mocksDir string
	now      func() time.Time
}

// NewMockService creates a mock service reading from mocksDir
func NewMockService(mocksDir string) *MockService {
	return &MockService{mocksDir: mocksDir, now: time.Now}
}

// LoadForecast loads the recorded forecast for a type, shifted so that it
// starts in the current hour.
func (m *MockService) LoadForecast(forecastType models.ForecastType) ([]models.ForecastPoint, error) {
	filePath := filepath.Join(m.mocksDir, fmt.Sprintf("forecast_%s.json", forecastType))
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock forecast: %w", err)
	}

	var points []models.ForecastPoint
	if err := json.Unmarshal(content, &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mock forecast: %w", err)
	}
	return rebase(points, forecastType, m.now()), nil
}

// rebase moves every point by the same offset so the first one falls in
// the current hour, or the current day for daily forecasts.
func rebase(points []models.ForecastPoint, forecastType models.ForecastType, now time.Time) []models.ForecastPoint {
	if len(points) == 0 {
		return points
	}
	step := 24 * time.Hour
	if forecastType == models.ForecastHourly {
		step = time.Hour
	}
	shift := now.Truncate(step).Sub(points[0].Datetime.Truncate(step))

	out := make([]models.ForecastPoint, len(points))
	for i, p := range points {
		p.Datetime = p.Datetime.Add(shift)
		out[i] = p
	}
	return out
}

// LoadStates loads the recorded host states.
func (m *MockService) LoadStates() (*EntityStore, error) {
	filePath := filepath.Join(m.mocksDir, "states.json")
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock states: %w", err)
	}

	var data statesFile
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mock states: %w", err)
	}

	store := &EntityStore{
		entities: make(map[string]*models.Entity, len(data.States)),
		units:    data.UnitSystem,
	}
	for i := range data.States {
		e := data.States[i]
		store.entities[e.EntityID] = &e
	}
	if data.TimeZone != "" {
		if loc, err := time.LoadLocation(data.TimeZone); err == nil {
			store.location = loc
		}
	}
	return store, nil
}

// EntityStore serves recorded entity states and the unit system
type EntityStore struct {
	entities map[string]*models.Entity
	units    map[string]string
	location *time.Location
}

// Lookup returns a copy of the stored entity.
func (s *EntityStore) Lookup(_ context.Context, entityID string) (*models.Entity, bool) {
	e, ok := s.entities[entityID]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// UnitFor returns the recorded unit for a category.
func (s *EntityStore) UnitFor(category string) string {
	return s.units[category]
}

// Location returns the recorded time zone, or UTC.
func (s *EntityStore) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// Feed delivers recorded forecasts as subscription pushes
type Feed struct {
	service *MockService

	mu     sync.Mutex
	nextID int
	subs   map[string]struct{}
}

// NewFeed creates a feed over the service's recorded forecasts
func (m *MockService) NewFeed() *Feed {
	return &Feed{service: m, subs: map[string]struct{}{}}
}

// Subscribe registers onUpdate and pushes the recorded forecast once.
func (f *Feed) Subscribe(_ context.Context, entityID string, forecastType models.ForecastType, onUpdate subscription.UpdateFunc) (subscription.Handle, error) {
	points, err := f.service.LoadForecast(forecastType)
	if err != nil {
		return subscription.Handle{}, err
	}

	f.mu.Lock()
	f.nextID++
	h := subscription.Handle{
		ID:           fmt.Sprintf("mock-%d", f.nextID),
		EntityID:     entityID,
		ForecastType: forecastType,
	}
	f.subs[h.ID] = struct{}{}
	f.mu.Unlock()

	log.Debug("Mock subscription created", map[string]interface{}{
		"handle":        h.ID,
		"forecast_type": string(forecastType),
		"points":        len(points),
	})
	go onUpdate(points)
	return h, nil
}

// Unsubscribe removes a subscription.
func (f *Feed) Unsubscribe(_ context.Context, h subscription.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[h.ID]; !ok {
		return subscription.ErrNotSubscribed
	}
	delete(f.subs, h.ID)
	return nil
}
