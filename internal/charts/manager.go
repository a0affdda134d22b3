package charts

import (
	"context"
	"fmt"
	"sync"

	"weatherchart/internal/logger"
	"weatherchart/internal/models"
)

// State of the chart lifecycle.
type State int

const (
	Absent State = iota
	Live
)

func (s State) String() string {
	if s == Live {
		return "live"
	}
	return "absent"
}

// Manager owns at most one chart resource. A full redraw replaces it
// (destroy, then create); an incremental update mutates it in place.
type Manager struct {
	mu       sync.Mutex
	renderer Renderer
	surface  Surface
	resource Resource
	state    State
	log      *logger.Logger
}

// NewManager creates a manager drawing to surface. A nil surface makes every
// redraw a logged no-op until one is attached.
func NewManager(renderer Renderer, surface Surface) *Manager {
	return &Manager{
		renderer: renderer,
		surface:  surface,
		log:      logger.Component("charts"),
	}
}

// State reports whether a chart resource is live.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AttachSurface sets the surface future redraws draw to.
func (m *Manager) AttachSurface(surface Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surface = surface
}

// FullRedraw rebuilds the chart from scratch.
func (m *Manager) FullRedraw(ctx context.Context, series models.ForecastSeries, cfg models.CardConfig, env Env) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if series.Len() == 0 {
		m.log.Debug("FullRedraw: no forecast")
		return nil
	}
	if m.surface == nil {
		m.log.Debug("FullRedraw: surface not available")
		return nil
	}

	data, opts := Build(series, cfg, env)
	if err := m.replace(ctx, data, opts); err != nil {
		return err
	}
	m.log.Debug("Chart redrawn", map[string]interface{}{
		"surface": m.surface.Name(),
		"points":  series.Len(),
		"type":    string(cfg.Forecast.Type),
	})
	return nil
}

// IncrementalUpdate overwrites the labels and dataset values of the live
// chart and asks it to redraw. It never creates a resource.
func (m *Manager) IncrementalUpdate(ctx context.Context, series models.ForecastSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Live {
		m.log.Debug("IncrementalUpdate: no live chart")
		return nil
	}
	if series.Len() == 0 {
		m.log.Debug("IncrementalUpdate: no forecast")
		return nil
	}

	data := m.resource.Data()
	data.Labels = series.Timestamps
	for i, values := range SeriesData(series) {
		if i < len(data.Datasets) {
			data.Datasets[i].Data = values
		}
	}
	data.Probability = series.Probability

	if err := m.resource.Update(ctx); err != nil {
		return fmt.Errorf("failed to update chart: %w", err)
	}
	return nil
}

// Destroy releases the live chart, if any.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroy()
}

// replace is destroy followed by create.
func (m *Manager) replace(ctx context.Context, data *ChartData, opts Options) error {
	if err := m.destroy(); err != nil {
		return err
	}
	res, err := m.renderer.Create(ctx, m.surface, data, opts)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	m.resource = res
	m.state = Live
	return nil
}

func (m *Manager) destroy() error {
	if m.state == Absent {
		return nil
	}
	res := m.resource
	m.resource = nil
	m.state = Absent
	if err := res.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy chart: %w", err)
	}
	return nil
}
