// Package card hosts one forecast chart: it owns the subscription, queues
// every redraw trigger and applies the full or incremental chart operation
// on a single goroutine.
package card

import (
	"context"
	"errors"
	"sync"
	"time"

	"weatherchart/internal/charts"
	"weatherchart/internal/forecast"
	"weatherchart/internal/locale"
	"weatherchart/internal/logger"
	"weatherchart/internal/models"
	"weatherchart/internal/subscription"
)

var log = logger.Component("card")

// ErrStopped is returned when an intent is queued after Run returned.
var ErrStopped = errors.New("card stopped")

// Status is what the card can currently show.
type Status int

const (
	// StatusReady means the weather entity resolved.
	StatusReady Status = iota
	// StatusEntityMissing means the weather entity is not known to the host.
	StatusEntityMissing
)

func (s Status) String() string {
	if s == StatusEntityMissing {
		return "entity_missing"
	}
	return "ready"
}

type intentKind int

const (
	intentInitial intentKind = iota
	intentPush
	intentConfig
	intentResize
	intentTick
	intentEntity
)

var intentNames = map[intentKind]string{
	intentInitial: "initial",
	intentPush:    "push",
	intentConfig:  "config",
	intentResize:  "resize",
	intentTick:    "tick",
	intentEntity:  "entity",
}

// intent is one queued redraw request.
type intent struct {
	kind   intentKind
	points []models.ForecastPoint
	width  int
}

// full reports whether the intent may change axes or layout.
func (i intent) full() bool {
	switch i.kind {
	case intentTick, intentEntity:
		return false
	default:
		return true
	}
}

// Options wires a card to its collaborators.
type Options struct {
	Charts    *charts.Manager
	Feed      subscription.Feed
	Scheduler subscription.Scheduler
	Store     EntityStore
	Units     UnitProvider
	Theme     charts.Theme
	// Direction forces "rtl" or "ltr"; empty follows the locale.
	Direction string
	Location  *time.Location
	Width     int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Card is one forecast chart instance.
type Card struct {
	charts     *charts.Manager
	controller *subscription.Controller
	store      EntityStore
	units      UnitProvider
	theme      charts.Theme
	direction  string
	location   *time.Location
	now        func() time.Time

	intents  chan intent
	stopping chan struct{}
	done     chan struct{}
	runOnce  sync.Once

	mu       sync.RWMutex
	cfg      models.CardConfig
	hasCfg   bool
	points   []models.ForecastPoint
	width    int
	layout   forecast.Layout
	series   models.ForecastSeries
	status   Status
	rendered time.Time
}

// New creates a card. Call Apply with a config and Run to start drawing.
func New(opts Options) *Card {
	c := &Card{
		charts:    opts.Charts,
		store:     opts.Store,
		units:     opts.Units,
		theme:     opts.Theme,
		direction: opts.Direction,
		location:  opts.Location,
		now:       opts.Now,
		width:     opts.Width,
		intents:   make(chan intent, 64),
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	if c.location == nil {
		c.location = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.controller = subscription.NewController(opts.Feed, opts.Scheduler, c.onForecast, c.onTick)
	return c
}

// Apply replaces the card config. A changed entity or forecast type
// re-subscribes; a changed autoscroll flag starts or stops the hourly refresh.
func (c *Card) Apply(ctx context.Context, cfg models.CardConfig) error {
	c.mu.Lock()
	c.cfg = cfg
	c.hasCfg = true
	c.mu.Unlock()

	if err := c.controller.EnsureSubscription(ctx, cfg.Entity, cfg.Forecast.Type); err != nil {
		return err
	}

	if cfg.Autoscroll {
		if err := c.controller.EnableAutoscroll(); err != nil {
			return err
		}
	} else {
		c.controller.DisableAutoscroll()
	}

	return c.enqueue(ctx, intent{kind: intentConfig})
}

// Resize records a new container width and redraws for it.
func (c *Card) Resize(ctx context.Context, width int) error {
	return c.enqueue(ctx, intent{kind: intentResize, width: width})
}

// EntityChanged signals that the weather entity state changed.
func (c *Card) EntityChanged(ctx context.Context) error {
	return c.enqueue(ctx, intent{kind: intentEntity})
}

func (c *Card) onForecast(points []models.ForecastPoint) {
	if err := c.enqueue(context.Background(), intent{kind: intentPush, points: points}); err != nil {
		log.Debug("Dropping forecast push", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Card) onTick() {
	if err := c.enqueue(context.Background(), intent{kind: intentTick}); err != nil {
		log.Debug("Dropping autoscroll tick", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Card) enqueue(ctx context.Context, it intent) error {
	select {
	case <-c.stopping:
		return ErrStopped
	default:
	}
	select {
	case c.intents <- it:
		return nil
	case <-c.stopping:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes queued intents until ctx is cancelled, then releases the
// subscription, the autoscroll timer and the chart.
func (c *Card) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("card is already running")
	}
	defer close(c.done)

	// initial draw, queued behind anything that arrived before Run
	select {
	case c.intents <- intent{kind: intentInitial}:
	default:
		log.Debug("Intent queue full, skipping initial draw")
	}

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case it := <-c.intents:
			c.handle(ctx, it)
		}
	}
}

// shutdown runs on the Run goroutine, so nothing drains intents from here
// on. Closing stopping first keeps a tick or push fired during teardown from
// blocking on a full queue.
func (c *Card) shutdown() {
	close(c.stopping)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.controller.Teardown(ctx); err != nil {
		log.Error("Failed to release forecast subscription", err)
	}
	if err := c.charts.Destroy(); err != nil {
		log.Error("Failed to destroy chart", err)
	}
	log.Info("Card stopped")
}

// handle applies one intent. Pushes, config changes, resizes and the initial
// draw rebuild the chart; ticks and entity changes update it in place unless
// no chart exists yet.
func (c *Card) handle(ctx context.Context, it intent) {
	c.mu.Lock()
	switch it.kind {
	case intentPush:
		c.points = it.points
	case intentResize:
		c.width = it.width
	}
	if !c.hasCfg {
		c.mu.Unlock()
		log.Debug("No card config yet", map[string]interface{}{"intent": intentNames[it.kind]})
		return
	}
	cfg, points, width := c.cfg, c.points, c.width
	c.mu.Unlock()

	if _, ok := c.store.Lookup(ctx, cfg.Entity); !ok {
		c.setStatus(StatusEntityMissing)
		log.Warn("Weather entity is absent", map[string]interface{}{"entity": cfg.Entity})
		return
	}
	c.setStatus(StatusReady)

	now := c.now()
	layout := forecast.Measure(cfg.Forecast, width, len(points))
	series := forecast.Normalize(points, cfg, layout.Items, now)

	var err error
	if it.full() || c.charts.State() == charts.Absent {
		env := c.env(cfg, layout)
		err = c.charts.FullRedraw(ctx, series, cfg, env)
	} else {
		err = c.charts.IncrementalUpdate(ctx, series)
	}
	if err != nil {
		log.Error("Chart operation failed", err, map[string]interface{}{"intent": intentNames[it.kind]})
		return
	}

	c.mu.Lock()
	c.layout = layout
	c.series = series
	c.rendered = now
	c.mu.Unlock()
}

func (c *Card) env(cfg models.CardConfig, layout forecast.Layout) charts.Env {
	return charts.Env{
		Theme:      c.theme,
		Locale:     locale.Lookup(cfg.Locale),
		Direction:  c.direction,
		TempUnit:   c.units.UnitFor("temperature"),
		LengthUnit: c.units.UnitFor("length"),
		Width:      layout.ChartWidth,
		Location:   c.location,
	}
}

func (c *Card) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// Status reports whether the weather entity resolved on the last render.
func (c *Card) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// StatusMessage is the user-facing text for the current status, or "".
func (c *Card) StatusMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != StatusEntityMissing {
		return ""
	}
	return locale.Lookup(c.cfg.Locale).Strings.CheckEntity
}

// Config returns the current card config and whether one was applied.
func (c *Card) Config() (models.CardConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, c.hasCfg
}

// Autoscroll reports whether the hourly refresh is active.
func (c *Card) Autoscroll() bool {
	return c.controller.Autoscroll()
}

// Subscription returns the live forecast subscription, if any.
func (c *Card) Subscription() (subscription.Handle, bool) {
	return c.controller.Subscribed()
}
