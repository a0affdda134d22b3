package card

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weatherchart/internal/charts"
	"weatherchart/internal/config"
	"weatherchart/internal/locale"
	"weatherchart/internal/models"
	"weatherchart/internal/subscription"
)

var now = time.Date(2024, 5, 10, 0, 30, 0, 0, time.UTC)

type fakeFeed struct {
	mu     sync.Mutex
	subs   int
	unsubs int
	push   subscription.UpdateFunc
}

func (f *fakeFeed) Subscribe(_ context.Context, entityID string, ft models.ForecastType, onUpdate subscription.UpdateFunc) (subscription.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	f.push = onUpdate
	return subscription.Handle{ID: fmt.Sprint(f.subs), EntityID: entityID, ForecastType: ft}, nil
}

func (f *fakeFeed) Unsubscribe(context.Context, subscription.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs++
	return nil
}

func (f *fakeFeed) deliver(points []models.ForecastPoint) {
	f.mu.Lock()
	push := f.push
	f.mu.Unlock()
	push(points)
}

type fakeScheduler struct {
	mu            sync.Mutex
	starts, stops int
	task          func()
	// onStop runs before Stop returns, like a tick still in flight.
	onStop func(task func())
}

func (s *fakeScheduler) Start(task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.task = task
	return nil
}

func (s *fakeScheduler) Stop() {
	s.mu.Lock()
	s.stops++
	task, onStop := s.task, s.onStop
	s.task = nil
	s.mu.Unlock()
	if onStop != nil && task != nil {
		onStop(task)
	}
}

type fakeStore struct {
	mu       sync.Mutex
	entities map[string]*models.Entity
}

func (s *fakeStore) Lookup(_ context.Context, id string) (*models.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	return e, ok
}

func (s *fakeStore) set(e *models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.EntityID] = e
}

type fakeUnits map[string]string

func (u fakeUnits) UnitFor(category string) string { return u[category] }

type fakeRenderer struct {
	mu       sync.Mutex
	created  int
	live     int
	updates  int
	lastOpts charts.Options
}

func (r *fakeRenderer) Create(_ context.Context, _ charts.Surface, data *charts.ChartData, opts charts.Options) (charts.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	r.live++
	r.lastOpts = opts
	return &fakeResource{r: r, data: data}, nil
}

func (r *fakeRenderer) counts() (created, live, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.live, r.updates
}

type fakeResource struct {
	r    *fakeRenderer
	data *charts.ChartData
}

func (f *fakeResource) Data() *charts.ChartData { return f.data }

func (f *fakeResource) Update(context.Context) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.updates++
	return nil
}

func (f *fakeResource) Destroy() error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.live--
	return nil
}

type nopSurface struct{}

func (nopSurface) Name() string { return "test" }

func (nopSurface) Publish(context.Context, []byte, string) error { return nil }

type fixture struct {
	card     *Card
	feed     *fakeFeed
	sched    *fakeScheduler
	store    *fakeStore
	renderer *fakeRenderer
}

func weatherEntity() *models.Entity {
	return &models.Entity{
		EntityID: "weather.home",
		State:    "rainy",
		Attributes: map[string]interface{}{
			"temperature":          21.6,
			"temperature_unit":     "°C",
			"apparent_temperature": 20.4,
			"humidity":             55.0,
			"pressure":             1013.0,
			"pressure_unit":        "hPa",
			"wind_speed":           36.0,
			"wind_speed_unit":      "km/h",
			"wind_gust_speed":      54.0,
			"wind_bearing":         200.0,
			"visibility":           9.7,
			"visibility_unit":      "km",
			"uv_index":             3.0,
			"dew_point":            12.3,
		},
		LastChanged: now.Add(-90 * time.Minute).Format(time.RFC3339),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		feed:     &fakeFeed{},
		sched:    &fakeScheduler{},
		store:    &fakeStore{entities: map[string]*models.Entity{}},
		renderer: &fakeRenderer{},
	}
	f.store.set(weatherEntity())
	f.store.set(&models.Entity{
		EntityID: SunEntity,
		State:    "below_horizon",
		Attributes: map[string]interface{}{
			"next_rising":  "2024-05-10T03:21:00+00:00",
			"next_setting": "2024-05-10T18:45:00+00:00",
		},
	})
	f.card = New(Options{
		Charts:    charts.NewManager(f.renderer, nopSurface{}),
		Feed:      f.feed,
		Scheduler: f.sched,
		Store:     f.store,
		Units:     fakeUnits{"temperature": "°C", "length": "km"},
		Theme:     charts.Theme{Background: "#ffffff", Text: "#212121"},
		Location:  time.UTC,
		Width:     400,
		Now:       func() time.Time { return now },
	})
	return f
}

func testConfig() models.CardConfig {
	cfg := config.DefaultCardConfig()
	cfg.Entity = "weather.home"
	cfg.Forecast.Type = models.ForecastHourly
	return cfg
}

func hourly(n int) []models.ForecastPoint {
	points := make([]models.ForecastPoint, n)
	for i := range points {
		points[i] = models.ForecastPoint{
			Datetime:    now.Truncate(time.Hour).Add(time.Duration(i) * time.Hour),
			Temperature: float64(10 + i),
			WindSpeed:   models.Float(36),
			WindBearing: models.Bearing{Degrees: models.Float(90)},
			Condition:   "sunny",
		}
	}
	return points
}

func TestApplySubscribesOnceAndResubscribesOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := testConfig()
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.Equal(t, 1, f.feed.subs)
	require.Equal(t, 0, f.feed.unsubs)

	cfg.Forecast.Type = models.ForecastDaily
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.Equal(t, 2, f.feed.subs)
	require.Equal(t, 1, f.feed.unsubs)

	h, ok := f.card.Subscription()
	require.True(t, ok)
	require.Equal(t, models.ForecastDaily, h.ForecastType)
}

func TestApplyTogglesAutoscroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.Autoscroll = true
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.True(t, f.card.Autoscroll())
	require.Equal(t, 1, f.sched.starts)

	cfg.Autoscroll = false
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.False(t, f.card.Autoscroll())
	require.Equal(t, 1, f.sched.stops)
}

func TestEveryPushIsAFullRedraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.card.Apply(ctx, testConfig()))

	f.card.handle(ctx, intent{kind: intentPush, points: hourly(24)})
	f.card.handle(ctx, intent{kind: intentPush, points: hourly(24)})

	created, live, updates := f.renderer.counts()
	require.Equal(t, 2, created)
	require.Equal(t, 1, live)
	require.Equal(t, 0, updates)
}

func TestTickAndEntityChangeUpdateInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.card.Apply(ctx, testConfig()))

	f.card.handle(ctx, intent{kind: intentPush, points: hourly(24)})
	f.card.handle(ctx, intent{kind: intentTick})
	f.card.handle(ctx, intent{kind: intentEntity})

	created, live, updates := f.renderer.counts()
	require.Equal(t, 1, created)
	require.Equal(t, 1, live)
	require.Equal(t, 2, updates)
}

func TestTickWithoutChartDrawsFully(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.card.Apply(ctx, testConfig()))

	// the push is stored but not drawn while the entity is missing
	f.store.mu.Lock()
	delete(f.store.entities, "weather.home")
	f.store.mu.Unlock()
	f.card.handle(ctx, intent{kind: intentPush, points: hourly(24)})
	require.Equal(t, StatusEntityMissing, f.card.Status())
	require.Equal(t, "Please, check your weather entity", f.card.StatusMessage())
	created, _, _ := f.renderer.counts()
	require.Equal(t, 0, created)

	f.store.set(weatherEntity())
	f.card.handle(ctx, intent{kind: intentTick})
	created, live, updates := f.renderer.counts()
	require.Equal(t, 1, created)
	require.Equal(t, 1, live)
	require.Equal(t, 0, updates)
	require.Equal(t, StatusReady, f.card.Status())
	require.Empty(t, f.card.StatusMessage())
}

func TestResizeRemeasuresWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.card.Apply(ctx, testConfig()))

	f.card.handle(ctx, intent{kind: intentPush, points: hourly(24)})
	view, err := f.card.Forecast(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, view.Series.Len())

	f.card.handle(ctx, intent{kind: intentResize, width: 600})
	view, err = f.card.Forecast(ctx)
	require.NoError(t, err)
	require.Equal(t, 18, view.Series.Len())
	require.Equal(t, 600, view.Layout.Width)

	created, live, _ := f.renderer.counts()
	require.Equal(t, 2, created)
	require.Equal(t, 1, live)
	require.Equal(t, 600, f.renderer.lastOpts.Width)
}

func TestIntentsBeforeConfigAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.card.handle(context.Background(), intent{kind: intentPush, points: hourly(3)})

	created, _, _ := f.renderer.counts()
	require.Equal(t, 0, created)
	_, err := f.card.Forecast(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestForecastRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.Units.Speed = "m/s"
	require.NoError(t, f.card.Apply(ctx, cfg))

	points := hourly(24)
	points[1].WindBearing = models.Bearing{Label: "NW"}
	points[1].WindSpeed = nil
	f.card.handle(ctx, intent{kind: intentPush, points: points})

	view, err := f.card.Forecast(ctx)
	require.NoError(t, err)
	require.Equal(t, "ready", view.Status)
	require.Len(t, view.Wind, view.Series.Len())
	require.Equal(t, WindItem{Direction: "E", Sector: 2, Speed: "10"}, view.Wind[0])
	require.Equal(t, WindItem{Direction: "NW", Sector: 7, Speed: ""}, view.Wind[1])

	require.Len(t, view.Conditions, view.Series.Len())
	// 00:00 and 02:00 are before sunrise, 04:00 is after
	require.False(t, view.Conditions[0].Daytime)
	require.False(t, view.Conditions[2].Daytime)
	require.True(t, view.Conditions[4].Daytime)
	require.Equal(t, "Sunny", view.Conditions[4].Label)
}

func TestConditionRowRules(t *testing.T) {
	night := time.Date(2024, 5, 12, 23, 0, 0, 0, time.UTC)
	points := []models.ForecastPoint{
		{Datetime: night, Condition: "clear-night"},
		{Datetime: night, Condition: "sunny", IsDaytime: models.Bool(true)},
	}
	sun := &models.Entity{Attributes: map[string]interface{}{
		"next_rising":  "2024-05-10T03:21:00+00:00",
		"next_setting": "2024-05-10T18:45:00+00:00",
	}}
	loc := locale.Lookup("en")

	daily := conditionRow(points, models.ForecastDaily, sun, loc, time.UTC)
	require.True(t, daily[0].Daytime)

	hourlyRow := conditionRow(points, models.ForecastHourly, sun, loc, time.UTC)
	require.False(t, hourlyRow[0].Daytime)
	require.True(t, hourlyRow[1].Daytime)

	// without sun times every point counts as day
	noSun := conditionRow(points[:1], models.ForecastHourly, nil, loc, time.UTC)
	require.True(t, noSun[0].Daytime)
}

func TestCurrentConditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.set(&models.Entity{
		EntityID: "sensor.garden",
		State:    "17.5",
		Attributes: map[string]interface{}{
			"friendly_name":       "Garden",
			"unit_of_measurement": "°C",
		},
	})

	cfg := testConfig()
	cfg.ShowApparent = true
	cfg.ShowDewPoint = true
	cfg.ShowVisibility = true
	cfg.ShowWindGust = true
	cfg.ShowLastChanged = true
	cfg.Units.Pressure = "mmHg"
	cfg.Units.Speed = "m/s"
	cfg.Option1 = "sensor.garden"
	cfg.Option2 = "sensor.missing"
	require.NoError(t, f.card.Apply(ctx, cfg))

	c, err := f.card.CurrentConditions(ctx)
	require.NoError(t, err)
	require.Equal(t, "Rainy", c.Condition)
	require.Equal(t, &Reading{Value: "22", Unit: "°C"}, c.Temperature)
	require.Equal(t, &Reading{Value: "20", Unit: "°C"}, c.FeelsLike)
	require.Equal(t, &Reading{Value: "55", Unit: "%"}, c.Humidity)
	require.Equal(t, &Reading{Value: "760", Unit: "mmHg"}, c.Pressure)
	require.Equal(t, &Reading{Value: "12.3", Unit: "°C"}, c.DewPoint)
	require.Equal(t, &Reading{Value: "9.7", Unit: "km"}, c.Visibility)
	require.Equal(t, &Reading{Value: "3"}, c.UVIndex)
	require.Equal(t, "SSW", c.WindDirection)
	require.Equal(t, &Reading{Value: "10", Unit: "m/s"}, c.WindSpeed)
	require.Equal(t, &Reading{Value: "15", Unit: "m/s"}, c.WindGust)
	require.Equal(t, &SunTimes{Rising: "03:21", Setting: "18:45"}, c.Sun)
	require.Equal(t, []OptionEntity{{Name: "Garden", State: "17.5", Unit: "°C"}}, c.Options)
	require.Equal(t, "1 hour ago", c.LastUpdated)
	require.Empty(t, c.Description)
}

func TestCurrentConditionsBeaufortFailureIsContained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	weather := weatherEntity()
	weather.Attributes["wind_speed_unit"] = "kn"
	f.store.set(weather)

	cfg := testConfig()
	cfg.Units.Speed = "Bft"
	require.NoError(t, f.card.Apply(ctx, cfg))

	c, err := f.card.CurrentConditions(ctx)
	require.NoError(t, err)
	require.Nil(t, c.WindSpeed)
	require.NotNil(t, c.Temperature)
}

func TestCurrentConditionsEntityMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.Entity = "weather.nowhere"
	require.NoError(t, f.card.Apply(ctx, cfg))

	_, err := f.card.CurrentConditions(ctx)
	require.ErrorIs(t, err, ErrEntityMissing)
	require.Equal(t, StatusEntityMissing, f.card.Status())
}

func TestShutdownWithTicksFiringDuringTeardown(t *testing.T) {
	f := newFixture(t)
	f.sched.onStop = func(task func()) {
		// more ticks than the intent queue holds
		for i := 0; i < 100; i++ {
			task()
		}
	}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- f.card.Run(ctx) }()

	cfg := testConfig()
	cfg.Autoscroll = true
	require.NoError(t, f.card.Apply(ctx, cfg))
	require.Eventually(t, func() bool {
		f.sched.mu.Lock()
		defer f.sched.mu.Unlock()
		return f.sched.starts == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return while ticks fired during teardown")
	}
	require.Equal(t, 1, f.sched.stops)
	require.ErrorIs(t, f.card.Resize(context.Background(), 300), ErrStopped)
}

func TestRunProcessesPushesAndTearsDown(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- f.card.Run(ctx) }()

	cfg := testConfig()
	cfg.Autoscroll = true
	require.NoError(t, f.card.Apply(ctx, cfg))
	f.feed.deliver(hourly(24))

	require.Eventually(t, func() bool {
		created, _, _ := f.renderer.counts()
		return created >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	_, live, _ := f.renderer.counts()
	require.Equal(t, 0, live)
	require.Equal(t, 1, f.feed.unsubs)
	require.Equal(t, 1, f.sched.stops)
	require.ErrorIs(t, f.card.Resize(context.Background(), 300), ErrStopped)
	require.Error(t, f.card.Run(context.Background()))
}
