package charts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weatherchart/internal/locale"
	"weatherchart/internal/models"
)

type fakeRenderer struct {
	live      int
	created   int
	resources []*fakeResource
	failNext  bool
}

func (r *fakeRenderer) Create(_ context.Context, _ Surface, data *ChartData, opts Options) (Resource, error) {
	if r.failNext {
		r.failNext = false
		return nil, errors.New("canvas lost")
	}
	r.live++
	r.created++
	res := &fakeResource{renderer: r, data: data, opts: opts}
	r.resources = append(r.resources, res)
	return res, nil
}

type fakeResource struct {
	renderer  *fakeRenderer
	data      *ChartData
	opts      Options
	updates   int
	destroyed bool
}

func (f *fakeResource) Data() *ChartData { return f.data }

func (f *fakeResource) Update(context.Context) error {
	if f.destroyed {
		return ErrResourceDestroyed
	}
	f.updates++
	return nil
}

func (f *fakeResource) Destroy() error {
	if !f.destroyed {
		f.destroyed = true
		f.renderer.live--
	}
	return nil
}

type memSurface struct{ published int }

func (s *memSurface) Name() string { return "test" }

func (s *memSurface) Publish(context.Context, []byte, string) error {
	s.published++
	return nil
}

func testSeries(n int) models.ForecastSeries {
	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	s := models.ForecastSeries{}
	for i := 0; i < n; i++ {
		s.Timestamps = append(s.Timestamps, start.Add(time.Duration(i)*24*time.Hour))
		s.TempHigh = append(s.TempHigh, models.Float(float64(20+i)))
		s.TempLow = append(s.TempLow, models.Float(float64(10+i)))
		s.Precip = append(s.Precip, float64(i))
		s.Probability = append(s.Probability, models.Float(float64(10*i)))
	}
	return s
}

func testCard() models.CardConfig {
	return models.CardConfig{
		Entity: "weather.home",
		Forecast: models.ForecastConfig{
			Type:               models.ForecastDaily,
			PrecipitationType:  models.PrecipitationRainfall,
			ChartHeight:        180,
			Style:              "style1",
			LabelsFontSize:     11,
			PrecipBarSize:      100,
			PrecipitationColor: "rgba(132, 209, 253, 1.0)",
			Temperature1Color:  "rgba(255, 152, 0, 1.0)",
			Temperature2Color:  "rgba(68, 115, 158, 1.0)",
		},
	}
}

func testEnv() Env {
	return Env{
		Theme:      Theme{Background: "#ffffff", Text: "#212121", Divider: "#e0e0e0"},
		Locale:     locale.Lookup("en"),
		TempUnit:   "°C",
		LengthUnit: "km",
		Width:      400,
		Location:   time.UTC,
	}
}

func TestFullRedrawTwiceLeavesOneLiveResource(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, &memSurface{})
	ctx := context.Background()

	require.NoError(t, m.FullRedraw(ctx, testSeries(5), testCard(), testEnv()))
	require.NoError(t, m.FullRedraw(ctx, testSeries(5), testCard(), testEnv()))

	require.Equal(t, 1, r.live)
	require.Equal(t, 2, r.created)
	require.True(t, r.resources[0].destroyed)
	require.False(t, r.resources[1].destroyed)
	require.Equal(t, Live, m.State())
}

func TestFullRedrawSkipsEmptySeries(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, &memSurface{})

	require.NoError(t, m.FullRedraw(context.Background(), models.ForecastSeries{}, testCard(), testEnv()))
	require.Equal(t, 0, r.created)
	require.Equal(t, Absent, m.State())
}

func TestFullRedrawWithoutSurface(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, nil)

	require.NoError(t, m.FullRedraw(context.Background(), testSeries(3), testCard(), testEnv()))
	require.Equal(t, 0, r.created)

	m.AttachSurface(&memSurface{})
	require.NoError(t, m.FullRedraw(context.Background(), testSeries(3), testCard(), testEnv()))
	require.Equal(t, 1, r.created)
}

func TestFullRedrawCreateFailureLeavesAbsent(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, &memSurface{})
	ctx := context.Background()

	require.NoError(t, m.FullRedraw(ctx, testSeries(3), testCard(), testEnv()))
	r.failNext = true
	require.Error(t, m.FullRedraw(ctx, testSeries(3), testCard(), testEnv()))

	require.Equal(t, Absent, m.State())
	require.Equal(t, 0, r.live)
}

func TestIncrementalUpdateMutatesInPlace(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, &memSurface{})
	ctx := context.Background()

	require.NoError(t, m.FullRedraw(ctx, testSeries(3), testCard(), testEnv()))
	next := testSeries(4)
	next.TempHigh[0] = models.Float(-3)
	require.NoError(t, m.IncrementalUpdate(ctx, next))
	require.NoError(t, m.IncrementalUpdate(ctx, next))

	require.Equal(t, 1, r.created)
	res := r.resources[0]
	require.Equal(t, 2, res.updates)
	require.Len(t, res.data.Labels, 4)
	require.Equal(t, -3.0, *res.data.Datasets[TempHighDataset].Data[0])
	require.Equal(t, 3.0, *res.data.Datasets[PrecipDataset].Data[3])
	require.Equal(t, 30.0, *res.data.Probability[3])
}

func TestIncrementalUpdateWhenAbsentIsNoop(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, &memSurface{})

	require.NoError(t, m.IncrementalUpdate(context.Background(), testSeries(3)))
	require.Equal(t, 0, r.created)
	require.Equal(t, Absent, m.State())
}

func TestDestroy(t *testing.T) {
	r := &fakeRenderer{}
	m := NewManager(r, &memSurface{})
	ctx := context.Background()

	require.NoError(t, m.FullRedraw(ctx, testSeries(3), testCard(), testEnv()))
	require.NoError(t, m.Destroy())
	require.NoError(t, m.Destroy())
	require.Equal(t, 0, r.live)
	require.Equal(t, Absent, m.State())
}

func TestPaintedResourceUpdateAfterDestroy(t *testing.T) {
	surface := &memSurface{}
	data, opts := Build(testSeries(3), testCard(), testEnv())
	res, err := NewPNGRenderer().Create(context.Background(), surface, data, opts)
	require.NoError(t, err)
	require.Equal(t, 1, surface.published)

	require.NoError(t, res.Update(context.Background()))
	require.Equal(t, 2, surface.published)

	require.NoError(t, res.Destroy())
	require.ErrorIs(t, res.Update(context.Background()), ErrResourceDestroyed)
}
