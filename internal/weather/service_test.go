package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type fetchCall struct {
	query Query
	units Units
}

type fakeClient struct {
	mu       sync.Mutex
	forecast Forecast
	err      error
	calls    []fetchCall
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) FetchForecast(_ context.Context, q Query, units Units) (Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{query: q, units: units})
	if f.err != nil {
		return Forecast{}, f.err
	}
	return f.forecast, nil
}

func (f *fakeClient) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// blockingClient holds every fetch until release is closed.
type blockingClient struct {
	fakeClient
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingClient(fc Forecast) *blockingClient {
	return &blockingClient{
		fakeClient: fakeClient{forecast: fc},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (b *blockingClient) FetchForecast(ctx context.Context, q Query, units Units) (Forecast, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeClient.FetchForecast(ctx, q, units)
}

type currentFakeClient struct {
	fakeClient
	current Current
}

func (c *currentFakeClient) FetchCurrent(context.Context, Query, Units) (Current, error) {
	return c.current, nil
}

type memStore struct {
	mu     sync.Mutex
	states []State
}

func (m *memStore) Save(s State) {
	m.mu.Lock()
	m.states = append(m.states, s)
	m.mu.Unlock()
}

func (m *memStore) Latest() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return State{}, errors.New("empty")
	}
	return m.states[len(m.states)-1], nil
}

func (m *memStore) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.states...)
}

func threeDayForecast(place string) Forecast {
	var samples []RawSample
	for d := 0; d < 3; d++ {
		at := testNow.AddDate(0, 0, d).Add(6 * time.Hour)
		samples = append(samples, RawSample{
			Epoch:                at.Unix(),
			Temperature:          20 + float64(d),
			ConditionIcon:        "01d",
			ConditionDescription: "clear sky",
		})
	}
	return Forecast{Place: place, Samples: samples}
}

func newTestService(client ForecastClient, store Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(client, store, nil, opts...)
}

func TestServiceFetchByCityReplacesState(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	store := &memStore{}
	svc := newTestService(client, store)

	_, err := svc.Snapshot()
	require.ErrorIs(t, err, ErrNoForecast)

	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))

	st, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Paris", st.Place)
	assert.Len(t, st.Summaries, 3)
	assert.Equal(t, TodayLabel, st.Summaries[0].Day)
	assert.Equal(t, 0, st.Selected)
	assert.False(t, st.Loading)
	assert.Equal(t, testNow, st.UpdatedAt)
	require.NotNil(t, st.Query)
	assert.Equal(t, "Paris,FR", st.Query.Key())

	call := client.lastCall()
	assert.Equal(t, UnitsMetric, call.units)
	assert.Equal(t, "Paris", call.query.City)

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, "Paris", latest.Place)
	assert.Len(t, svc.History(), 1)
}

func TestServicePlaceFallsBackToQueriedCity(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("")}
	svc := newTestService(client, nil)

	require.NoError(t, svc.FetchByCity(context.Background(), "Reno", ""))
	assert.Equal(t, "Reno", svc.State().Place)
}

func TestServiceFetchByCoordinates(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Summerlin")}
	svc := newTestService(client, nil)

	require.NoError(t, svc.FetchByCoordinates(context.Background(), 36.17, -115.14))

	call := client.lastCall()
	require.True(t, call.query.HasCoordinates())
	assert.InDelta(t, 36.17, *call.query.Lat, 1e-9)
	assert.InDelta(t, -115.14, *call.query.Lon, 1e-9)
	assert.Equal(t, "Summerlin", svc.State().Place)
}

func TestServiceFailureKeepsPreviousState(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)
	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))
	before := svc.State()

	upstream := errors.New("boom")
	client.setErr(upstream)

	err := svc.FetchByCity(context.Background(), "Berlin", "DE")
	require.ErrorIs(t, err, upstream)

	after := svc.State()
	assert.Equal(t, before.Place, after.Place)
	assert.Equal(t, before.Summaries, after.Summaries)
	assert.Equal(t, before.Query, after.Query)
	assert.False(t, after.Loading)
}

func TestServiceDropsOverlappingFetch(t *testing.T) {
	client := newBlockingClient(threeDayForecast("Paris"))
	svc := newTestService(client, nil)

	done := make(chan error, 1)
	go func() { done <- svc.FetchByCity(context.Background(), "Paris", "FR") }()
	<-client.started

	assert.True(t, svc.State().Loading)
	err := svc.FetchByCity(context.Background(), "Berlin", "DE")
	require.ErrorIs(t, err, ErrBusy)

	close(client.release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, "Paris", svc.State().Place)
	assert.False(t, svc.State().Loading)
}

func TestServiceObservers(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)

	var mu sync.Mutex
	var seen []State
	cancel := svc.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))
	require.NoError(t, svc.Select(2))

	mu.Lock()
	require.Len(t, seen, 2)
	assert.Equal(t, 0, seen[0].Selected)
	assert.Equal(t, 2, seen[1].Selected)
	// observers get copies
	seen[1].Summaries[0].Day = "changed"
	mu.Unlock()
	assert.Equal(t, TodayLabel, svc.State().Summaries[0].Day)

	cancel()
	require.NoError(t, svc.Select(1))
	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
}

func TestServiceSelect(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)

	require.ErrorIs(t, svc.Select(0), ErrOutOfRange)

	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))
	require.NoError(t, svc.Select(2))
	assert.Equal(t, 2, svc.State().Selected)

	require.ErrorIs(t, svc.Select(3), ErrOutOfRange)
	require.ErrorIs(t, svc.Select(-1), ErrOutOfRange)

	d, ok := svc.State().SelectedSummary()
	require.True(t, ok)
	assert.Equal(t, 22, d.Temperature)

	// a new fetch resets the selection
	require.NoError(t, svc.Refresh(context.Background()))
	assert.Equal(t, 0, svc.State().Selected)
}

func TestServiceSetFahrenheitRefetches(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)
	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))

	require.NoError(t, svc.SetFahrenheit(context.Background(), true))

	assert.Equal(t, 2, client.callCount())
	call := client.lastCall()
	assert.Equal(t, UnitsImperial, call.units)
	assert.Equal(t, "Paris", call.query.City)

	st := svc.State()
	assert.True(t, st.Fahrenheit)
	for _, d := range st.Summaries {
		assert.True(t, d.IsFahrenheit)
	}

	// unchanged toggle is a no-op
	require.NoError(t, svc.SetFahrenheit(context.Background(), true))
	assert.Equal(t, 2, client.callCount())
}

func TestServiceSetFahrenheitWithoutPlace(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)

	notified := 0
	svc.Subscribe(func(State) { notified++ })

	require.NoError(t, svc.SetFahrenheit(context.Background(), true))
	assert.Equal(t, 0, client.callCount())
	assert.True(t, svc.State().Fahrenheit)
	assert.Equal(t, 1, notified)

	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))
	assert.Equal(t, UnitsImperial, client.lastCall().units)
}

func TestServiceInitialUnitOption(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil, WithFahrenheit(true))

	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))
	assert.Equal(t, UnitsImperial, client.lastCall().units)
}

func TestServiceRefresh(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)

	require.NoError(t, svc.Refresh(context.Background()))
	assert.Equal(t, 0, client.callCount())

	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))
	require.NoError(t, svc.Refresh(context.Background()))
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, "Paris,FR", client.lastCall().query.Key())
}

func TestServiceLookupLeavesStateAlone(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Oslo")}
	svc := newTestService(client, nil)

	fc, summaries, err := svc.Lookup(context.Background(), CityQuery("Oslo", "NO"), UnitsImperial)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", fc.Place)
	require.Len(t, summaries, 3)
	assert.True(t, summaries[0].IsFahrenheit)

	_, err = svc.Snapshot()
	assert.ErrorIs(t, err, ErrNoForecast)
}

func TestServiceCurrent(t *testing.T) {
	svc := newTestService(&fakeClient{}, nil)
	_, err := svc.Current(context.Background(), CityQuery("Oslo", ""), UnitsMetric)
	require.ErrorIs(t, err, ErrCurrentUnsupported)

	client := &currentFakeClient{current: Current{
		Place:  "Oslo",
		Sample: RawSample{Temperature: -3.4, ConditionIcon: "13d", ConditionDescription: "snow"},
	}}
	svc = newTestService(client, nil)

	got, err := svc.Current(context.Background(), CityQuery("Oslo", ""), UnitsMetric)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", got.Place)
	assert.Equal(t, -3, got.Temperature)
	assert.Equal(t, "snowflake", got.Icon)
}

func TestServiceUnitToggleRejectedWhileFetchInFlight(t *testing.T) {
	client := newBlockingClient(threeDayForecast("Paris"))
	svc := newTestService(client, nil)

	done := make(chan error, 1)
	go func() { done <- svc.FetchByCity(context.Background(), "Paris", "FR") }()
	<-client.started

	require.ErrorIs(t, svc.SetFahrenheit(context.Background(), true), ErrBusy)
	assert.False(t, svc.State().Fahrenheit)

	close(client.release)
	require.NoError(t, <-done)

	st := svc.State()
	assert.False(t, st.Fahrenheit)
	require.NotEmpty(t, st.Summaries)
	assert.Equal(t, st.Fahrenheit, st.Summaries[0].IsFahrenheit)

	// a retried toggle goes through once the fetch has finished
	require.NoError(t, svc.SetFahrenheit(context.Background(), true))
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, UnitsImperial, client.lastCall().units)

	st = svc.State()
	assert.True(t, st.Fahrenheit)
	for _, d := range st.Summaries {
		assert.True(t, d.IsFahrenheit)
		assert.Equal(t, "°F", d.Display()[len(d.Display())-len("°F"):])
	}
}

func TestServiceUnitToggleKeptOnFailedRefetch(t *testing.T) {
	client := &fakeClient{forecast: threeDayForecast("Paris")}
	svc := newTestService(client, nil)
	require.NoError(t, svc.FetchByCity(context.Background(), "Paris", "FR"))

	notified := 0
	svc.Subscribe(func(State) { notified++ })

	upstream := errors.New("boom")
	client.setErr(upstream)
	require.ErrorIs(t, svc.SetFahrenheit(context.Background(), true), upstream)

	st := svc.State()
	assert.False(t, st.Fahrenheit)
	assert.False(t, st.Summaries[0].IsFahrenheit)
	assert.Zero(t, notified)

	client.setErr(nil)
	require.NoError(t, svc.SetFahrenheit(context.Background(), true))
	assert.True(t, svc.State().Fahrenheit)
	assert.Equal(t, 1, notified)
}

func TestServiceRejectsUnitsWithoutLabel(t *testing.T) {
	client := &currentFakeClient{}
	svc := newTestService(client, nil)

	_, _, err := svc.Lookup(context.Background(), CityQuery("Oslo", ""), UnitsStandard)
	require.ErrorIs(t, err, ErrUnsupportedUnits)

	_, err = svc.Current(context.Background(), CityQuery("Oslo", ""), UnitsStandard)
	require.ErrorIs(t, err, ErrUnsupportedUnits)

	assert.Zero(t, client.callCount())
}
