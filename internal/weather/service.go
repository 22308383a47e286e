package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/forecast-summary/internal/common"
	"github.com/i474232898/forecast-summary/internal/logger"
	"github.com/i474232898/forecast-summary/internal/metrics"
)

var (
	// ErrBusy is returned when a fetch is requested while another one is in
	// flight. The request is dropped, not queued.
	ErrBusy = errors.New("a forecast fetch is already in progress")

	// ErrOutOfRange is returned when selecting a day that does not exist.
	ErrOutOfRange = errors.New("selected day is out of range")

	// ErrUnsupportedUnits is returned for unit systems without a display label.
	ErrUnsupportedUnits = errors.New("units cannot be displayed")

	// ErrNoForecast is returned before the first successful fetch.
	ErrNoForecast = errors.New("no forecast fetched yet")

	// ErrCurrentUnsupported is returned when the client cannot report current conditions.
	ErrCurrentUnsupported = errors.New("forecast client does not support current conditions")
)

// Option customises a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWeekdays sets the abbreviated weekday names used for day labels.
func WithWeekdays(names [7]string) Option {
	return func(s *Service) { s.weekdays = names }
}

// WithClock overrides the reference time source; its location defines
// calendar days.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithFahrenheit sets the initial unit toggle.
func WithFahrenheit(f bool) Option {
	return func(s *Service) { s.state.Fahrenheit = f }
}

// Service fetches forecasts, aggregates them and owns the single view state.
// At most one fetch runs at a time.
type Service struct {
	client   ForecastClient
	store    Store
	l        *logger.Logger
	metrics  *metrics.Metrics
	weekdays [7]string
	clock    func() time.Time

	busy atomic.Bool

	mu        sync.RWMutex
	state     State
	observers map[int]func(State)
	nextObs   int
}

// NewService creates a new Service.
func NewService(client ForecastClient, store Store, l *logger.Logger, opts ...Option) *Service {
	if l == nil {
		l = logger.Nop()
	}
	s := &Service{
		client:    client,
		store:     store,
		l:         l,
		weekdays:  DefaultWeekdays,
		clock:     time.Now,
		observers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchByCity fetches the forecast for a city and replaces the view state.
func (s *Service) FetchByCity(ctx context.Context, city, country string) error {
	return s.fetch(ctx, CityQuery(city, country))
}

// FetchByCoordinates fetches the forecast for a coordinate pair and replaces
// the view state.
func (s *Service) FetchByCoordinates(ctx context.Context, lat, lon float64) error {
	return s.fetch(ctx, CoordinateQuery(lat, lon))
}

// Refresh re-fetches the last successfully fetched place. Without one it is
// a no-op.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.RLock()
	q := s.state.Query
	s.mu.RUnlock()

	if q == nil {
		s.l.Debug("refresh skipped: no place selected yet")
		return nil
	}
	return s.fetch(ctx, *q)
}

// SetFahrenheit flips the unit toggle. Temperatures are requested upstream in
// the chosen unit, so a change re-fetches the current place, and the toggle
// is only committed together with summaries fetched in the new unit. While
// another fetch is in flight the change is rejected with ErrBusy.
func (s *Service) SetFahrenheit(ctx context.Context, fahrenheit bool) error {
	if !s.acquire("units") {
		return ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	if s.state.Fahrenheit == fahrenheit {
		s.mu.Unlock()
		return nil
	}
	q := s.state.Query
	if q != nil {
		s.mu.Unlock()
		return s.run(ctx, *q, fahrenheit)
	}
	s.state.Fahrenheit = fahrenheit
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Select marks one of the daily summaries as selected.
func (s *Service) Select(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.state.Summaries) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(s.state.Summaries))
	}
	if s.state.Selected == index {
		s.mu.Unlock()
		return nil
	}
	s.state.Selected = index
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// State returns a copy of the current view state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Snapshot is State, failing with ErrNoForecast until a fetch has succeeded.
func (s *Service) Snapshot() (State, error) {
	st := s.State()
	if st.Query == nil {
		return State{}, ErrNoForecast
	}
	return st, nil
}

// Latest returns the last committed state as recorded by the store.
func (s *Service) Latest() (State, error) {
	if s.store == nil {
		return State{}, ErrNoForecast
	}
	return s.store.Latest()
}

// History returns previously committed states, newest first.
func (s *Service) History() []State {
	if s.store == nil {
		return nil
	}
	return s.store.History()
}

// Subscribe registers fn to receive a copy of the state after every change.
// The returned func removes the subscription.
func (s *Service) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Lookup fetches and aggregates a forecast without touching the view state.
func (s *Service) Lookup(ctx context.Context, q Query, units Units) (Forecast, []DaySummary, error) {
	if err := checkDisplayUnits(units); err != nil {
		return Forecast{}, nil, err
	}
	fc, err := s.client.FetchForecast(ctx, q, units)
	if err != nil {
		s.l.Warning("forecast lookup failed", map[string]any{"query": q.Key(), "err": err})
		return Forecast{}, nil, fmt.Errorf("lookup forecast for %s: %w", q.Key(), err)
	}
	return fc, Aggregate(fc.Samples, s.clock(), units == UnitsImperial, s.weekdays), nil
}

// Current reports current conditions when the client supports them.
func (s *Service) Current(ctx context.Context, q Query, units Units) (CurrentSummary, error) {
	if err := checkDisplayUnits(units); err != nil {
		return CurrentSummary{}, err
	}
	cc, ok := s.client.(CurrentClient)
	if !ok {
		return CurrentSummary{}, ErrCurrentUnsupported
	}
	cur, err := cc.FetchCurrent(ctx, q, units)
	if err != nil {
		s.l.Warning("current conditions fetch failed", map[string]any{"query": q.Key(), "err": err})
		return CurrentSummary{}, fmt.Errorf("current conditions for %s: %w", q.Key(), err)
	}
	return SummarizeCurrent(cur, s.clock(), units == UnitsImperial), nil
}

// checkDisplayUnits rejects unit systems summaries cannot be labelled with.
func checkDisplayUnits(units Units) error {
	if units != UnitsMetric && units != UnitsImperial {
		return fmt.Errorf("%w: %q", ErrUnsupportedUnits, units)
	}
	return nil
}

// acquire takes the busy flag. A false result means the request was dropped.
func (s *Service) acquire(what string) bool {
	if s.busy.CompareAndSwap(false, true) {
		return true
	}
	s.metrics.FetchDropped()
	s.l.Debug("request dropped: another fetch is in flight", map[string]any{"request": what})
	return false
}

// fetch runs one fetch-aggregate-replace cycle in the current unit.
func (s *Service) fetch(ctx context.Context, q Query) error {
	if !s.acquire(q.Key()) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.RLock()
	fahrenheit := s.state.Fahrenheit
	s.mu.RUnlock()

	return s.run(ctx, q, fahrenheit)
}

// run fetches q in the unit given by fahrenheit and replaces the state. The
// caller holds the busy flag. Failures are logged and leave the previous
// state in place, unit toggle included.
func (s *Service) run(ctx context.Context, q Query, fahrenheit bool) error {
	s.mu.Lock()
	s.state.Loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.Loading = false
		s.mu.Unlock()
	}()

	units := UnitsFor(fahrenheit)
	fc, err := s.client.FetchForecast(ctx, q, units)
	if err != nil {
		s.l.Warning("weather fetch failed; keeping previous forecast", map[string]any{
			"client": s.client.Name(),
			"query":  q.Key(),
			"units":  string(units),
			"err":    err,
		})
		return fmt.Errorf("fetch forecast for %s: %w", q.Key(), err)
	}

	now := s.clock()
	summaries := Aggregate(fc.Samples, now, fahrenheit, s.weekdays)

	s.mu.Lock()
	s.state = State{
		Place:      common.FirstNonEmpty(fc.Place, q.City),
		Summaries:  summaries,
		Selected:   0,
		Fahrenheit: fahrenheit,
		Loading:    false,
		Query:      &q,
		UpdatedAt:  now,
	}
	snapshot := s.state.Clone()
	s.mu.Unlock()

	if s.store != nil {
		s.store.Save(snapshot)
	}
	s.metrics.SetSummaryCount(len(summaries))

	s.l.Info("forecast updated", map[string]any{
		"query": q.Key(),
		"place": snapshot.Place,
		"days":  len(summaries),
		"units": string(units),
	})

	s.notify(snapshot)
	return nil
}

func (s *Service) notify(state State) {
	s.mu.RLock()
	observers := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(state.Clone())
	}
}
