package weather

import (
	"context"
	"time"
)

// ForecastClient abstracts the upstream forecast API.
type ForecastClient interface {
	Name() string
	FetchForecast(ctx context.Context, q Query, units Units) (Forecast, error)
}

// CurrentClient is implemented by clients that can also report current
// conditions.
type CurrentClient interface {
	FetchCurrent(ctx context.Context, q Query, units Units) (Current, error)
}

// Current is the decoded current-conditions payload.
type Current struct {
	Place   string
	Country string
	Sample  RawSample
	Sunrise time.Time
	Sunset  time.Time
}

// Store is the contract the in-memory state store must satisfy.
type Store interface {
	Save(state State)
	Latest() (State, error)
	History() []State
}
