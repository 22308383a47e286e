package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/forecast-summary/internal/logger"
	"github.com/i474232898/forecast-summary/internal/metrics"
	"github.com/i474232898/forecast-summary/internal/weather"
)

// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

const (
	endpointForecast = "forecast"
	endpointCurrent  = "weather"
)

// OpenWeatherConfig configures the OpenWeatherMap client.
type OpenWeatherConfig struct {
	APIKey   string
	BaseURL  string
	Language string

	Client  *http.Client
	Backoff BackoffConfig

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// OpenWeatherClient fetches 5-day / 3-hour forecasts and current conditions
// from OpenWeatherMap.
type OpenWeatherClient struct {
	name     string
	apiKey   string
	baseURL  string
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	metrics  *metrics.Metrics
	l        *logger.Logger
}

func NewOpenWeatherClient(cfg OpenWeatherConfig) *OpenWeatherClient {
	name := "openweathermap"

	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warning("circuit breaker state changed", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			cfg.Metrics.SetCircuitBreakerState(name, breakerStateValue(to))
		},
	})
	cfg.Metrics.SetCircuitBreakerState(name, breakerStateValue(gobreaker.StateClosed))

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	backoff := cfg.Backoff
	if backoff.MaxRetries > 0 && backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 500 * time.Millisecond
	}

	return &OpenWeatherClient{
		name:     name,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  baseURL,
		language: cfg.Language,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
			Limiter: limiter,
		},
		circuit: cb,
		metrics: cfg.Metrics,
		l:       l,
	}
}

func (c *OpenWeatherClient) Name() string {
	return c.name
}

type owCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owMain struct {
	Temp    float64 `json:"temp"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

type owEntry struct {
	Dt      int64         `json:"dt"`
	Main    owMain        `json:"main"`
	Weather []owCondition `json:"weather"`
}

type owForecastPayload struct {
	List []owEntry `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

type owCurrentPayload struct {
	owEntry
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

// FetchForecast retrieves the 5-day / 3-hour forecast for q, with
// temperatures already in units.
func (c *OpenWeatherClient) FetchForecast(ctx context.Context, q weather.Query, units weather.Units) (weather.Forecast, error) {
	var payload owForecastPayload
	if err := c.get(ctx, endpointForecast, q, units, &payload); err != nil {
		return weather.Forecast{}, err
	}

	samples := make([]weather.RawSample, 0, len(payload.List))
	for _, e := range payload.List {
		samples = append(samples, e.toSample())
	}

	c.l.Debug("parsed forecast response", map[string]any{
		"query":   q.Key(),
		"samples": len(samples),
		"place":   payload.City.Name,
	})

	return weather.Forecast{
		Place:   payload.City.Name,
		Samples: samples,
	}, nil
}

// FetchCurrent retrieves current conditions for q.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, q weather.Query, units weather.Units) (weather.Current, error) {
	var payload owCurrentPayload
	if err := c.get(ctx, endpointCurrent, q, units, &payload); err != nil {
		return weather.Current{}, err
	}

	cur := weather.Current{
		Place:   payload.Name,
		Country: payload.Sys.Country,
		Sample:  payload.toSample(),
	}
	if payload.Sys.Sunrise > 0 && payload.Sys.Sunset > 0 {
		cur.Sunrise = time.Unix(payload.Sys.Sunrise, 0).UTC()
		cur.Sunset = time.Unix(payload.Sys.Sunset, 0).UTC()
	}
	return cur, nil
}

func (c *OpenWeatherClient) get(ctx context.Context, endpoint string, q weather.Query, units weather.Units, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.FetchObserved(endpoint, time.Since(start), err)
	}()

	u, err := c.buildURL(endpoint, q, units)
	if err != nil {
		return err
	}

	c.l.Info("making openweather API request", map[string]any{
		"endpoint": endpoint,
		"query":    q.Key(),
		"units":    string(units),
	})

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.l.Info("received openweather API response", map[string]any{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
	})

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// buildURL validates the request and renders the endpoint URL.
func (c *OpenWeatherClient) buildURL(endpoint string, q weather.Query, units weather.Units) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}
	if !units.Valid() {
		return "", fmt.Errorf("%w: unknown units %q", ErrMalformedRequest, units)
	}

	values := url.Values{}
	switch {
	case q.HasCoordinates():
		if *q.Lat < -90 || *q.Lat > 90 || *q.Lon < -180 || *q.Lon > 180 {
			return "", fmt.Errorf("%w: coordinates out of range", ErrMalformedRequest)
		}
		values.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(*q.Lon, 'f', -1, 64))
	case strings.TrimSpace(q.City) != "":
		v := strings.TrimSpace(q.City)
		if cc := strings.TrimSpace(q.Country); cc != "" {
			v = v + "," + cc
		}
		values.Set("q", v)
	default:
		return "", fmt.Errorf("%w: city or coordinates required", ErrMalformedRequest)
	}

	values.Set("appid", c.apiKey)
	values.Set("units", string(units))
	if c.language != "" {
		values.Set("lang", c.language)
	}

	base, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	base.RawQuery = values.Encode()
	return base.String(), nil
}

func (e owEntry) toSample() weather.RawSample {
	s := weather.RawSample{
		Epoch:          e.Dt,
		Temperature:    e.Main.Temp,
		TemperatureMax: e.Main.TempMax,
	}
	if len(e.Weather) > 0 {
		w := e.Weather[0]
		s.ConditionID = w.ID
		s.ConditionMain = w.Main
		s.ConditionIcon = w.Icon
		s.ConditionDescription = w.Description
	}
	return s
}

var (
	_ weather.ForecastClient = (*OpenWeatherClient)(nil)
	_ weather.CurrentClient  = (*OpenWeatherClient)(nil)
)
