package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BackoffConfig controls exponential backoff behaviour. MaxRetries of zero
// means a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	Limiter *rate.Limiter
}

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

type upstreamErrorBody struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
}

// attempt carries a classified upstream error past the breaker without
// counting it as a breaker failure.
type attempt struct {
	resp *http.Response
	err  error
}

// doRequestWithResilience executes the HTTP request behind a rate limiter and
// a circuit breaker, retrying transport failures, 429s and 5xx responses with
// exponential backoff. Only those count as breaker failures; other 4xx
// responses are returned as *APIError or *StatusError straight away.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var n int

	for {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
		}

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limit wait: %w", ErrTransport, err)
			}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, execErr)
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return attempt{resp: resp}, nil
			}

			upstreamErr := readUpstreamError(resp)
			if retryable(upstreamErr) {
				return nil, upstreamErr
			}
			return attempt{err: upstreamErr}, nil
		})

		if err == nil {
			a, ok := result.(attempt)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return a.resp, a.err
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrTransport, errCircuitOpen)
		}

		if n >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(n)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
		case <-timer.C:
		}

		n++
	}
}

// readUpstreamError consumes and closes a non-2xx response, preferring the
// upstream's own {"cod","message"} error body over the bare status.
func readUpstreamError(resp *http.Response) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return &StatusError{Code: resp.StatusCode}
	}

	var payload upstreamErrorBody
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return &StatusError{Code: resp.StatusCode}
	}

	return &APIError{Message: payload.Message, Code: parseCod(payload.Cod, resp.StatusCode)}
}

// parseCod accepts both the string ("404") and numeric (404) forms of "cod".
func parseCod(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return fallback
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return fallback
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
