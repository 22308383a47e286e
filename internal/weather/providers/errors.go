package providers

import (
	"errors"
	"fmt"
)

// Failure kinds of the forecast client. Callers classify with errors.Is for
// the sentinels and errors.As for *StatusError and *APIError.
var (
	ErrMissingCredential = errors.New("openweather api key is not configured")
	ErrMalformedRequest  = errors.New("malformed forecast request")
	ErrTransport         = errors.New("forecast transport failure")
	ErrDecode            = errors.New("failed to decode forecast response")
)

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// StatusError is a non-2xx response without a readable upstream error body.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with status code %d", e.Code)
}

// APIError is an upstream-reported error: a non-2xx response whose body
// carries {"cod": ..., "message": ...}.
type APIError struct {
	Message string
	Code    int
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("openweather error (%d): %s", e.Code, e.Message)
	}
	return "openweather error: " + e.Message
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code == 429 || ae.Code >= 500
	}
	return errors.Is(err, ErrTransport)
}
