package adax

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthFailure indicates that no valid bearer token could be obtained, or that the API rejected it.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrNoCredentials indicates that neither a token nor client credentials were configured.
	ErrNoCredentials = fmt.Errorf("%w: no credentials", ErrAuthFailure)
	// ErrTransportFailure indicates a network error, a non-2xx response or an invalid response body.
	ErrTransportFailure = errors.New("transport failure")
	// ErrInvalidTemperature indicates a target temperature that can't be sent to the API.
	ErrInvalidTemperature = errors.New("invalid temperature")
)

// HTTPStatusError is returned when the API responds with a non-2xx status code.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("adax api error %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *HTTPStatusError) Is(err error) bool {
	switch err {
	case ErrTransportFailure:
		return true
	case ErrAuthFailure:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	default:
		return false
	}
}

// FailureKind classifies an error returned by the Client, for logging and metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthFailure):
		return "auth"
	case errors.Is(err, ErrTransportFailure):
		return "transport"
	case errors.Is(err, ErrInvalidTemperature):
		return "invalid"
	default:
		return "unknown"
	}
}
