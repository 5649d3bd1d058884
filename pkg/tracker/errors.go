package tracker

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTrackingCode = errors.New("missing required tracking code")
	ErrMissingEventName    = errors.New("missing required event name")
)

// APIError is a non-201 answer from the events endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cheahlytics: unexpected status %d: %s", e.StatusCode, e.Body)
}
