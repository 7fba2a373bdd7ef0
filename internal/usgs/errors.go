package usgs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by GetEvent when the event service has no event with the given id.
var ErrNotFound = errors.New("event not found")

// ErrMalformedPayload is returned when a 2xx response body cannot be decoded.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// StatusError reports a non-success HTTP status from the event service.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("usgs: unexpected status %s", e.Status)
	}
	return fmt.Sprintf("usgs: unexpected status %s: %s", e.Status, e.Body)
}
