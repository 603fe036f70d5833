package scraping

import (
	"errors"
	"fmt"
)

var (
	// ErrDisallowedByRobots is wrapped when robots.txt forbids a URL
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

	// ErrContentTooLarge is wrapped when a body exceeds MaxContentSize
	ErrContentTooLarge = errors.New("content exceeds size limit")
)

// TransportError describes a failed fetch of a single resource.
// StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is or wraps a *TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
