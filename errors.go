package relaypoll

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates that a [Request] was rejected before any
// network activity: an empty key or message type, or a non-positive
// duration. Returned errors wrap this sentinel, so callers can test
// with [errors.Is].
var ErrInvalidRequest = errors.New("invalid request")

// ErrNoEndpoint indicates that no bridge endpoint could be resolved:
// the listener has none configured and the request carries no override.
// Raised by [Listener.ListenFrom] before any network activity.
var ErrNoEndpoint = errors.New("no endpoint configured")

// ParseError indicates that a fetched response body was not valid JSON.
//
// A malformed bridge response is unlikely to self-correct and signals a
// structural problem worth surfacing fast, so unlike network failures a
// ParseError stops polling immediately. It is distinct from a timeout:
// the listen call fails rather than resolving with an [Outcome].
type ParseError struct {
	// Err is the underlying JSON decode error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("response body is not valid JSON: %v", e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
