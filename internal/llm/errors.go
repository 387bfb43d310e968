package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrDisabled is returned when Generate is called on a client whose
	// provider is not configured. Treated as a mode, not a fault.
	ErrDisabled = errors.New("llm provider is disabled")

	// ErrEmptyCompletion is returned when the provider replied 2xx but no
	// recognized envelope shape yielded non-empty text.
	ErrEmptyCompletion = errors.New("llm response contained no text")
)

// HTTPError is a non-2xx status from the provider, with a best-effort copy of
// the response body.
type HTTPError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.Status, e.Body)
}

// NetworkError is a transport-level failure (DNS, refused connection, timeout)
// before any HTTP status was received.
type NetworkError struct {
	Provider Provider
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
