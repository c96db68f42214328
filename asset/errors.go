package asset

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Await after the loader has been closed.
var ErrClosed = errors.New("asset: loader closed")

// LoadError reports a failed fetch or decode for a source. A failed load
// clears the source's in-flight marker, so the same source stays retryable;
// the error reaches the loader's error callback, never the scheduler.
type LoadError struct {
	Source string
	Kind   Kind
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("asset: load %s (%s): %v", e.Source, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError returns true if the error is an asset load failure.
// Uses errors.As to handle wrapped errors.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
