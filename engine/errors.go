package engine

import (
	"errors"
	"fmt"
)

// ErrDestroyed is returned by operations invoked after Destroy.
var ErrDestroyed = errors.New("engine: destroyed")

// FrameOverlapError reports a tick requested while the previous frame's
// handshake was still unresolved, or a resume handle invoked out of turn.
// This is a programmer error: the call fails, the engine state is untouched.
type FrameOverlapError struct {
	// Frame is the frame counter at the time of the violation.
	Frame uint64

	// Reason describes which part of the handshake was violated.
	Reason string
}

// Error implements the error interface.
func (e *FrameOverlapError) Error() string {
	return fmt.Sprintf("engine: frame overlap at frame %d: %s", e.Frame, e.Reason)
}

// IsFrameOverlap returns true if the error is a frame overlap violation.
// Uses errors.As to handle wrapped errors.
func IsFrameOverlap(err error) bool {
	var fe *FrameOverlapError
	return errors.As(err, &fe)
}
