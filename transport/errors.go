package transport

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by operations invoked after Destroy.
var ErrSessionClosed = errors.New("transport: session closed")

// UnsupportedOperationError reports an operation that cannot be expressed in
// the session's execution mode. It is surfaced to the caller rather than
// silently ignored wherever ignoring it would make Direct and Remote behave
// divergently.
type UnsupportedOperationError struct {
	// Op names the rejected operation.
	Op string

	// Mode is the session mode that cannot express it.
	Mode string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("transport: %s not supported in %s mode", e.Op, e.Mode)
}

// IsUnsupportedOperation returns true if the error is a mode-capability
// rejection. Uses errors.As to handle wrapped errors.
func IsUnsupportedOperation(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}
