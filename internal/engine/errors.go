package engine

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the engine could not be started or reached.
// Start failures wrap this sentinel so callers can match with errors.Is.
var ErrUnavailable = errors.New("engine unavailable")

// ErrNotRunning indicates an Invoke or AddPath call against a session that
// is not in the Running state. This is a programming error in the caller.
var ErrNotRunning = errors.New("engine session is not running")

// InvocationError reports a remote routine that raised inside the engine.
// Message is the engine's own diagnostic text.
type InvocationError struct {
	Routine string
	Message string
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("routine %q failed: %s", e.Routine, e.Message)
}

// PathError reports a search-path registration the engine rejected.
type PathError struct {
	Dir     string
	Message string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("failed to register search path %q: %s", e.Dir, e.Message)
}
