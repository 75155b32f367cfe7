package engine

import "context"

// State describes the lifecycle of an engine session. At most one session is
// Running per harness run; Invoke and AddPath are only valid while Running.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Engine is the handle to one external engine session. The orchestrator owns
// the Start/Stop lifecycle; other components hold a non-owning reference and
// only call Invoke and AddPath.
type Engine interface {
	// Start launches the engine and blocks until it reports ready. Engine
	// startup is expensive (can be several seconds); callers must not
	// assume this is fast. A failure wraps ErrUnavailable.
	Start(ctx context.Context) error

	// AddPath registers a directory with the engine so routines defined
	// there become invocable by name. A failure is a *PathError.
	AddPath(ctx context.Context, dir string) error

	// Invoke synchronously executes the named zero-argument routine inside
	// the engine and waits for completion. An error raised by the remote
	// routine is reported as a *InvocationError carrying the engine's
	// diagnostic message, never as a crash of the caller.
	Invoke(ctx context.Context, routine string) error

	// Stop releases the engine session. Calling Stop on a session that was
	// never started, or a second time, is a guarded no-op.
	Stop(ctx context.Context) error
}
