package runner

import (
	"context"

	"github.com/wutong/mltest/internal/ctxlog"
	"github.com/wutong/mltest/internal/engine"
)

// Unit is one named test routine hosted inside the engine. Units are
// stateless; the catalog is built once per run and never mutated.
type Unit struct {
	// Name is the human-readable label used in status lines.
	Name string
	// Routine is the engine-side routine invoked by name.
	Routine string
}

// Outcome is the result of one Unit attempt.
type Outcome struct {
	Passed  bool
	Message string
}

// Run invokes the unit's routine exactly once and converts any error into a
// failed Outcome. This is the isolation barrier: a failing unit never
// propagates an error past this boundary, so the runner can continue with
// the rest of the catalog.
func (u Unit) Run(ctx context.Context, eng engine.Engine) Outcome {
	logger := ctxlog.FromContext(ctx).With("test", u.Name, "routine", u.Routine)
	logger.Info("▶️ Running test")

	if err := eng.Invoke(ctx, u.Routine); err != nil {
		logger.Warn("✗ Test failed", "error", err)
		return Outcome{Message: err.Error()}
	}

	logger.Info("✓ Test passed")
	return Outcome{Passed: true}
}
