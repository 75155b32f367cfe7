package runner

import (
	"context"

	"github.com/wutong/mltest/internal/ctxlog"
	"github.com/wutong/mltest/internal/engine"
)

// Result aggregates the pass/fail accounting of one run. Passed never
// exceeds Total, and Total always equals the catalog length: no unit is
// ever skipped.
type Result struct {
	Passed int
	Total  int
}

// AllPassed reports whether every attempted unit passed.
func (r Result) AllPassed() bool {
	return r.Passed == r.Total
}

// RunAll attempts every unit in the catalog strictly in order against the
// provided engine session. A failing unit does not stop the iteration;
// each unit is attempted exactly once. The engine must already be started;
// RunAll never starts or stops it.
func RunAll(ctx context.Context, eng engine.Engine, catalog []Unit) Result {
	logger := ctxlog.FromContext(ctx)

	result := Result{Total: len(catalog)}
	for _, unit := range catalog {
		if outcome := unit.Run(ctx, eng); outcome.Passed {
			result.Passed++
		}
	}

	logger.Debug("Catalog finished.", "passed", result.Passed, "total", result.Total)
	return result
}
