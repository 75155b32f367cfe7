package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wutong/mltest/internal/ctxlog"
	"github.com/wutong/mltest/internal/fsutil"
	"github.com/wutong/mltest/internal/paths"
	"github.com/wutong/mltest/internal/runner"
)

// ErrTestsFailed is returned by Run when the engine ran the whole catalog
// but at least one test failed. The CLI maps it to exit code 1.
var ErrTestsFailed = errors.New("one or more tests failed")

// Run executes one orchestration pass: resolve the project directory, start
// the engine, register search paths, run every catalog entry in order, and
// report the verdict. Whenever the engine was started, it is stopped exactly
// once, on every exit path.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	projectDir, err := fsutil.ResolveDir(a.model.ProjectDir)
	if err != nil {
		return fmt.Errorf("project directory check failed: %w", err)
	}
	if err := os.Chdir(projectDir); err != nil {
		return fmt.Errorf("failed to enter project directory: %w", err)
	}
	a.logger.Info("Working directory resolved.", "dir", projectDir)

	eng := a.newEngine(a.model.Engine)

	// Engine startup is the expensive part of the run, often several seconds.
	a.logger.Info("🚀 Starting engine...")
	if err := eng.Start(ctx); err != nil {
		// Nothing was acquired, so no Stop is needed.
		return fmt.Errorf("engine failed to start: %w", err)
	}
	a.logger.Info("✓ Engine started")

	defer func() {
		if err := eng.Stop(ctx); err != nil {
			// The verdict is already determined; a stop failure must not mask it.
			a.logger.Warn("Engine stop reported an error.", "error", err)
			return
		}
		a.logger.Info("✓ Engine stopped")
	}()

	if err := paths.Configure(ctx, eng, projectDir, a.model.SearchPaths); err != nil {
		return err
	}

	catalog := make([]runner.Unit, 0, len(a.model.Catalog))
	for _, t := range a.model.Catalog {
		catalog = append(catalog, runner.Unit{Name: t.Name, Routine: t.Routine})
	}

	result := runner.RunAll(ctx, eng, catalog)
	a.printSummary(result)

	if !result.AllPassed() {
		return fmt.Errorf("%w: %d of %d passed", ErrTestsFailed, result.Passed, result.Total)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// printSummary writes the human-readable result block to the app's output.
func (a *App) printSummary(result runner.Result) {
	fmt.Fprintf(a.outW, "\n=== Test Results ===\n")
	fmt.Fprintf(a.outW, "Tests passed: %d/%d\n", result.Passed, result.Total)
	if result.AllPassed() {
		fmt.Fprintln(a.outW, "🎉 All tests passed!")
	} else {
		fmt.Fprintln(a.outW, "❌ Some tests failed")
	}
}
