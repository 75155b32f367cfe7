// Package paths registers the project's directories as engine search paths
// so the test routines defined there become invocable by name.
package paths

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wutong/mltest/internal/ctxlog"
	"github.com/wutong/mltest/internal/engine"
)

// Configure registers baseDir followed by each named subdirectory, in order.
// It fails fast: on the first rejected registration no further paths are
// attempted, since later tests may depend on any of them. Partial
// configuration is unusable; the caller decides the run-level consequence.
func Configure(ctx context.Context, eng engine.Engine, baseDir string, subdirs []string) error {
	logger := ctxlog.FromContext(ctx).With("base_dir", baseDir)

	dirs := make([]string, 0, len(subdirs)+1)
	dirs = append(dirs, baseDir)
	for _, name := range subdirs {
		dirs = append(dirs, filepath.Join(baseDir, name))
	}

	for _, dir := range dirs {
		if err := eng.AddPath(ctx, dir); err != nil {
			logger.Warn("✗ Failed to configure engine search paths", "dir", dir, "error", err)
			return fmt.Errorf("path configuration aborted: %w", err)
		}
	}

	logger.Info("✓ Engine search paths configured", "count", len(dirs))
	return nil
}
