// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveDir converts path to an absolute path and verifies it refers to an
// existing directory. The directory's existence is a precondition of the
// run; nothing is created here.
func ResolveDir(path string) (string, error) {
	if path == "" {
		panic("path must not be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}

	return abs, nil
}
