package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wutong/mltest/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	err := run(out, args)

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_UsageErrorsCarryExitCode2(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-log-format", "xml", "-project-dir", "/x"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestRun_BrokenHarnessFile(t *testing.T) {
	t.Parallel()

	// An HCL syntax error must surface as a startup error, not a panic.
	invalidHCL := `
		engine {
			url = "http://127.0.0.1:9515"
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "harness.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0600), "failed to set up test file")

	out := &bytes.Buffer{}
	err := run(out, []string{filePath})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load configuration")
	require.Contains(t, err.Error(), "failed to parse")
}

func TestRun_MissingProjectDirectory(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-project-dir", filepath.Join(t.TempDir(), "gone")})

	// The directory precondition fails before any engine is constructed.
	require.Error(t, err)
	require.Contains(t, err.Error(), "directory not found")
}
