package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wutong/mltest/internal/config"
	"github.com/wutong/mltest/internal/engine"
)

// fakeEngine is a fault-injectable engine for orchestration tests. It
// counts lifecycle calls so the release discipline can be verified.
type fakeEngine struct {
	startErr     error
	stopErr      error
	rejectPath   string
	failRoutines map[string]string

	startCount int
	stopCount  int
	registered []string
	invoked    []string
}

func (e *fakeEngine) Start(ctx context.Context) error {
	e.startCount++
	return e.startErr
}

func (e *fakeEngine) Stop(ctx context.Context) error {
	e.stopCount++
	return e.stopErr
}

func (e *fakeEngine) AddPath(ctx context.Context, dir string) error {
	if e.rejectPath != "" && strings.HasSuffix(dir, e.rejectPath) {
		return &engine.PathError{Dir: dir, Message: "rejected by test"}
	}
	e.registered = append(e.registered, dir)
	return nil
}

func (e *fakeEngine) Invoke(ctx context.Context, routine string) error {
	e.invoked = append(e.invoked, routine)
	if msg, ok := e.failRoutines[routine]; ok {
		return &engine.InvocationError{Routine: routine, Message: msg}
	}
	return nil
}

// setupRun wires a fake engine into an app whose project directory exists.
// These tests change the working directory, so none of them run in parallel.
func setupRun(t *testing.T, eng *fakeEngine) (*App, *SafeBuffer) {
	t.Helper()
	cfg := &Config{ProjectDir: t.TempDir(), LogFormat: "text"}
	return SetupAppTest(t, cfg, WithEngineFactory(func(config.EngineSettings) engine.Engine {
		return eng
	}))
}

func TestRun_AllTestsPass(t *testing.T) {
	eng := &fakeEngine{}
	harness, out := setupRun(t, eng)

	err := harness.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, eng.startCount)
	require.Equal(t, 1, eng.stopCount, "engine must be released exactly once")
	require.Equal(t, []string{"diagnostic_test", "simple_test"}, eng.invoked)
	require.Contains(t, out.String(), "Tests passed: 2/2")
	require.Contains(t, out.String(), "All tests passed")
}

func TestRun_FailingTestStillRunsTheRest(t *testing.T) {
	eng := &fakeEngine{failRoutines: map[string]string{"diagnostic_test": "singular matrix"}}
	harness, out := setupRun(t, eng)

	err := harness.Run(context.Background())

	require.ErrorIs(t, err, ErrTestsFailed)
	// The failing diagnostic does not abort the run: the simple test is
	// still attempted, and the handle is still released exactly once.
	require.Equal(t, []string{"diagnostic_test", "simple_test"}, eng.invoked)
	require.Equal(t, 1, eng.stopCount)
	require.Contains(t, out.String(), "Tests passed: 1/2")
	require.Contains(t, out.String(), "singular matrix")
}

func TestRun_MissingProjectDirSkipsEngineEntirely(t *testing.T) {
	eng := &fakeEngine{}
	cfg := &Config{ProjectDir: "/nonexistent/project/dir", LogFormat: "text"}
	harness, _ := SetupAppTest(t, cfg, WithEngineFactory(func(config.EngineSettings) engine.Engine {
		return eng
	}))

	err := harness.Run(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "directory not found")
	require.Zero(t, eng.startCount, "no engine work may happen without a project directory")
	require.Zero(t, eng.stopCount)
}

func TestRun_EngineStartFailureNeverStops(t *testing.T) {
	eng := &fakeEngine{startErr: fmt.Errorf("%w: license checkout failed", engine.ErrUnavailable)}
	harness, _ := setupRun(t, eng)

	err := harness.Run(context.Background())

	require.ErrorIs(t, err, engine.ErrUnavailable)
	require.Equal(t, 1, eng.startCount)
	require.Zero(t, eng.stopCount, "nothing was acquired, so nothing may be released")
}

func TestRun_PathFailureReleasesHandleBeforeAnyTest(t *testing.T) {
	eng := &fakeEngine{rejectPath: "solver"}
	harness, _ := setupRun(t, eng)

	err := harness.Run(context.Background())

	require.Error(t, err)
	var pathErr *engine.PathError
	require.ErrorAs(t, err, &pathErr)
	require.Empty(t, eng.invoked, "tests must never run against partially configured paths")
	require.Equal(t, 1, eng.stopCount, "handle must still be released")
}

func TestRun_StopErrorDoesNotMaskVerdict(t *testing.T) {
	eng := &fakeEngine{stopErr: errors.New("engine hung on quit")}
	harness, out := setupRun(t, eng)

	err := harness.Run(context.Background())

	// All tests passed; a failing Stop is logged but does not change the verdict.
	require.NoError(t, err)
	require.Equal(t, 1, eng.stopCount)
	require.Contains(t, out.String(), "Engine stop reported an error")
}

func TestNewApp_ConfigLoadFailure(t *testing.T) {
	cfg := &Config{ProjectDir: "", ConfigPath: "/nonexistent/harness.hcl", LogFormat: "text"}

	_, err := NewApp(&SafeBuffer{}, cfg)

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load configuration")
}
