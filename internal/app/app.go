package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/wutong/mltest/internal/config"
	"github.com/wutong/mltest/internal/engine"
)

// EngineFactory builds the engine handle for one run. Tests inject fakes
// through this seam; production uses the socket.io bridge.
type EngineFactory func(config.EngineSettings) engine.Engine

// App encapsulates the orchestrator's dependencies and configuration.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	model     *config.Model
	newEngine EngineFactory
}

// Option customizes an App during construction.
type Option func(*App)

// WithEngineFactory replaces the default bridge-backed engine factory.
func WithEngineFactory(factory EngineFactory) Option {
	return func(a *App) { a.newEngine = factory }
}

// NewApp is the constructor for the orchestrator. It loads and resolves the
// harness configuration and returns a fully initialized App with its own
// isolated logger.
func NewApp(outW io.Writer, appConfig *Config, opts ...Option) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(appConfig.ConfigPath, appConfig.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded.", "project_dir", model.ProjectDir, "tests", len(model.Catalog))

	a := &App{
		outW:      outW,
		logger:    logger,
		model:     model,
		newEngine: defaultEngineFactory,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Model returns the resolved configuration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// defaultEngineFactory builds the production socket.io bridge.
func defaultEngineFactory(s config.EngineSettings) engine.Engine {
	return engine.NewBridge(engine.Options{
		Command:       s.Command,
		Args:          s.Args,
		URL:           s.URL,
		Namespace:     s.Namespace,
		StartTimeout:  s.StartTimeout,
		InvokeTimeout: s.InvokeTimeout,
	})
}
