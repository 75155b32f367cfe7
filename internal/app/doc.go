// Package app is the orchestrator. It owns the engine session for the
// duration of one run: it resolves the project directory, starts the
// engine, configures its search paths, drives the test catalog, and
// guarantees the session is released on every exit path before the verdict
// is reported.
package app
