// Package config loads the harness configuration: the project directory
// under test, the engine launch and transport settings, and the ordered
// test catalog. Configuration lives in an HCL file; command-line flags
// override file values.
package config
