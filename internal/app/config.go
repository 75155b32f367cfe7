package app

import "errors"

// Config holds the process-level settings the CLI hands to an App instance.
type Config struct {
	ConfigPath string // harness hcl file, optional
	ProjectDir string // overrides the file's project_dir

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config. At least one source for the project
// directory must be present; everything else has defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" && cfg.ProjectDir == "" {
		return nil, errors.New("either a harness file or -project-dir must be provided")
	}
	return &cfg, nil
}
