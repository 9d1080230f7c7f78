// Package config loads stubgen-pyx configuration from file, environment,
// and defaults.
package config

import "github.com/gobwas/glob"

// Config represents the complete stubgen-pyx configuration. It can be
// loaded from .stubgen-pyx.yaml with environment variable overrides.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Generate GenerateConfig `yaml:"generate" mapstructure:"generate"`
}

// PathsConfig defines which files to scan and which to ignore.
type PathsConfig struct {
	Sources []string `yaml:"sources" mapstructure:"sources"` // glob patterns for source files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to ignore
}

// GenerateConfig defines stub generation behavior.
type GenerateConfig struct {
	OutDir         string `yaml:"out_dir" mapstructure:"out_dir"`                 // output directory; empty writes next to sources
	IncludePrivate bool   `yaml:"include_private" mapstructure:"include_private"` // emit internal declarations
	FailFast       bool   `yaml:"fail_fast" mapstructure:"fail_fast"`             // abort the batch on the first unit error
	Workers        int    `yaml:"workers" mapstructure:"workers"`                 // parallel extraction workers; 0 means GOMAXPROCS
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Sources: []string{"**/*.pyx"},
			Ignore: []string{
				".git/**",
				"build/**",
				"dist/**",
				"__pycache__/**",
				".tox/**",
				"venv/**",
				".venv/**",
			},
		},
		Generate: GenerateConfig{},
	}
}

// Validate checks that the configuration is usable: every glob pattern must
// compile and the worker count must be non-negative.
func Validate(cfg *Config) error {
	for _, pattern := range append(append([]string{}, cfg.Paths.Sources...), cfg.Paths.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return &PatternError{Pattern: pattern, Err: err}
		}
	}
	if cfg.Generate.Workers < 0 {
		return ErrInvalidWorkers
	}
	if len(cfg.Paths.Sources) == 0 {
		return ErrNoSourcePatterns
	}
	return nil
}
