// Package config provides configuration management for the leapocsf CLI.
package config

import (
	"time"

	"github.com/leapstack-labs/leapocsf/internal/sandbox"
	"github.com/leapstack-labs/leapocsf/internal/schema"
	"github.com/leapstack-labs/leapocsf/internal/validate"
)

// SandboxConfig bounds the execution of generated code.
type SandboxConfig struct {
	Timeout  time.Duration `koanf:"timeout"`
	MaxSteps uint64        `koanf:"max_steps"`
}

// Config holds all CLI configuration options.
type Config struct {
	OCSFVersion  string          `koanf:"ocsf_version"`
	Runtime      string          `koanf:"runtime"`
	Sandbox      SandboxConfig   `koanf:"sandbox"`
	Concurrency  int             `koanf:"concurrency"`
	StatePath    string          `koanf:"state_path"`
	Record       bool            `koanf:"record"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`
	Policy       validate.Policy `koanf:"policy"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Limits returns the sandbox limits for this configuration.
func (c *Config) Limits() sandbox.Limits {
	return sandbox.Limits{
		Timeout:  c.Sandbox.Timeout,
		MaxSteps: c.Sandbox.MaxSteps,
	}
}

// Default configuration values.
const (
	DefaultStateFile   = ".leapocsf/state.db"
	DefaultRuntime     = sandbox.LangStarlark
	DefaultConcurrency = 4
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		OCSFVersion:  schema.DefaultVersion,
		Runtime:      DefaultRuntime,
		Sandbox:      SandboxConfig{Timeout: sandbox.DefaultTimeout, MaxSteps: sandbox.DefaultMaxSteps},
		Concurrency:  DefaultConcurrency,
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		Policy:       validate.DefaultPolicy(),
	}
}
