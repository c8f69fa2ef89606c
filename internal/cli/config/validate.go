package config

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapocsf/internal/sandbox"
)

// OutputModes lists the accepted values of the output setting.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.OCSFVersion == "" {
		return fmt.Errorf("ocsf_version is required")
	}
	if c.Runtime != sandbox.LangStarlark && c.Runtime != sandbox.LangGo {
		return fmt.Errorf("unknown runtime %q (want %s or %s)", c.Runtime, sandbox.LangStarlark, sandbox.LangGo)
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox.timeout must be positive, got %s", c.Sandbox.Timeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.OutputFormat != "" && !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q\nHint: use one of %v", c.OutputFormat, OutputModes)
	}
	return nil
}
