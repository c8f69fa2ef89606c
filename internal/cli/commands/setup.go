package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/cli/config"
	"github.com/leapstack-labs/leapocsf/internal/cli/output"
	"github.com/leapstack-labs/leapocsf/internal/sandbox"
	"github.com/leapstack-labs/leapocsf/internal/schema"
	"github.com/leapstack-labs/leapocsf/internal/state"
	"github.com/leapstack-labs/leapocsf/internal/validate"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Loader   *sandbox.Loader
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	loader := sandbox.NewLoader(
		sandbox.WithLimits(cfg.Limits()),
		sandbox.WithDefaultLanguage(cfg.Runtime),
		sandbox.WithLogger(logger),
	)

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Loader:   loader,
		Renderer: r,
	}
}

// Model returns the embedded schema for the configured OCSF version.
func (c *CommandContext) Model() (*schema.Model, error) {
	return schema.Builtin(c.Cfg.OCSFVersion)
}

// ValidateOptions returns the validator options derived from the configuration.
func (c *CommandContext) ValidateOptions() []validate.Option {
	return []validate.Option{
		validate.WithLogger(c.Logger),
		validate.WithPolicy(c.Cfg.Policy),
	}
}

// OpenStore opens the run history database.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	store, err := state.OpenStore(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history at %s: %w", c.Cfg.StatePath, err)
	}
	return store, nil
}

// Record saves runs to the history when recording is enabled or a parent run
// is given. Each run is linked to parent when parent is not empty.
func (c *CommandContext) Record(ctx context.Context, parent string, runs ...*state.Run) error {
	if !c.Cfg.Record && parent == "" {
		return nil
	}
	store, err := c.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			return err
		}
		if parent != "" {
			if err := store.LinkIteration(ctx, run.ID, parent); err != nil {
				return err
			}
		}
		c.Logger.Debug("recorded run", slog.String("id", run.ID), slog.String("state", c.Cfg.StatePath))
	}
	return nil
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// readInput resolves an input argument: "-" reads stdin, "@path" reads a
// file, anything else is the input itself.
func readInput(cmd *cobra.Command, arg string) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read input from stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	default:
		return arg, nil
	}
}
