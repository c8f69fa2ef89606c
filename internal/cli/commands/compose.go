package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/unit"
)

// NewComposeCommand creates the compose command.
func NewComposeCommand() *cobra.Command {
	var (
		id  string
		out string
	)

	cmd := &cobra.Command{
		Use:   "compose <pattern-file>...",
		Short: "Compose validated extraction patterns into one transformer",
		Long: `Build a Starlark transformer that runs each pattern's extract and transform
logic and places every result at the pattern's OCSF path. Every pattern must
carry a mapping with an OCSF path.`,
		Example: `  # Compose two patterns and write the transformer
  leapocsf compose patterns/user.yaml patterns/time.yaml --id auth_v1 --out transformer.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)

			patterns := make([]*unit.ExtractionPattern, len(args))
			for i, path := range args {
				var p unit.ExtractionPattern
				if err := unit.ReadFile(path, &p); err != nil {
					return err
				}
				if p.ValidationReport != nil && !p.ValidationReport.Passed {
					cmdCtx.Logger.Warn("composing a pattern whose last validation failed", "pattern", p.ID, "file", path)
				}
				patterns[i] = &p
			}

			tr, err := unit.Compose(id, patterns)
			if err != nil {
				return err
			}

			if out == "" {
				return cmdCtx.Renderer.JSON(tr)
			}
			if err := unit.WriteFile(out, tr); err != nil {
				return err
			}
			cmdCtx.Renderer.Printf("Wrote transformer %s (%d patterns) to %s\n", tr.ID, len(patterns), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "transformer", "ID of the composed transformer")
	cmd.Flags().StringVar(&out, "out", "", "Write the transformer to this file instead of stdout")
	return cmd
}
