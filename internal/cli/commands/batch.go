package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/cli/output"
	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/state"
	"github.com/leapstack-labs/leapocsf/internal/unit"
	"github.com/leapstack-labs/leapocsf/internal/validate"
)

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	var (
		manifestPath string
		reportsDir   string
		concurrency  int
		parent       string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Validate many transformer candidates for one input in parallel",
		Long: `Validate every candidate listed in a manifest against the manifest's input
and category. Candidates run in parallel and are reported in manifest order.
The command fails when no candidate passes.`,
		Example: `  # Validate all candidates
  leapocsf batch --manifest candidates.yaml

  # Keep each report as JSON
  leapocsf batch -m candidates.yaml --reports-dir reports/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			ctx := cmd.Context()

			manifest, err := unit.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			model, err := cmdCtx.Model()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("concurrency") {
				concurrency = cmdCtx.Cfg.Concurrency
			}

			validators := make([]validate.Validator, len(manifest.Candidates))
			for i, tr := range manifest.Candidates {
				validators[i] = validate.NewTransformerValidator(cmdCtx.Loader, model, manifest.Category, manifest.Input, tr, cmdCtx.ValidateOptions()...)
			}
			reports := validate.RunAll(ctx, validators, concurrency)

			runs := make([]*state.Run, len(reports))
			for i, rep := range reports {
				tr := manifest.Candidates[i]
				runs[i] = state.NewRun(state.KindTransformer, manifest.Category, tr.Language, tr.Code().FileFormat(), rep)
			}
			if err := cmdCtx.Record(ctx, parent, runs...); err != nil {
				return err
			}
			if reportsDir != "" {
				if err := writeReports(reportsDir, manifest.Candidates, reports); err != nil {
					return err
				}
			}

			if err := renderBatch(cmdCtx.Renderer, manifest, reports); err != nil {
				return err
			}

			for _, rep := range reports {
				if rep.Passed {
					return nil
				}
			}
			return fmt.Errorf("%w: no candidate passed", ErrValidationFailed)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest listing the candidates (YAML or JSON)")
	cmd.Flags().StringVar(&reportsDir, "reports-dir", "", "Directory to write one report JSON per candidate")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Maximum candidates validated at once (default from config)")
	cmd.Flags().StringVar(&parent, "parent", "", "Run ID whose feedback produced these candidates (records the runs)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func renderBatch(r *output.Renderer, m *unit.Manifest, reports []*report.Report) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(reports)
	}

	r.Header(1, fmt.Sprintf("Batch validation: %s (%d candidates)", m.Category, len(reports)))
	rows := make([][]string, len(reports))
	for i, rep := range reports {
		rows[i] = summaryRow(candidateID(m.Candidates[i], i), rep)
	}
	r.Table(summaryHeaders, rows)

	for i, rep := range reports {
		if !rep.Passed {
			if last, ok := rep.Last(); ok {
				r.Printf("%s: %s\n", candidateID(m.Candidates[i], i), last.Message)
			}
		}
	}
	return nil
}

func candidateID(tr *unit.Transformer, i int) string {
	if tr.ID != "" {
		return tr.ID
	}
	return fmt.Sprintf("candidate-%d", i+1)
}

func writeReports(dir string, candidates []*unit.Transformer, reports []*report.Report) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}
	for i, rep := range reports {
		path := filepath.Join(dir, candidateID(candidates[i], i)+".json")
		if err := unit.WriteFile(path, rep); err != nil {
			return err
		}
	}
	return nil
}
