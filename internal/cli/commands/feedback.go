package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/cli/output"
	"github.com/leapstack-labs/leapocsf/internal/feedback"
	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/unit"
)

// NewFeedbackCommand creates the feedback command.
func NewFeedbackCommand() *cobra.Command {
	var (
		reportPath      string
		transformerPath string
		patternPath     string
		category        string
		input           string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Assemble iteration feedback from a report and the code it judged",
		Long: `Combine the previous code, the validation findings, the verdict and the
captured output into the feedback for the next generation round.

The report is read from --report, or from the validation_report stored in the
unit file when --report is omitted.`,
		Example: `  # Feedback for a transformer and a saved report
  leapocsf feedback --transformer transformer.yaml --report report.json

  # Include the category JSON Schema
  leapocsf feedback --transformer transformer.yaml --category Authentication`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)

			var (
				code   unit.Code
				stored *report.Report
			)
			switch {
			case transformerPath != "" && patternPath != "":
				return fmt.Errorf("use either --transformer or --pattern, not both")
			case transformerPath != "":
				var tr unit.Transformer
				if err := unit.ReadFile(transformerPath, &tr); err != nil {
					return err
				}
				code, stored = tr.Code(), tr.ValidationReport
			case patternPath != "":
				var p unit.ExtractionPattern
				if err := unit.ReadFile(patternPath, &p); err != nil {
					return err
				}
				code, stored = p.Code(), p.ValidationReport
			default:
				return fmt.Errorf("one of --transformer or --pattern is required")
			}

			rep := stored
			if reportPath != "" {
				var err error
				if rep, err = readReport(reportPath); err != nil {
					return err
				}
			}
			if rep == nil {
				return fmt.Errorf("no validation report: pass --report or validate with --save first")
			}

			in, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			var opts []feedback.Option
			if category != "" {
				model, err := cmdCtx.Model()
				if err != nil {
					return err
				}
				opts = append(opts, feedback.WithCategorySchema(model, category))
			}

			it, err := feedback.Assemble(code, rep, in, opts...)
			if err != nil {
				return err
			}
			return renderIteration(cmdCtx, it)
		},
	}

	cmd.Flags().StringVarP(&reportPath, "report", "r", "", "Validation report JSON file")
	cmd.Flags().StringVarP(&transformerPath, "transformer", "f", "", "Transformer file the report judged")
	cmd.Flags().StringVarP(&patternPath, "pattern", "p", "", "Extraction pattern file the report judged")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Attach the JSON Schema of this category")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input entry (defaults to the report's input)")
	_ = cmd.RegisterFlagCompletionFunc("category", completeCategories)

	return cmd
}

func readReport(path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &rep, nil
}

func renderIteration(cmdCtx *CommandContext, it *feedback.Iteration) error {
	if cmdCtx.Renderer.EffectiveMode() == output.ModeJSON {
		return cmdCtx.Renderer.JSON(it)
	}
	cmdCtx.Renderer.Printf("%s", it.Render())
	return nil
}
