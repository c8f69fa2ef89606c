package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/feedback"
	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/schema"
	"github.com/leapstack-labs/leapocsf/internal/state"
	"github.com/leapstack-labs/leapocsf/internal/unit"
	"github.com/leapstack-labs/leapocsf/internal/validate"
)

// ErrValidationFailed is returned when a validated unit does not pass.
var ErrValidationFailed = errors.New("validation failed")

type validateFlags struct {
	input        string
	parent       string
	save         bool
	showFeedback bool
}

func (f *validateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input entry: literal text, @file, or - for stdin")
	cmd.Flags().StringVar(&f.parent, "parent", "", "Run ID whose feedback produced this code (records the run)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Write the validation report back into the unit file")
	cmd.Flags().BoolVar(&f.showFeedback, "feedback", false, "Print the iteration feedback after a failed run")
	_ = cmd.MarkFlagRequired("input")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate generated extraction patterns and transformers",
		Long: `Load generated code into the sandbox, run it against an input entry and
judge the result. Each run produces a validation report with ordered findings
and a pass/fail verdict.`,
	}
	cmd.AddCommand(newValidateEntityCommand())
	cmd.AddCommand(newValidateTransformerCommand())
	return cmd
}

func newValidateEntityCommand() *cobra.Command {
	var (
		flags       validateFlags
		patternPath string
	)

	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Validate an entity extraction pattern",
		Long: `Run the pattern's extract logic against the input, check that it yields a
non-empty string (and the mapped entity value when the pattern carries one),
then run the transform logic on that string.`,
		Example: `  # Validate a pattern against a literal input line
  leapocsf validate entity --pattern patterns/username.yaml --input 'user=alice action=login'

  # Read the input from a file and record the run
  leapocsf validate entity -p patterns/username.yaml -i @sample.log --record`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidateEntity(cmd, &flags, patternPath)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&patternPath, "pattern", "p", "", "Extraction pattern file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("pattern")

	return cmd
}

func runValidateEntity(cmd *cobra.Command, flags *validateFlags, patternPath string) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	input, err := readInput(cmd, flags.input)
	if err != nil {
		return err
	}
	var pattern unit.ExtractionPattern
	if err := unit.ReadFile(patternPath, &pattern); err != nil {
		return err
	}

	v := validate.NewEntityValidator(cmdCtx.Loader, input, &pattern, cmdCtx.ValidateOptions()...)
	rep := v.Validate(ctx)

	code := pattern.Code()
	run := state.NewRun(state.KindEntity, "", pattern.Language, code.FileFormat(), rep)
	return finishValidation(ctx, cmdCtx, flags, finishArgs{
		title: "Entity validation " + pattern.ID,
		rep:   rep,
		run:   run,
		code:  code,
		save: func() error {
			pattern.ValidationReport = rep
			return unit.WriteFile(patternPath, &pattern)
		},
	})
}

func newValidateTransformerCommand() *cobra.Command {
	var (
		flags           validateFlags
		transformerPath string
		category        string
		watch           bool
	)

	cmd := &cobra.Command{
		Use:   "transformer",
		Short: "Validate a category transformer",
		Long: `Run the transformer against the input and check that its output is a
mapping conforming to the OCSF category schema. Unexpected fields and missing
required fields are reported as warnings; the configured policy decides which
of them fail the run.`,
		Example: `  # Validate a transformer for the Authentication category
  leapocsf validate transformer -c Authentication -f transformer.yaml -i @event.json

  # Re-validate on every save
  leapocsf validate transformer -c Authentication -f transformer.yaml -i @event.json --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			model, err := cmdCtx.Model()
			if err != nil {
				return err
			}
			input, err := readInput(cmd, flags.input)
			if err != nil {
				return err
			}

			once := func() error {
				return runValidateTransformer(cmd.Context(), cmdCtx, model, &flags, transformerPath, category, input)
			}
			if !watch {
				return once()
			}

			if err := once(); err != nil && !errors.Is(err, ErrValidationFailed) {
				return err
			}
			return watchFile(cmd.Context(), cmdCtx.Logger, transformerPath, func() {
				if err := once(); err != nil && !errors.Is(err, ErrValidationFailed) {
					cmdCtx.Logger.Error("validation run failed", slog.String("error", err.Error()))
				}
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&transformerPath, "transformer", "f", "", "Transformer file (YAML or JSON)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "OCSF category the output must conform to")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate whenever the transformer file changes")
	_ = cmd.MarkFlagRequired("transformer")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.RegisterFlagCompletionFunc("category", completeCategories)

	return cmd
}

func runValidateTransformer(ctx context.Context, cmdCtx *CommandContext, model *schema.Model, flags *validateFlags, path, category, input string) error {
	var tr unit.Transformer
	if err := unit.ReadFile(path, &tr); err != nil {
		return err
	}

	v := validate.NewTransformerValidator(cmdCtx.Loader, model, category, input, &tr, cmdCtx.ValidateOptions()...)
	rep := v.Validate(ctx)

	code := tr.Code()
	run := state.NewRun(state.KindTransformer, category, tr.Language, code.FileFormat(), rep)
	return finishValidation(ctx, cmdCtx, flags, finishArgs{
		title:    "Transformer validation " + tr.ID,
		rep:      rep,
		run:      run,
		code:     code,
		model:    model,
		category: category,
		save: func() error {
			tr.ValidationReport = rep
			return unit.WriteFile(path, &tr)
		},
	})
}

type finishArgs struct {
	title    string
	rep      *report.Report
	run      *state.Run
	code     unit.Code
	model    *schema.Model
	category string
	save     func() error
}

// finishValidation renders, records and saves a finished report, and prints
// feedback for a failed run when asked.
func finishValidation(ctx context.Context, cmdCtx *CommandContext, flags *validateFlags, a finishArgs) error {
	if err := renderReport(cmdCtx.Renderer, a.title, a.rep); err != nil {
		return err
	}
	if err := cmdCtx.Record(ctx, flags.parent, a.run); err != nil {
		return err
	}
	if flags.save {
		if err := a.save(); err != nil {
			return err
		}
	}

	if a.rep.Passed {
		return nil
	}
	if flags.showFeedback {
		var opts []feedback.Option
		if a.model != nil {
			opts = append(opts, feedback.WithCategorySchema(a.model, a.category))
		}
		it, err := feedback.Assemble(a.code, a.rep, a.rep.Input, opts...)
		if err != nil {
			return err
		}
		if err := renderIteration(cmdCtx, it); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: report %s", ErrValidationFailed, a.rep.ID)
}

func completeCategories(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	model, err := schema.Builtin(getConfig().OCSFVersion)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var names []string
	for _, c := range model.Categories() {
		names = append(names, c.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
