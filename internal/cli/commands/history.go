package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/cli/output"
	"github.com/leapstack-labs/leapocsf/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded validation runs",
		Long: `List the validation runs recorded in the state database, newest first.
Runs are recorded when the record setting is on or a --parent run is given.`,
		Example: `  # Last 20 runs
  leapocsf history --limit 20

  # One run's report, then the chain of iterations that led to it
  leapocsf history show 7d3c...
  leapocsf history lineage 7d3c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderRuns(cmdCtx.Renderer, fmt.Sprintf("Validation runs (%d)", len(runs)), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum runs to list (0 for all)")
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryLineageCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var showCode bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run.Report == nil {
				return fmt.Errorf("run %s has no stored report", run.ID)
			}

			title := fmt.Sprintf("%s run %s", run.Kind, run.ID)
			if err := renderReport(cmdCtx.Renderer, title, run.Report); err != nil {
				return err
			}
			if showCode && cmdCtx.Renderer.EffectiveMode() != output.ModeJSON {
				cmdCtx.Renderer.Header(3, "Code")
				cmdCtx.Renderer.CodeBlock(run.Language, run.Code)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCode, "code", false, "Also print the validated code")
	return cmd
}

func newHistoryLineageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <run-id>",
		Short: "Show the chain of iterations that led to a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			chain, err := store.Lineage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderRuns(cmdCtx.Renderer, fmt.Sprintf("Lineage of %s (%d iterations)", args[0], len(chain)), chain)
		},
	}
}

type runView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Category  string    `json:"category,omitempty"`
	Language  string    `json:"language"`
	Passed    bool      `json:"passed"`
	Stage     string    `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

func renderRuns(r *output.Renderer, title string, runs []*state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = runView{
				ID:        run.ID,
				Kind:      string(run.Kind),
				Category:  run.Category,
				Language:  run.Language,
				Passed:    run.Passed,
				Stage:     string(run.Stage),
				CreatedAt: run.CreatedAt,
			}
		}
		return r.JSON(views)
	}

	r.Header(1, title)
	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.ID,
			string(run.Kind),
			run.Category,
			strconv.FormatBool(run.Passed),
			string(run.Stage),
			run.CreatedAt.Local().Format(time.DateTime),
		}
	}
	r.Table([]string{"ID", "KIND", "CATEGORY", "PASSED", "STAGE", "CREATED"}, rows)
	return nil
}
