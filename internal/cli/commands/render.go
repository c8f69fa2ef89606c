package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapocsf/internal/cli/output"
	"github.com/leapstack-labs/leapocsf/internal/report"
)

// renderReport writes one validation report in the renderer's mode.
func renderReport(r *output.Renderer, title string, rep *report.Report) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rep)
	}

	r.Header(2, title)
	status := fmt.Sprintf("%s (stage %s)", title, rep.Stage)
	if !rep.Passed && rep.FailedAt != "" {
		status = fmt.Sprintf("%s (failed after %s)", title, rep.FailedAt)
	}
	r.Status(rep.Passed, status)

	rows := make([][]string, len(rep.Entries))
	for i, f := range rep.Entries {
		rows[i] = []string{f.Severity.String(), f.Message}
	}
	r.Table([]string{"SEVERITY", "MESSAGE"}, rows)

	if len(rep.Output) > 0 {
		data, err := rep.MarshalOutput("  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		r.Header(3, "Output")
		r.CodeBlock("json", string(data))
	}
	return nil
}

// summaryRow is one line of a multi-report summary table.
func summaryRow(id string, rep *report.Report) []string {
	return []string{
		id,
		strconv.FormatBool(rep.Passed),
		string(rep.Stage),
		strconv.Itoa(len(rep.Warnings())),
		strconv.Itoa(len(rep.Errors())),
	}
}

var summaryHeaders = []string{"ID", "PASSED", "STAGE", "WARNINGS", "ERRORS"}
