// Package feedback packages a validation report and the code it judged into
// the block a follow-up generation round consumes.
package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/schema"
	"github.com/leapstack-labs/leapocsf/internal/unit"
)

// EmptyOutput is the rendering of a report without captured output.
const EmptyOutput = "{}"

// Iteration is the feedback for one generation round.
type Iteration struct {
	PreviousCode string   `json:"previous_code"`
	Findings     []string `json:"findings"`
	Passed       bool     `json:"passed"`
	Output       string   `json:"output"`
	Input        string   `json:"input"`
	// Schema is the category's JSON Schema, for transformer feedback.
	Schema string `json:"schema,omitempty"`
}

type options struct {
	model    *schema.Model
	category string
}

// Option configures Assemble.
type Option func(*options)

// WithCategorySchema attaches the JSON Schema of the named category.
func WithCategorySchema(model *schema.Model, category string) Option {
	return func(o *options) {
		o.model = model
		o.category = category
	}
}

// Assemble builds the feedback for code judged by rep. input is the raw
// entry the code ran against; when empty the report's input is used.
func Assemble(code unit.Code, rep *report.Report, input string, opts ...Option) (*Iteration, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	it := &Iteration{
		PreviousCode: code.FileFormat(),
		Output:       EmptyOutput,
		Input:        input,
	}
	if rep != nil {
		it.Findings = rep.Messages()
		it.Passed = rep.Passed
		if it.Input == "" {
			it.Input = rep.Input
		}
		if len(rep.Output) > 0 {
			data, err := rep.MarshalOutput("    ")
			if err != nil {
				return nil, fmt.Errorf("failed to encode report output: %w", err)
			}
			it.Output = string(data)
		}
	}

	if o.model != nil {
		cat, err := o.model.Category(o.category)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(o.model.JSONSchema(cat), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for %s: %w", o.category, err)
		}
		it.Schema = string(data)
	}
	return it, nil
}

// Render writes the iteration as tagged sections, in the order previous
// code, validation report, input, output and schema.
func (it *Iteration) Render() string {
	var sb strings.Builder
	section := func(tag, body string) {
		fmt.Fprintf(&sb, "<%s>\n%s\n</%s>\n\n", tag, strings.TrimRight(body, "\n"), tag)
	}

	section("previous_code", it.PreviousCode)

	var rep strings.Builder
	fmt.Fprintf(&rep, "passed: %t\n", it.Passed)
	for _, f := range it.Findings {
		rep.WriteString("- " + f + "\n")
	}
	section("validation_report", rep.String())

	section("previous_input_entry", it.Input)
	section("previous_output_entry", it.Output)
	if it.Schema != "" {
		section("category_schema", it.Schema)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
