package validate

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/schema"
	"github.com/leapstack-labs/leapocsf/internal/unit"
)

// OutputTransformer is the output key used when a transformer returns
// something other than a mapping.
const OutputTransformer = "transformer_output"

// TransformerValidator checks a transformer against a category: the output
// must be a mapping that conforms to the category schema.
type TransformerValidator struct {
	loader      Loader
	model       *schema.Model
	category    string
	input       string
	transformer *unit.Transformer
	opts        options
}

// NewTransformerValidator creates a validator for transformer against input
// and the named category of model.
func NewTransformerValidator(loader Loader, model *schema.Model, category, input string, transformer *unit.Transformer, opts ...Option) *TransformerValidator {
	return &TransformerValidator{
		loader:      loader,
		model:       model,
		category:    category,
		input:       input,
		transformer: transformer,
		opts:        newOptions(opts),
	}
}

// Validate implements Validator.
func (v *TransformerValidator) Validate(ctx context.Context) *report.Report {
	r := newRun(v.loader, v.input, v.opts)
	return r.finish("Transformer", v.stages(ctx, r))
}

func (v *TransformerValidator) stages(ctx context.Context, r *run) error {
	fn, err := r.load(ctx, "transformer", v.transformer.Source(), unit.EntryTransformer)
	if err != nil {
		return err
	}
	out, err := r.invoke(ctx, "transformer", fn, r.rep.Input, "")
	if err != nil {
		return err
	}

	r.rep.Info("Validating the transformer output...")
	if err := v.checkOutput(r.rep, out); err != nil {
		r.rep.Error("The transformer output is not valid")
		return err
	}
	r.rep.Info("Transformer output is valid")
	return nil
}

func (v *TransformerValidator) checkOutput(rep *report.Report, out any) error {
	obj, ok := out.(map[string]any)
	if !ok {
		rep.SetOutput(OutputTransformer, out)
		rep.Warn("The transformer output does NOT match the expected type: 'mapping'")
		return fmt.Errorf("expected the transformer output to be a mapping, got %s", typeName(out))
	}
	rep.Output = obj
	rep.Advance(report.StageStructurallyValid)

	rep.Infof("Validating the transform output against the OCSF Schema for version %s and category %s...", v.model.Version(), v.category)
	cat, err := v.model.Category(v.category)
	if err != nil {
		msg := fmt.Sprintf("Category schema for category %s not found", v.category)
		rep.Error(msg)
		return fmt.Errorf("%s: %w", msg, err)
	}

	c := &Conformance{Model: v.model, Policy: v.opts.policy}
	_, err = c.Check(cat, obj, rep)
	return err
}
