package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/unit"
)

// Output keys of an entity validation report.
const (
	OutputExtract   = "extract_output"
	OutputTransform = "transform_output"
)

// ErrEmptyExtract is the structural failure for a falsy extract output.
var ErrEmptyExtract = errors.New("extract output is empty")

// EntityValidator checks one extraction pattern: the extract logic must pull
// a non-empty string out of the input, and the transform logic must turn that
// string into a string.
type EntityValidator struct {
	loader  Loader
	input   string
	pattern *unit.ExtractionPattern
	opts    options
}

// NewEntityValidator creates a validator for pattern against input.
func NewEntityValidator(loader Loader, input string, pattern *unit.ExtractionPattern, opts ...Option) *EntityValidator {
	return &EntityValidator{
		loader:  loader,
		input:   input,
		pattern: pattern,
		opts:    newOptions(opts),
	}
}

// Validate implements Validator.
func (v *EntityValidator) Validate(ctx context.Context) *report.Report {
	r := newRun(v.loader, v.input, v.opts)
	return r.finish("Extraction pattern", v.stages(ctx, r))
}

func (v *EntityValidator) stages(ctx context.Context, r *run) error {
	extract, err := r.load(ctx, "extract", v.pattern.ExtractSource(), unit.EntryExtract)
	if err != nil {
		return err
	}
	out, err := r.invoke(ctx, "extract", extract, r.rep.Input, OutputExtract)
	if err != nil {
		return err
	}
	extracted, err := v.checkExtract(r.rep, out)
	if err != nil {
		return err
	}

	transform, err := r.load(ctx, "transform", v.pattern.TransformSource(), unit.EntryTransform)
	if err != nil {
		return err
	}
	out, err = r.invoke(ctx, "transform", transform, extracted, OutputTransform)
	if err != nil {
		return err
	}
	if err := v.checkTransform(r.rep, out); err != nil {
		return err
	}
	r.rep.Advance(report.StageStructurallyValid)

	// Field-level schema checks belong to the caller for entities.
	return nil
}

// checkExtract requires a non-empty string and, when the pattern names an
// expected entity value, equality with it.
func (v *EntityValidator) checkExtract(rep *report.Report, out any) (string, error) {
	rep.Info("Validating the extract output...")
	s, err := func() (string, error) {
		if isEmpty(out) {
			rep.Warn("The extract output is empty")
			return "", ErrEmptyExtract
		}
		s, ok := out.(string)
		if !ok {
			rep.Warn("The extract output does NOT match the expected type: 'string'")
			return "", fmt.Errorf("expected the extract output to be a string, got %s", typeName(out))
		}
		if want, ok := v.pattern.Mapping.ExpectedValue(); ok {
			if s != want {
				msg := fmt.Sprintf("The extract output does NOT match the entity value: '%s'", want)
				rep.Warn(msg)
				return "", errors.New(msg)
			}
			rep.Infof("The extract output matches the entity value: '%s'", want)
		}
		return s, nil
	}()
	if err != nil {
		rep.Error("The extract output is not valid")
		return "", err
	}
	rep.Info("Extract output is valid")
	return s, nil
}

func (v *EntityValidator) checkTransform(rep *report.Report, out any) error {
	rep.Info("Validating the transform output...")
	if _, ok := out.(string); !ok {
		rep.Warn("The transform output does NOT match the expected type: 'string'")
		rep.Error("The transform output is not valid")
		return fmt.Errorf("expected the transform output to be a string, got %s", typeName(out))
	}
	rep.Info("The transform output matches the expected type: 'string'")
	rep.Info("Transform output is valid")
	return nil
}
