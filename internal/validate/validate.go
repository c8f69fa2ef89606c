// Package validate runs generated code against an input and judges the
// result.
//
// A run moves through START, LOADED, INVOKED, STRUCTURALLY_VALID and
// SCHEMA_VALID. The first failing stage appends its own finding and stops the
// run; the run then appends "Error: <message>" and returns the report with a
// failed verdict. Validate never returns an error: the report is the result.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/sandbox"
)

// Validator runs one validation.
type Validator interface {
	Validate(ctx context.Context) *report.Report
}

// Loader binds entry points from generated code. *sandbox.Loader implements it.
type Loader interface {
	Load(ctx context.Context, src sandbox.Source, entry string) (*sandbox.Unit, error)
}

type options struct {
	logger   *slog.Logger
	policy   Policy
	reportID string
}

// Option configures a validator.
type Option func(*options)

// WithLogger sets the logger findings are mirrored to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolicy sets the conformance policy. Only transformer validation uses it.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithReportID fixes the ID of the produced report.
func WithReportID(id string) Option {
	return func(o *options) {
		o.reportID = id
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// run carries the state shared by the stages of one validation.
type run struct {
	loader Loader
	rep    *report.Report
	logger *slog.Logger
}

func newRun(loader Loader, input string, o options) *run {
	ropts := []report.Option{report.WithLogger(o.logger)}
	if o.reportID != "" {
		ropts = append(ropts, report.WithID(o.reportID))
	}
	return &run{
		loader: loader,
		rep:    report.New(input, ropts...),
		logger: o.logger,
	}
}

// load is the START -> LOADED transition for one section.
func (r *run) load(ctx context.Context, section string, src sandbox.Source, entry string) (*sandbox.Unit, error) {
	r.rep.Infof("Attempting to load the %s logic...", section)
	u, err := r.loader.Load(ctx, src, entry)
	if err != nil {
		if kind := sandbox.KindOf(err); kind != 0 {
			r.rep.Errorf("The %s logic loading has failed: %s", section, kind)
		} else {
			r.rep.Errorf("The %s logic loading has failed", section)
		}
		return nil, err
	}
	r.rep.Infof("Loaded the %s logic without exceptions", section)
	r.rep.Advance(report.StageLoaded)
	return u, nil
}

// invoke is the LOADED -> INVOKED transition. On success the output is
// recorded under outputKey, if set.
func (r *run) invoke(ctx context.Context, section string, u *sandbox.Unit, input, outputKey string) (any, error) {
	r.rep.Infof("Attempting to invoke the %s logic against the input...", section)
	out, err := u.Invoke(ctx, input)
	if err != nil {
		if kind := sandbox.KindOf(err); kind == sandbox.KindTimeout || kind == sandbox.KindStepLimit {
			r.rep.Errorf("The %s logic invocation has failed: %s", section, kind)
		} else {
			r.rep.Errorf("The %s logic invocation has failed", section)
		}
		return nil, err
	}
	if outputKey != "" {
		r.rep.SetOutput(outputKey, out)
	}
	r.rep.Infof("Invoked the %s logic without exceptions", section)
	r.rep.Advance(report.StageInvoked)
	return out, nil
}

// finish sets the verdict from the first stage error, logs the outcome and
// returns the report.
func (r *run) finish(what string, err error) *report.Report {
	if err != nil {
		r.rep.Error("Error: " + err.Error())
		r.rep.Finish(false)
	} else {
		r.rep.Advance(report.StageSchemaValid)
		r.rep.Finish(true)
	}

	r.logger.Info(what+" testing complete", slog.Bool("passed", r.rep.Passed), slog.String("report", r.rep.ID))
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logger.Debug(what+" testing report", slog.String("report", r.rep.Indent()))
	}
	return r.rep
}

// typeName describes a converted output value for findings.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}

// isEmpty reports whether v is falsy: null, an empty string or collection,
// false, or zero.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case int64:
		return x == 0
	case float64:
		return x == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
