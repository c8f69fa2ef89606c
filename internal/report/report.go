// Package report holds the outcome of one validation run: the input, the
// captured output, an ordered log of findings and the final verdict.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Stage is the furthest validation state a run reached.
type Stage string

// Validation states, in order. StageFailed can follow any of them.
const (
	StageStart             Stage = "START"
	StageLoaded            Stage = "LOADED"
	StageInvoked           Stage = "INVOKED"
	StageStructurallyValid Stage = "STRUCTURALLY_VALID"
	StageSchemaValid       Stage = "SCHEMA_VALID"
	StageFailed            Stage = "FAILED"
)

// Finding is one entry in a report's log.
type Finding struct {
	Severity Severity
	Message  string
}

// Report is the audit trail of a single validation run.
//
// Entries are append-only and keep insertion order. The verdict is set once
// by Finish; until then Passed is false.
type Report struct {
	ID      string
	Input   string
	Output  map[string]any
	Entries []Finding
	Passed  bool
	Stage   Stage

	// FailedAt is the last stage reached before a failed verdict.
	FailedAt Stage

	logger   *slog.Logger
	finished bool
}

// Option configures a Report.
type Option func(*Report)

// WithLogger mirrors every appended finding to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Report) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithID sets the report ID instead of generating one.
func WithID(id string) Option {
	return func(r *Report) {
		r.ID = id
	}
}

// New creates an empty report for input.
func New(input string, opts ...Option) *Report {
	r := &Report{
		ID:     uuid.New().String(),
		Input:  input,
		Stage:  StageStart,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append logs msg at the severity's level and records it.
func (r *Report) Append(sev Severity, msg string) {
	if r.logger != nil {
		r.logger.Log(context.Background(), sev.Level(), msg, slog.String("report", r.ID))
	}
	r.Entries = append(r.Entries, Finding{Severity: sev, Message: msg})
}

// Appendf is Append with formatting.
func (r *Report) Appendf(sev Severity, format string, args ...any) {
	r.Append(sev, fmt.Sprintf(format, args...))
}

// Debug appends a debug finding.
func (r *Report) Debug(msg string) { r.Append(SeverityDebug, msg) }

// Info appends an info finding.
func (r *Report) Info(msg string) { r.Append(SeverityInfo, msg) }

// Warn appends a warning finding.
func (r *Report) Warn(msg string) { r.Append(SeverityWarning, msg) }

// Error appends an error finding.
func (r *Report) Error(msg string) { r.Append(SeverityError, msg) }

// Infof appends a formatted info finding.
func (r *Report) Infof(format string, args ...any) { r.Appendf(SeverityInfo, format, args...) }

// Warnf appends a formatted warning finding.
func (r *Report) Warnf(format string, args ...any) { r.Appendf(SeverityWarning, format, args...) }

// Errorf appends a formatted error finding.
func (r *Report) Errorf(format string, args ...any) { r.Appendf(SeverityError, format, args...) }

// SetOutput records one captured output value under key.
func (r *Report) SetOutput(key string, v any) {
	if r.Output == nil {
		r.Output = make(map[string]any)
	}
	r.Output[key] = v
}

// Advance records that the run reached stage.
func (r *Report) Advance(stage Stage) {
	r.Stage = stage
}

// Finish sets the verdict. It reports false, and changes nothing, if the
// verdict was already set.
func (r *Report) Finish(passed bool) bool {
	if r.finished {
		return false
	}
	r.finished = true
	r.Passed = passed
	if !passed {
		r.FailedAt = r.Stage
		r.Stage = StageFailed
	}
	return true
}

// Finished reports whether the verdict has been set.
func (r *Report) Finished() bool {
	return r.finished
}

// Messages returns the finding messages in order.
func (r *Report) Messages() []string {
	if len(r.Entries) == 0 {
		return nil
	}
	out := make([]string, len(r.Entries))
	for i, f := range r.Entries {
		out[i] = f.Message
	}
	return out
}

// Warnings returns the warning findings in order.
func (r *Report) Warnings() []Finding {
	return r.bySeverity(SeverityWarning)
}

// Errors returns the error findings in order.
func (r *Report) Errors() []Finding {
	return r.bySeverity(SeverityError)
}

func (r *Report) bySeverity(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Entries {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// Last returns the most recent finding.
func (r *Report) Last() (Finding, bool) {
	if len(r.Entries) == 0 {
		return Finding{}, false
	}
	return r.Entries[len(r.Entries)-1], true
}
