package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// wireReport is the external form of a report. The first four fields are the
// shape collaborators consume; the rest are optional extras.
type wireReport struct {
	Input         string         `json:"input"`
	Output        map[string]any `json:"output"`
	ReportEntries []string       `json:"report_entries"`
	Passed        bool           `json:"passed"`

	Severities []Severity `json:"severities,omitempty"`
	Stage      Stage      `json:"stage,omitempty"`
	FailedAt   Stage      `json:"failed_at,omitempty"`
	ID         string     `json:"id,omitempty"`
}

// MarshalJSON writes the report as {input, output, report_entries, passed}.
// Empty output and an empty entry list are written as null. Floats in the
// output keep a decimal point, so 2.0 is not read back as the integer 2.
func (r *Report) MarshalJSON() ([]byte, error) {
	w := wireReport{
		Input:         r.Input,
		ReportEntries: r.Messages(),
		Passed:        r.Passed,
		Stage:         r.Stage,
		FailedAt:      r.FailedAt,
		ID:            r.ID,
	}
	if len(r.Output) > 0 {
		w.Output = toWire(r.Output).(map[string]any)
	}
	if len(r.Entries) > 0 {
		w.Severities = make([]Severity, len(r.Entries))
		for i, f := range r.Entries {
			w.Severities[i] = f.Severity
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the external form. Missing keys take their zero value;
// entries without severities are informational. Integral numbers in the
// output decode as int64, others as float64.
func (r *Report) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireReport
	if err := dec.Decode(&w); err != nil {
		return err
	}
	if len(w.Severities) > 0 && len(w.Severities) != len(w.ReportEntries) {
		return fmt.Errorf("report has %d entries but %d severities", len(w.ReportEntries), len(w.Severities))
	}

	r.ID = w.ID
	r.Input = w.Input
	r.Passed = w.Passed
	r.Stage = w.Stage
	r.FailedAt = w.FailedAt
	r.Output = nil
	if len(w.Output) > 0 {
		r.Output = fromNumbers(w.Output).(map[string]any)
	}

	r.Entries = nil
	for i, msg := range w.ReportEntries {
		f := Finding{Severity: SeverityInfo, Message: msg}
		if len(w.Severities) > 0 {
			f.Severity = w.Severities[i]
		}
		r.Entries = append(r.Entries, f)
	}

	// A decoded report is a finished record.
	r.finished = true
	return nil
}

// MarshalOutput encodes the captured output the way MarshalJSON does.
func (r *Report) MarshalOutput(indent string) ([]byte, error) {
	return json.MarshalIndent(toWire(r.Output), "", indent)
}

// toWire copies v for encoding. Floats become numbers that carry a decimal
// point or an exponent. NaN and infinities, which JSON cannot hold, are
// written as the strings "NaN", "Infinity" and "-Infinity".
func toWire(v any) any {
	switch x := v.(type) {
	case float64:
		return floatNumber(x)
	case float32:
		return floatNumber(float64(x))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = toWire(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toWire(e)
		}
		return out
	}
	return v
}

func floatNumber(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

// fromNumbers replaces json.Number values with int64 or float64.
func fromNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if !strings.ContainsAny(x.String(), ".eE") {
			if i, err := x.Int64(); err == nil {
				return i
			}
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = fromNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = fromNumbers(e)
		}
		return x
	}
	return v
}

// Indent returns the report as indented JSON, as logged at the end of a run.
func (r *Report) Indent() string {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Sprintf("<unencodable report: %v>", err)
	}
	return string(data)
}
