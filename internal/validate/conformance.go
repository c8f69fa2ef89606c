package validate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/schema"
)

// ErrNonConformant is returned when the output deviates from the schema in a
// way the policy treats as fatal.
var ErrNonConformant = errors.New("Transform output does not conform to the OCSF schema") //nolint:staticcheck // ST1005: the text is a report finding

// Policy decides which deviations fail a run. Every deviation is reported as
// a warning regardless of the policy.
type Policy struct {
	FailOnUnexpected      bool `koanf:"fail_on_unexpected"`
	FailOnMissingRequired bool `koanf:"fail_on_missing_required"`
	// Nested checks mappings held by shape-typed fields against the shape.
	Nested bool `koanf:"nested"`
	// CheckTypes warns when a value does not match its declared type.
	CheckTypes bool `koanf:"check_types"`
}

// DefaultPolicy fails on any unexpected or missing required top-level field.
// Nested shapes and value types are not checked.
func DefaultPolicy() Policy {
	return Policy{
		FailOnUnexpected:      true,
		FailOnMissingRequired: true,
	}
}

// DeviationKind classifies a conformance deviation.
type DeviationKind int

// Deviation kinds.
const (
	Unexpected DeviationKind = iota
	MissingRequired
	WrongType
)

func (k DeviationKind) String() string {
	switch k {
	case Unexpected:
		return "unexpected"
	case MissingRequired:
		return "missing_required"
	case WrongType:
		return "wrong_type"
	}
	return "unknown"
}

// Deviation is one difference between an output and its schema.
type Deviation struct {
	Kind    DeviationKind
	Path    string // dotted path; list elements as name[i]
	Message string
}

// Conformance checks transformer output against a category.
type Conformance struct {
	Model  *schema.Model
	Policy Policy
}

// Check appends a warning for every deviation of output from category, then
// decides. It returns all deviations and ErrNonConformant if the policy
// treats any of them as fatal.
func (c *Conformance) Check(category *schema.Category, output map[string]any, rep *report.Report) ([]Deviation, error) {
	w := &walker{
		policy: c.Policy,
		rep:    rep,
		shapes: make(map[string]*schema.Shape),
	}
	if c.Model != nil {
		for _, s := range c.Model.ResolveReferencedShapes(category) {
			w.shapes[s.Name] = s
		}
	}

	w.object(&category.FieldSet, "", "", output)

	var unexpected, missing int
	for _, d := range w.deviations {
		switch d.Kind {
		case Unexpected:
			unexpected++
		case MissingRequired:
			missing++
		}
	}

	fatal := (c.Policy.FailOnUnexpected && unexpected > 0) ||
		(c.Policy.FailOnMissingRequired && missing > 0)
	if fatal {
		rep.Error(ErrNonConformant.Error())
		return w.deviations, ErrNonConformant
	}
	if len(w.deviations) > 0 {
		rep.Infof("Transform output deviates from the OCSF schema in %d tolerated ways", len(w.deviations))
	}
	return w.deviations, nil
}

type walker struct {
	policy     Policy
	rep        *report.Report
	shapes     map[string]*schema.Shape
	deviations []Deviation
}

func (w *walker) add(kind DeviationKind, path, msg string) {
	w.rep.Warn(msg)
	w.deviations = append(w.deviations, Deviation{Kind: kind, Path: path, Message: msg})
}

// object checks one mapping against fs. shape is empty at the top level.
func (w *walker) object(fs *schema.FieldSet, shape, prefix string, obj map[string]any) {
	top := shape == ""
	keys := sortedKeys(obj)

	unexpected := 0
	for _, k := range keys {
		if fs.HasField(k) {
			continue
		}
		unexpected++
		path := prefix + k
		if top {
			w.add(Unexpected, path, fmt.Sprintf("Top level field '%s' present in transform output but not found in category schema", k))
		} else {
			w.add(Unexpected, path, fmt.Sprintf("Field '%s' present in transform output but not found in shape '%s'", path, shape))
		}
	}
	if top && unexpected == 0 {
		w.rep.Debug("All top level fields present in transform output are found in the category schema")
	}

	missing := 0
	for _, f := range fs.RequiredFields() {
		if _, ok := obj[f.Name]; ok {
			continue
		}
		missing++
		path := prefix + f.Name
		if top {
			w.add(MissingRequired, path, fmt.Sprintf("Top level field '%s' marked as required in category schema but not present in transform output", f.Name))
		} else {
			w.add(MissingRequired, path, fmt.Sprintf("Field '%s' marked as required in shape '%s' but not present in transform output", path, shape))
		}
	}
	if top && missing == 0 {
		w.rep.Debug("All required top level fields present in category schema are found in transform output")
	}

	for _, k := range keys {
		f := fs.Field(k)
		if f == nil {
			continue
		}
		w.value(f, prefix+k, obj[k])
	}
}

// value checks the value of a declared field and descends into shapes.
func (w *walker) value(f *schema.Field, path string, v any) {
	if v == nil {
		return
	}

	if f.Array {
		items, ok := v.([]any)
		if !ok {
			w.typeMismatch(f, path, v)
			return
		}
		for i, item := range items {
			w.element(f, path+"["+strconv.Itoa(i)+"]", item)
		}
		return
	}
	w.element(f, path, v)
}

func (w *walker) element(f *schema.Field, path string, v any) {
	if v == nil {
		return
	}
	if !f.Conforms(v) {
		w.typeMismatch(f, path, v)
		return
	}
	if !w.policy.Nested || f.Shape == "" {
		return
	}
	shape, ok := w.shapes[f.Shape]
	if !ok {
		return
	}
	obj, _ := v.(map[string]any)
	w.object(&shape.FieldSet, shape.Name, path+".", obj)
}

func (w *walker) typeMismatch(f *schema.Field, path string, v any) {
	if !w.policy.CheckTypes {
		return
	}
	w.add(WrongType, path, fmt.Sprintf("Field '%s' has a value of type %s but is declared as %s", path, typeName(v), f.DataType))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
