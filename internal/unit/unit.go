// Package unit defines the records generated code arrives in: extraction
// patterns (extract + transform for one entity), whole-event transformers and
// the plain code blocks fed back into generation.
package unit

import (
	"strings"

	"github.com/leapstack-labs/leapocsf/internal/report"
	"github.com/leapstack-labs/leapocsf/internal/sandbox"
)

// Entry point names the validators bind.
const (
	EntryExtract     = "extract"
	EntryTransform   = "transform"
	EntryTransformer = "transformer"
)

// Code is a generated code block as a generation round returns it.
type Code struct {
	Language    string `json:"language,omitempty"`
	Imports     string `json:"imports"`
	Description string `json:"description"`
	Body        string `json:"code"`
}

// FileFormat renders the block as imports, a description comment and the
// code, in that order.
func (c Code) FileFormat() string {
	quote := `"""`
	begin, end := quote, quote
	if normalizeLanguage(c.Language) == sandbox.LangGo {
		begin, end = "/*", "*/"
	}
	return c.Imports + "\n\n" + begin + "\n" + c.Description + "\n" + end + "\n\n" + c.Body
}

// Entity is one value found in a log line.
type Entity struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// EntityMapping ties entities to an OCSF path.
type EntityMapping struct {
	ID            string   `json:"id"`
	Entities      []Entity `json:"entities"`
	OCSFPath      string   `json:"ocsf_path"`
	PathRationale string   `json:"path_rationale"`
}

// ExpectedValue returns the value the extract logic should produce.
func (m *EntityMapping) ExpectedValue() (string, bool) {
	if m == nil || len(m.Entities) == 0 {
		return "", false
	}
	return m.Entities[0].Value, true
}

// ExtractionPattern pulls one entity out of an input and transforms it.
type ExtractionPattern struct {
	ID               string         `json:"id"`
	Language         string         `json:"language,omitempty"`
	Mapping          *EntityMapping `json:"mapping"`
	DependencySetup  string         `json:"dependency_setup"`
	ExtractLogic     string         `json:"extract_logic"`
	TransformLogic   string         `json:"transform_logic"`
	ValidationReport *report.Report `json:"validation_report"`
}

// ExtractSource returns the loader input for the extract section.
func (p *ExtractionPattern) ExtractSource() sandbox.Source {
	return sandbox.Source{
		Language: p.Language,
		Filename: p.filename(EntryExtract),
		Preamble: p.DependencySetup,
		Body:     p.ExtractLogic,
	}
}

// TransformSource returns the loader input for the transform section.
func (p *ExtractionPattern) TransformSource() sandbox.Source {
	return sandbox.Source{
		Language: p.Language,
		Filename: p.filename(EntryTransform),
		Preamble: p.DependencySetup,
		Body:     p.TransformLogic,
	}
}

func (p *ExtractionPattern) filename(section string) string {
	if p.ID == "" {
		return section
	}
	return p.ID + "/" + section
}

// Transformer maps a whole input to an OCSF event.
type Transformer struct {
	ID               string         `json:"id"`
	Language         string         `json:"language,omitempty"`
	DependencySetup  string         `json:"dependency_setup"`
	TransformerLogic string         `json:"transformer_logic"`
	ValidationReport *report.Report `json:"validation_report"`
}

// Source returns the loader input for the transformer.
func (t *Transformer) Source() sandbox.Source {
	name := EntryTransformer
	if t.ID != "" {
		name = t.ID + "/" + EntryTransformer
	}
	return sandbox.Source{
		Language: t.Language,
		Filename: name,
		Preamble: t.DependencySetup,
		Body:     t.TransformerLogic,
	}
}

// Code returns the transformer as a feedback code block.
func (t *Transformer) Code() Code {
	return Code{
		Language:    t.Language,
		Imports:     t.DependencySetup,
		Description: "Transformer " + t.ID,
		Body:        t.TransformerLogic,
	}
}

// Code returns the pattern as a feedback code block with the extract and
// transform sections joined.
func (p *ExtractionPattern) Code() Code {
	desc := "Extraction pattern " + p.ID
	if p.Mapping != nil && p.Mapping.OCSFPath != "" {
		desc += " for " + p.Mapping.OCSFPath
	}
	return Code{
		Language:    p.Language,
		Imports:     p.DependencySetup,
		Description: desc,
		Body:        strings.TrimRight(p.ExtractLogic, "\n") + "\n\n" + p.TransformLogic,
	}
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return sandbox.LangStarlark
	}
	return lang
}
