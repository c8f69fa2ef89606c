package unit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapocsf/internal/sandbox"
)

const setPathHelper = `
def set_path(d, path, value):
    keys = path.split(".")
    for key in keys[:-1]:
        if key not in d or type(d[key]) != "dict":
            d[key] = {}
        d = d[key]
    d[keys[-1]] = value
`

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Compose builds one Starlark transformer from extraction patterns. Each
// pattern becomes a function that runs its extract and transform on the
// input; the transformer places every result at the pattern's OCSF path.
//
// All patterns must be Starlark, carry a mapping with a path, and share the
// dependency setup of the first pattern.
func Compose(id string, patterns []*ExtractionPattern) (*Transformer, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("compose %s: no patterns", id)
	}

	var body strings.Builder
	names := make([]string, len(patterns))
	seen := make(map[string]bool, len(patterns))
	for i, p := range patterns {
		if lang := normalizeLanguage(p.Language); lang != sandbox.LangStarlark {
			return nil, fmt.Errorf("compose %s: pattern %s is %s, only starlark patterns can be composed", id, p.ID, lang)
		}
		if p.Mapping == nil || p.Mapping.OCSFPath == "" {
			return nil, fmt.Errorf("compose %s: pattern %s has no OCSF path", id, p.ID)
		}

		name := "transformer_" + nonIdent.ReplaceAllString(p.Mapping.OCSFPath, "_")
		if seen[name] {
			return nil, fmt.Errorf("compose %s: more than one pattern maps to %s", id, p.Mapping.OCSFPath)
		}
		seen[name] = true
		names[i] = name

		fmt.Fprintf(&body, "\ndef %s(input_data):\n", name)
		body.WriteString(indent(p.ExtractLogic))
		body.WriteString("\n")
		body.WriteString(indent(p.TransformLogic))
		body.WriteString("\n    return transform(extract(input_data))\n")
	}

	body.WriteString(setPathHelper)

	body.WriteString("\ndef transformer(input_data):\n    output = {}\n")
	for i, p := range patterns {
		fmt.Fprintf(&body, "    set_path(output, %s, %s(input_data))\n", strconv.Quote(p.Mapping.OCSFPath), names[i])
	}
	body.WriteString("    return output\n")

	return &Transformer{
		ID:               id,
		Language:         sandbox.LangStarlark,
		DependencySetup:  patterns[0].DependencySetup,
		TransformerLogic: body.String(),
	}, nil
}

// indent shifts every non-blank line four spaces to the right.
func indent(code string) string {
	lines := strings.Split(strings.Trim(code, "\n"), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
