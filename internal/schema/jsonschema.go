package schema

import (
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
)

const draft202012 = "https://json-schema.org/draft/2020-12/schema"

// JSONSchema renders the category as a JSON Schema document. Every shape
// reachable from the category becomes an entry under $defs and is linked
// with $ref, so the document is self-contained.
//
// The rendered schema is handed to follow-up generation requests; it is not
// used by the conformance checker.
func (m *Model) JSONSchema(c *Category) *jsonschema.Schema {
	root := fieldSetSchema(&c.FieldSet)
	root.Schema = draft202012
	root.Title = c.Name
	if ec, ok := m.EventClass(c.Name); ok {
		root.Description = ec.Description
	}

	shapes := m.ResolveReferencedShapes(c)
	if len(shapes) > 0 {
		root.Defs = make(map[string]*jsonschema.Schema, len(shapes))
		for _, s := range shapes {
			def := fieldSetSchema(&s.FieldSet)
			def.Title = s.Name
			root.Defs[s.Name] = def
		}
	}
	return root
}

func fieldSetSchema(set *FieldSet) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(set.Fields)),
	}
	for _, f := range set.Fields {
		s.Properties[f.Name] = fieldSchema(f)
		if f.IsRequired() {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func fieldSchema(f *Field) *jsonschema.Schema {
	var elem *jsonschema.Schema
	if f.Shape != "" {
		elem = &jsonschema.Schema{Ref: "#/$defs/" + f.Shape}
	} else {
		elem = &jsonschema.Schema{Type: JSONType(f.ElementType())}
		for _, ev := range f.Enum {
			elem.Enum = append(elem.Enum, enumLiteral(elem.Type, ev.Value))
		}
	}

	out := elem
	if f.Array {
		out = &jsonschema.Schema{Type: "array", Items: elem}
	}
	out.Description = f.Description
	return out
}

func enumLiteral(jsonType, v string) any {
	if jsonType == "integer" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return v
}
