package schema

// ResolveReferencedShapes returns every shape reachable from the category's
// fields, directly or through other shapes.
//
// Discovery is breadth-first starting from the category's field order. Each
// shape is expanded at most once, so diamonds and cycles in the shape graph
// terminate. Callers should rely only on the returned set being complete.
func (m *Model) ResolveReferencedShapes(c *Category) []*Shape {
	if c == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []*Shape
	queue := shapeRefs(c.Fields)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		s, ok := m.shapeByName[name]
		if !ok {
			// Unknown names only occur in models not built by Load.
			continue
		}
		out = append(out, s)
		queue = append(queue, shapeRefs(s.Fields)...)
	}

	return out
}

func shapeRefs(fields []*Field) []string {
	var refs []string
	for _, f := range fields {
		if f.Shape != "" {
			refs = append(refs, f.Shape)
		}
	}
	return refs
}
