package schema

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embeddedData embed.FS

// DefaultVersion is the OCSF version used when none is configured.
const DefaultVersion = "1.1.0"

// document is the on-disk layout of a schema knowledge base.
type document struct {
	Version      string       `yaml:"version"`
	EventClasses []EventClass `yaml:"event_classes"`
	Categories   []*Category  `yaml:"categories"`
	Shapes       []*Shape     `yaml:"shapes"`
}

// Load parses a YAML (or JSON) schema document and validates it.
//
// Validation rejects duplicate category or shape names, duplicate field names
// within a set, unknown requirement levels, and field types that look like
// shape references but name no shape.
func Load(r io.Reader) (*Model, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode schema document: %w", err)
	}
	return build(&doc)
}

func build(doc *document) (*Model, error) {
	m := &Model{
		version:        doc.Version,
		eventClasses:   doc.EventClasses,
		categories:     doc.Categories,
		shapes:         doc.Shapes,
		categoryByName: make(map[string]*Category, len(doc.Categories)),
		shapeByName:    make(map[string]*Shape, len(doc.Shapes)),
	}

	for _, s := range doc.Shapes {
		if _, dup := m.shapeByName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate shape %q", s.Name)
		}
		if err := s.index(); err != nil {
			return nil, err
		}
		m.shapeByName[s.Name] = s
	}
	for _, c := range doc.Categories {
		if _, dup := m.categoryByName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		if err := c.index(); err != nil {
			return nil, err
		}
		m.categoryByName[c.Name] = c
	}

	// Link shape references once all shapes are known.
	sets := make([]*FieldSet, 0, len(doc.Shapes)+len(doc.Categories))
	for _, s := range doc.Shapes {
		sets = append(sets, &s.FieldSet)
	}
	for _, c := range doc.Categories {
		sets = append(sets, &c.FieldSet)
	}
	for _, set := range sets {
		for _, f := range set.Fields {
			if err := m.link(set.Name, f); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// link resolves a field's data type against the known shapes.
func (m *Model) link(owner string, f *Field) error {
	elem := f.DataType
	if strings.HasSuffix(elem, arraySuffix) {
		f.Array = true
		elem = strings.TrimSuffix(elem, arraySuffix)
	}
	if _, ok := m.shapeByName[elem]; ok {
		f.Shape = elem
		return nil
	}
	if f.Array && !isPrimitive(elem) {
		return fmt.Errorf("%s.%s: data type %q references unknown shape %q", owner, f.Name, f.DataType, elem)
	}
	if !f.Array && !isPrimitive(elem) {
		return fmt.Errorf("%s.%s: data type %q is neither a primitive nor a known shape", owner, f.Name, f.DataType)
	}
	return nil
}

var (
	builtinOnce   sync.Once
	builtinModels map[string]*Model
	builtinErr    error
)

// Builtin returns the embedded knowledge base for the given version.
// The embedded documents are parsed once per process.
func Builtin(version string) (*Model, error) {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		return nil, builtinErr
	}
	if version == "" {
		version = DefaultVersion
	}
	m, ok := builtinModels[version]
	if !ok {
		return nil, fmt.Errorf("ocsf version %q: %w (available: %s)", version, ErrNotFound, strings.Join(Versions(), ", "))
	}
	return m, nil
}

// Versions lists the embedded schema versions in ascending order.
func Versions() []string {
	builtinOnce.Do(loadBuiltins)
	versions := make([]string, 0, len(builtinModels))
	for v := range builtinModels {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

func loadBuiltins() {
	builtinModels = make(map[string]*Model)
	builtinErr = fs.WalkDir(embeddedData, "data", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".yaml" {
			return err
		}
		data, err := embeddedData.ReadFile(p)
		if err != nil {
			return err
		}
		m, err := Load(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		builtinModels[m.Version()] = m
		return nil
	})
}
