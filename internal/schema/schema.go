// Package schema provides the read-only OCSF knowledge base used to validate
// transformer output: event class categories, their fields, and the nested
// shapes those fields reference.
//
// A Model is constructed once (see Load and Builtin) and never mutated
// afterwards, so it is safe to share across goroutines.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a category or shape name does not exist in the model.
var ErrNotFound = errors.New("not found")

// Requirement is the requirement level of a field.
type Requirement string

// Requirement levels.
const (
	Required    Requirement = "Required"
	Recommended Requirement = "Recommended"
	Optional    Requirement = "Optional"
)

// Valid reports whether r is one of the known requirement levels.
func (r Requirement) Valid() bool {
	switch r {
	case Required, Recommended, Optional:
		return true
	}
	return false
}

// arraySuffix marks a list-typed field, e.g. "HTTP Header Array".
const arraySuffix = " Array"

// EnumValue is a single legal value of an enumerated field.
type EnumValue struct {
	Value   string `yaml:"value" json:"value"`
	Caption string `yaml:"caption" json:"caption"`
}

// Field is a typed attribute of a category or shape.
type Field struct {
	Name        string      `yaml:"name" json:"name"`
	DataType    string      `yaml:"data_type" json:"data_type"`
	Requirement Requirement `yaml:"requirement" json:"requirement"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Enum        []EnumValue `yaml:"enum_values,omitempty" json:"enum_values,omitempty"`

	// Shape is the referenced shape name when DataType names a shape
	// (with any " Array" suffix removed). Empty for primitive fields.
	Shape string `yaml:"-" json:"-"`
	// Array is true when DataType ends in " Array".
	Array bool `yaml:"-" json:"-"`
}

// IsRequired reports whether the field is marked Required.
func (f *Field) IsRequired() bool {
	return f.Requirement == Required
}

// ShapeRef returns the referenced shape name and whether the field holds a
// list of that shape. ok is false for primitive fields.
func (f *Field) ShapeRef() (name string, array bool, ok bool) {
	if f.Shape == "" {
		return "", f.Array, false
	}
	return f.Shape, f.Array, true
}

// ElementType returns DataType without the array suffix.
func (f *Field) ElementType() string {
	return strings.TrimSuffix(f.DataType, arraySuffix)
}

// FieldSet is an ordered collection of uniquely named fields. It backs both
// categories and shapes.
type FieldSet struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []*Field `yaml:"fields" json:"fields"`

	byName map[string]*Field
}

// Field returns the named field, or nil.
func (s *FieldSet) Field(name string) *Field {
	return s.byName[name]
}

// HasField reports whether the set declares a field with the given name.
func (s *FieldSet) HasField(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// FieldNames returns the field names in declaration order.
func (s *FieldSet) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the fields marked Required, in declaration order.
func (s *FieldSet) RequiredFields() []*Field {
	var out []*Field
	for _, f := range s.Fields {
		if f.IsRequired() {
			out = append(out, f)
		}
	}
	return out
}

func (s *FieldSet) index() error {
	s.byName = make(map[string]*Field, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%s: field with empty name", s.Name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return fmt.Errorf("%s: duplicate field %q", s.Name, f.Name)
		}
		if !f.Requirement.Valid() {
			return fmt.Errorf("%s.%s: invalid requirement %q", s.Name, f.Name, f.Requirement)
		}
		s.byName[f.Name] = f
	}
	return nil
}

// Category is an event class schema that a transformer's output must conform to.
type Category struct {
	FieldSet `yaml:",inline"`
}

// Shape is a reusable nested field set referenced by category or shape fields.
type Shape struct {
	FieldSet `yaml:",inline"`
}

// EventClass is an entry of the event class index: a public name, its
// numeric uid, and a human readable description.
type EventClass struct {
	Name        string `yaml:"name" json:"name"`
	UID         int    `yaml:"uid" json:"uid"`
	Description string `yaml:"description" json:"description"`
}

// Model is an immutable, versioned schema knowledge base.
type Model struct {
	version      string
	eventClasses []EventClass
	categories   []*Category
	shapes       []*Shape

	categoryByName map[string]*Category
	shapeByName    map[string]*Shape
}

// Version returns the schema version, e.g. "1.1.0".
func (m *Model) Version() string {
	return m.version
}

// Category returns the category with exactly the given public name.
// The match is case-sensitive.
func (m *Model) Category(name string) (*Category, error) {
	c, ok := m.categoryByName[name]
	if !ok {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// Shape returns the shape with exactly the given name.
func (m *Model) Shape(name string) (*Shape, error) {
	s, ok := m.shapeByName[name]
	if !ok {
		return nil, fmt.Errorf("shape %q: %w", name, ErrNotFound)
	}
	return s, nil
}

// Categories returns all categories in source order.
func (m *Model) Categories() []*Category {
	return append([]*Category(nil), m.categories...)
}

// Shapes returns all shapes in source order.
func (m *Model) Shapes() []*Shape {
	return append([]*Shape(nil), m.shapes...)
}

// EventClasses returns the event class index in source order.
func (m *Model) EventClasses() []EventClass {
	return append([]EventClass(nil), m.eventClasses...)
}

// EventClass returns the index entry for the given name.
func (m *Model) EventClass(name string) (EventClass, bool) {
	for _, ec := range m.eventClasses {
		if ec.Name == name {
			return ec, true
		}
	}
	return EventClass{}, false
}
