package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cyclicDoc = `
version: test
categories:
  - name: Root
    fields:
      - {name: a, data_type: A, requirement: Required}
      - {name: b, data_type: B Array, requirement: Optional}
      - {name: id, data_type: Integer, requirement: Required}
shapes:
  - name: A
    fields:
      - {name: c, data_type: C, requirement: Optional}
  - name: B
    fields:
      - {name: c, data_type: C, requirement: Optional}
  - name: C
    fields:
      - {name: back, data_type: A, requirement: Optional}
      - {name: label, data_type: String, requirement: Required}
`

func loadString(t *testing.T, doc string) *Model {
	t.Helper()
	m, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	return m
}

func TestBuiltin(t *testing.T) {
	m, err := Builtin("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, m.Version())
	assert.Contains(t, Versions(), "1.1.0")

	_, err = Builtin("0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModel_Category(t *testing.T) {
	m, err := Builtin(DefaultVersion)
	require.NoError(t, err)

	tests := []struct {
		name    string
		lookup  string
		wantErr bool
	}{
		{name: "exact name", lookup: "Authentication"},
		{name: "other category", lookup: "HTTP Activity"},
		{name: "case mismatch", lookup: "authentication", wantErr: true},
		{name: "unknown", lookup: "Nope", wantErr: true},
		{name: "empty", lookup: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := m.Category(tt.lookup)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lookup, c.Name)
		})
	}
}

func TestCategory_RequiredFields(t *testing.T) {
	m, err := Builtin(DefaultVersion)
	require.NoError(t, err)

	c, err := m.Category("Authentication")
	require.NoError(t, err)

	var names []string
	for _, f := range c.RequiredFields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"activity_id", "category_uid", "class_uid", "severity_id", "time", "type_uid", "user"}, names)
}

func TestField_ShapeRef(t *testing.T) {
	m, err := Builtin(DefaultVersion)
	require.NoError(t, err)

	req, err := m.Shape("HTTP Request")
	require.NoError(t, err)

	name, array, ok := req.Field("http_headers").ShapeRef()
	assert.True(t, ok)
	assert.True(t, array)
	assert.Equal(t, "HTTP Header", name)

	_, _, ok = req.Field("http_method").ShapeRef()
	assert.False(t, ok)
}

func TestResolveReferencedShapes_Builtin(t *testing.T) {
	m, err := Builtin(DefaultVersion)
	require.NoError(t, err)

	c, err := m.Category("HTTP Activity")
	require.NoError(t, err)

	var names []string
	for _, s := range m.ResolveReferencedShapes(c) {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{
		"HTTP Request", "HTTP Response", "Network Endpoint", "HTTP Header", "Uniform Resource Locator",
	}, names)
}

func TestResolveReferencedShapes_CycleAndDiamond(t *testing.T) {
	m := loadString(t, cyclicDoc)
	c, err := m.Category("Root")
	require.NoError(t, err)

	shapes := m.ResolveReferencedShapes(c)

	var names []string
	for _, s := range shapes {
		names = append(names, s.Name)
	}
	// A and B both lead to C, and C leads back to A.
	assert.ElementsMatch(t, []string{"A", "B", "C"}, names)
	assert.Len(t, names, 3, "each shape appears once")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "duplicate field",
			doc: `
categories:
  - name: X
    fields:
      - {name: a, data_type: String, requirement: Required}
      - {name: a, data_type: String, requirement: Optional}`,
			want: "duplicate field",
		},
		{
			name: "unknown shape",
			doc: `
categories:
  - name: X
    fields:
      - {name: a, data_type: Mystery, requirement: Required}`,
			want: "neither a primitive nor a known shape",
		},
		{
			name: "unknown array shape",
			doc: `
categories:
  - name: X
    fields:
      - {name: a, data_type: Mystery Array, requirement: Required}`,
			want: "unknown shape",
		},
		{
			name: "bad requirement",
			doc: `
categories:
  - name: X
    fields:
      - {name: a, data_type: String, requirement: Sometimes}`,
			want: "invalid requirement",
		},
		{
			name: "duplicate category",
			doc: `
categories:
  - {name: X, fields: []}
  - {name: X, fields: []}`,
			want: "duplicate category",
		},
		{
			name: "unknown key",
			doc:  `colours: [red]`,
			want: "failed to decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestField_Conforms(t *testing.T) {
	tests := []struct {
		dataType string
		value    any
		want     bool
	}{
		{"Integer", int64(3), true},
		{"Integer", float64(3), true},
		{"Integer", 3.5, false},
		{"Integer", "3", false},
		{"String", "x", true},
		{"String", 1, false},
		{"Float", 1.5, true},
		{"Boolean", true, true},
		{"Boolean", "true", false},
		{"JSON", []any{1}, true},
		{"Timestamp", int64(1700000000000), true},
	}

	for _, tt := range tests {
		f := &Field{DataType: tt.dataType}
		assert.Equal(t, tt.want, f.Conforms(tt.value), "%s %v", tt.dataType, tt.value)
	}
}

func TestModel_JSONSchema(t *testing.T) {
	m, err := Builtin(DefaultVersion)
	require.NoError(t, err)

	c, err := m.Category("HTTP Activity")
	require.NoError(t, err)

	s := m.JSONSchema(c)
	assert.Equal(t, "HTTP Activity", s.Title)
	assert.Equal(t, "object", s.Type)
	assert.Contains(t, s.Required, "class_uid")
	assert.Equal(t, "#/$defs/HTTP Request", s.Properties["http_request"].Ref)
	require.Contains(t, s.Defs, "HTTP Header")

	headers := s.Defs["HTTP Request"].Properties["http_headers"]
	assert.Equal(t, "array", headers.Type)
	assert.Equal(t, "#/$defs/HTTP Header", headers.Items.Ref)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"$defs"`)
}
