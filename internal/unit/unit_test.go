package unit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapocsf/internal/sandbox"
)

func TestCode_FileFormat(t *testing.T) {
	tests := []struct {
		name string
		code Code
		want string
	}{
		{
			name: "starlark",
			code: Code{Imports: `load("re", "re")`, Description: "Pulls the user.", Body: "def extract(s):\n    return s\n"},
			want: "load(\"re\", \"re\")\n\n\"\"\"\nPulls the user.\n\"\"\"\n\ndef extract(s):\n    return s\n",
		},
		{
			name: "go",
			code: Code{Language: "Go", Imports: `import "strings"`, Description: "Upper.", Body: "func Extract(s string) string { return strings.ToUpper(s) }"},
			want: "import \"strings\"\n\n/*\nUpper.\n*/\n\nfunc Extract(s string) string { return strings.ToUpper(s) }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.FileFormat())
		})
	}
}

func TestExpectedValue(t *testing.T) {
	var none *EntityMapping
	_, ok := none.ExpectedValue()
	assert.False(t, ok)

	m := &EntityMapping{Entities: []Entity{{Value: "alice"}, {Value: "bob"}}}
	v, ok := m.ExpectedValue()
	require.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestUnmarshal_JSONAndYAML(t *testing.T) {
	jsonDoc := `{
  "id": "p1",
  "mapping": {"id": "m1", "entities": [{"value": "alice", "description": "user"}], "ocsf_path": "user.name", "path_rationale": ""},
  "dependency_setup": "load(\"re\", \"re\")",
  "extract_logic": "def extract(s):\n    return s\n",
  "transform_logic": "def transform(s):\n    return s\n",
  "validation_report": {"input": "x", "output": null, "report_entries": ["a"], "passed": true}
}`
	yamlDoc := `
id: p1
mapping:
  id: m1
  entities:
    - value: alice
      description: user
  ocsf_path: user.name
  path_rationale: ""
dependency_setup: load("re", "re")
extract_logic: |
  def extract(s):
      return s
transform_logic: |
  def transform(s):
      return s
validation_report:
  input: x
  output: null
  report_entries: [a]
  passed: true
`
	for name, doc := range map[string]string{"json": jsonDoc, "yaml": yamlDoc} {
		t.Run(name, func(t *testing.T) {
			var p ExtractionPattern
			require.NoError(t, Unmarshal([]byte(doc), &p))
			assert.Equal(t, "p1", p.ID)
			require.NotNil(t, p.Mapping)
			assert.Equal(t, "user.name", p.Mapping.OCSFPath)
			assert.Equal(t, "def extract(s):\n    return s\n", p.ExtractLogic)
			require.NotNil(t, p.ValidationReport)
			assert.True(t, p.ValidationReport.Passed)
			assert.Equal(t, []string{"a"}, p.ValidationReport.Messages())

			src := p.ExtractSource()
			assert.Equal(t, "p1/extract", src.Filename)
			assert.Equal(t, `load("re", "re")`, src.Preamble)
		})
	}
}

func TestUnmarshal_InvalidYAML(t *testing.T) {
	var tr Transformer
	err := Unmarshal([]byte("id: [unterminated"), &tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestCompose(t *testing.T) {
	patterns := []*ExtractionPattern{
		{
			ID:              "user",
			Mapping:         &EntityMapping{OCSFPath: "user.name"},
			DependencySetup: `load("re", "re")`,
			ExtractLogic:    "def extract(s):\n    return re.search(r\"user=(\\w+)\", s).group(1)\n",
			TransformLogic:  "def transform(s):\n    return s\n",
		},
		{
			ID:              "src",
			Mapping:         &EntityMapping{OCSFPath: "src_endpoint.ip"},
			DependencySetup: `load("re", "re")`,
			ExtractLogic:    "def extract(s):\n    return re.search(r\"src=([\\d.]+)\", s).group(1)\n",
			TransformLogic:  "def transform(s):\n    return s.strip()\n",
		},
	}

	tr, err := Compose("login", patterns)
	require.NoError(t, err)
	assert.Equal(t, "login", tr.ID)
	assert.Equal(t, sandbox.LangStarlark, tr.Language)
	assert.Contains(t, tr.TransformerLogic, "def transformer_user_name(input_data):")
	assert.Contains(t, tr.TransformerLogic, "def transformer_src_endpoint_ip(input_data):")

	u, err := sandbox.NewLoader().Load(context.Background(), tr.Source(), EntryTransformer)
	require.NoError(t, err)
	out, err := u.Invoke(context.Background(), "user=alice src=10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"user":         map[string]any{"name": "alice"},
		"src_endpoint": map[string]any{"ip": "10.0.0.1"},
	}, out)
}

func TestCompose_Errors(t *testing.T) {
	tests := []struct {
		name     string
		patterns []*ExtractionPattern
		wantErr  string
	}{
		{name: "empty", wantErr: "no patterns"},
		{
			name:     "no mapping",
			patterns: []*ExtractionPattern{{ID: "a"}},
			wantErr:  "has no OCSF path",
		},
		{
			name:     "go pattern",
			patterns: []*ExtractionPattern{{ID: "a", Language: "go", Mapping: &EntityMapping{OCSFPath: "x"}}},
			wantErr:  "only starlark patterns",
		},
		{
			name: "duplicate path",
			patterns: []*ExtractionPattern{
				{ID: "a", Mapping: &EntityMapping{OCSFPath: "user.name"}},
				{ID: "b", Mapping: &EntityMapping{OCSFPath: "user.name"}},
			},
			wantErr: "more than one pattern",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose("t", tt.patterns)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(`
dependency_setup: ""
transformer_logic: |
  def transformer(s):
      return {}
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(`
category: Authentication
input: "user=alice"
candidates:
  - id: a
    dependency_setup: ""
    transformer_logic: |
      def transformer(s):
          return {"class_uid": 3002}
include:
  - b.yaml
`), 0o600))

	m, err := LoadManifest(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Authentication", m.Category)
	assert.Equal(t, "user=alice", m.Input)
	require.Len(t, m.Candidates, 2)
	assert.Equal(t, "a", m.Candidates[0].ID)
	assert.Equal(t, "b.yaml", m.Candidates[1].ID)
}

func TestLoadManifest_RequiresCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input": "x", "candidates": [{"id": "a"}]}`), 0o600))
	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category is required")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	in := &Transformer{ID: "t1", TransformerLogic: "def transformer(s):\n    return {}\n"}
	require.NoError(t, WriteFile(path, in))

	var out Transformer
	require.NoError(t, ReadFile(path, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.TransformerLogic, out.TransformerLogic)
	assert.Nil(t, out.ValidationReport)
}
