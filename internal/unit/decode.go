package unit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Unmarshal decodes a JSON or YAML document into v. YAML is converted to
// JSON first so the json tags, and report's JSON form, apply to both.
func Unmarshal(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return json.Unmarshal(trimmed, v)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert YAML document: %w", err)
	}
	return json.Unmarshal(converted, v)
}

// ReadFile decodes the JSON or YAML file at path into v.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided by design
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// WriteFile writes v to path as indented JSON.
func WriteFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Manifest describes a batch of transformer candidates for one input.
type Manifest struct {
	Category   string         `json:"category"`
	Input      string         `json:"input"`
	Candidates []*Transformer `json:"candidates"`
	// Include lists transformer files, relative to the manifest.
	Include []string `json:"include"`
}

// LoadManifest reads a manifest and appends the included transformers to its
// candidates.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := ReadFile(path, &m); err != nil {
		return nil, err
	}
	if m.Category == "" {
		return nil, fmt.Errorf("manifest %s: category is required", path)
	}

	dir := filepath.Dir(path)
	for _, inc := range m.Include {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(dir, inc)
		}
		var t Transformer
		if err := ReadFile(inc, &t); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		if t.ID == "" {
			t.ID = filepath.Base(inc)
		}
		m.Candidates = append(m.Candidates, &t)
	}
	if len(m.Candidates) == 0 {
		return nil, fmt.Errorf("manifest %s: no candidates", path)
	}
	return &m, nil
}
