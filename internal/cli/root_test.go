package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapocsf/internal/cli/commands"
	"github.com/leapstack-labs/leapocsf/internal/cli/config"
	"github.com/leapstack-labs/leapocsf/internal/cli/testutil"
)

const userPattern = `
id: username
mapping:
  id: m1
  entities:
    - value: alice
      description: the user logging in
  ocsf_path: user.name
dependency_setup: load("re", "re")
extract_logic: |
  def extract(input_data):
      return re.search(r"user=(\w+)", input_data).group(1)
transform_logic: |
  def transform(value):
      return value
`

const wrongEntityPattern = `
id: wrong
mapping:
  entities:
    - value: bob
dependency_setup: ""
extract_logic: |
  def extract(input_data):
      return "alice"
transform_logic: |
  def transform(value):
      return value
`

const goodTransformer = `
id: auth
dependency_setup: load("re", "re")
transformer_logic: |
  def transformer(input_data):
      return {
          "activity_id": 1,
          "category_uid": 3,
          "class_uid": 3002,
          "severity_id": 1,
          "time": 1700000000000,
          "type_uid": 300201,
          "user": {"name": re.search(r"user=(\w+)", input_data).group(1)},
      }
`

const badTransformer = `
id: partial
dependency_setup: ""
transformer_logic: |
  def transformer(input_data):
      return {"class_uid": 3002, "made_up": True}
`

const manifest = `
category: Authentication
input: "user=alice action=login"
include:
  - bad.yaml
  - good.yaml
`

// runCLI executes the root command in dir and returns stdout and the error.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Chdir(dir)

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func setupProject(t *testing.T) string {
	t.Helper()
	return testutil.SetupTestProject(t, map[string]string{
		"username.yaml": userPattern,
		"wrong.yaml":    wrongEntityPattern,
		"good.yaml":     goodTransformer,
		"bad.yaml":      badTransformer,
		"manifest.yaml": manifest,
		"sample.log":    "user=alice action=login\n",
	})
}

func reportJSON(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), "output: %s", out)
	return m
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapocsf v"+Version)
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--help")
	require.NoError(t, err)

	for _, expected := range []string{"validate", "batch", "feedback", "compose", "schema", "history", "completion"} {
		assert.Contains(t, out, expected)
	}
}

func TestValidateEntity(t *testing.T) {
	dir := setupProject(t)

	out, err := runCLI(t, dir, "validate", "entity", "-p", "username.yaml", "-i", "@sample.log")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "**PASSED**")
	assert.Contains(t, out, "The extract output matches the entity value: 'alice'")
	assert.Contains(t, out, "| info | Extract output is valid |")
}

func TestValidateEntity_FailureWithFeedback(t *testing.T) {
	dir := setupProject(t)

	out, err := runCLI(t, dir, "validate", "entity", "-p", "wrong.yaml", "-i", "user=alice", "--feedback")
	require.Error(t, err)
	assert.ErrorIs(t, err, commands.ErrValidationFailed)
	assert.Contains(t, out, "**FAILED**")
	assert.Contains(t, out, "<previous_code>")
	assert.Contains(t, out, "passed: false")
}

func TestValidateTransformer_JSON(t *testing.T) {
	dir := setupProject(t)

	out, err := runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "good.yaml",
		"-i", "user=alice", "-o", "json")
	require.NoError(t, err)

	rep := reportJSON(t, out)
	assert.Equal(t, true, rep["passed"])
	assert.Equal(t, "SCHEMA_VALID", rep["stage"])
	assert.Equal(t, map[string]any{"name": "alice"}, rep["output"].(map[string]any)["user"])
}

func TestValidateTransformer_PolicyFlags(t *testing.T) {
	dir := setupProject(t)

	_, err := runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "bad.yaml", "-i", "x")
	require.ErrorIs(t, err, commands.ErrValidationFailed)

	// Missing required fields still fail with unexpected fields tolerated.
	_, err = runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "bad.yaml", "-i", "x",
		"--fail-on-unexpected=false")
	require.ErrorIs(t, err, commands.ErrValidationFailed)

	out, err := runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "bad.yaml", "-i", "x",
		"--fail-on-unexpected=false", "--fail-on-missing=false")
	require.NoError(t, err)
	assert.Contains(t, out, "made_up")
}

func TestValidateTransformer_SaveAndFeedback(t *testing.T) {
	dir := setupProject(t)

	_, err := runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "bad.yaml", "-i", "x", "--save")
	require.ErrorIs(t, err, commands.ErrValidationFailed)

	data, err := os.ReadFile(filepath.Join(dir, "bad.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"validation_report"`)

	out, err := runCLI(t, dir, "feedback", "-f", "bad.yaml", "-c", "Authentication")
	require.NoError(t, err)
	assert.Contains(t, out, "<validation_report>")
	assert.Contains(t, out, "<previous_input_entry>\nx\n</previous_input_entry>")
	assert.Contains(t, out, "<category_schema>")
	assert.Contains(t, out, "made_up")
}

func TestFeedback_RequiresReport(t *testing.T) {
	dir := setupProject(t)

	_, err := runCLI(t, dir, "feedback", "-f", "good.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no validation report")
}

func TestBatch(t *testing.T) {
	dir := setupProject(t)

	out, err := runCLI(t, dir, "batch", "-m", "manifest.yaml", "--reports-dir", "reports")
	require.NoError(t, err)
	assert.Contains(t, out, "| partial | false |")
	assert.Contains(t, out, "| auth | true | SCHEMA_VALID | 0 | 0 |")

	for _, name := range []string{"partial.json", "auth.json"} {
		_, err := os.Stat(filepath.Join(dir, "reports", name))
		assert.NoError(t, err, name)
	}
}

func TestHistory_RecordAndLineage(t *testing.T) {
	dir := setupProject(t)
	statePath := filepath.Join(dir, "state.db")

	out, err := runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "bad.yaml", "-i", "user=alice",
		"--record", "--state", statePath, "-o", "json")
	require.ErrorIs(t, err, commands.ErrValidationFailed)
	first := reportJSON(t, out)["id"].(string)

	out, err = runCLI(t, dir, "validate", "transformer", "-c", "Authentication", "-f", "good.yaml", "-i", "user=alice",
		"--parent", first, "--state", statePath, "-o", "json")
	require.NoError(t, err)
	second := reportJSON(t, out)["id"].(string)

	out, err = runCLI(t, dir, "history", "--state", statePath, "-o", "json")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)

	out, err = runCLI(t, dir, "history", "lineage", second, "--state", statePath, "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0]["id"])
	assert.Equal(t, second, runs[1]["id"])

	out, err = runCLI(t, dir, "history", "show", first, "--state", statePath, "--code")
	require.NoError(t, err)
	assert.Contains(t, out, "**FAILED**")
	assert.Contains(t, out, "made_up")
}

func TestSchemaCommands(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "list", args: []string{"schema", "list"}, want: []string{"Authentication", "3002"}},
		{name: "show required", args: []string{"schema", "show", "Authentication", "--required"}, want: []string{"class_uid", "Required"}},
		{name: "shapes", args: []string{"schema", "shapes", "Authentication"}, want: []string{"## User"}},
		{name: "jsonschema", args: []string{"schema", "jsonschema", "Authentication"}, want: []string{`"class_uid"`, `"required"`}},
		{name: "versions", args: []string{"schema", "versions"}, want: []string{"1.1.0 (active)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, dir, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestSchemaShow_UnknownCategory(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "schema", "show", "authentication")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCompose(t *testing.T) {
	dir := setupProject(t)

	out, err := runCLI(t, dir, "compose", "username.yaml", "--id", "composed", "--out", "composed.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote transformer composed (1 patterns)")

	data, err := os.ReadFile(filepath.Join(dir, "composed.json"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "def transformer(input_data)"))
}

func TestConfigFileIsApplied(t *testing.T) {
	dir := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapocsf.yaml"), []byte("output: json\n"), 0o600))

	out, err := runCLI(t, dir, "validate", "entity", "-p", "username.yaml", "-i", "user=alice")
	require.NoError(t, err)
	assert.Equal(t, true, reportJSON(t, out)["passed"])
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapocsf.yaml"), []byte("runtime: python\n"), 0o600))

	_, err := runCLI(t, dir, "schema", "versions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown runtime")
}
