package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapocsf/internal/cli/testutil"
	"github.com/leapstack-labs/leapocsf/internal/report"
	itestutil "github.com/leapstack-labs/leapocsf/internal/testutil"
)

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()
	assert.Equal(t, "validate", cmd.Use)

	tests := []struct {
		sub   string
		flags []string
	}{
		{sub: "entity", flags: []string{"input", "pattern", "parent", "save", "feedback"}},
		{sub: "transformer", flags: []string{"input", "transformer", "category", "watch", "parent", "save", "feedback"}},
	}

	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.sub})
			require.NoError(t, err)
			assert.Equal(t, tt.sub, sub.Name())
			assert.NotEmpty(t, sub.Short)
			assert.NotEmpty(t, sub.Example)
			for _, flag := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewBatchCommand(t *testing.T) {
	cmd := NewBatchCommand()

	assert.Equal(t, "batch", cmd.Use)
	for _, flag := range []string{"manifest", "reports-dir", "concurrency", "parent"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewSchemaCommand(t *testing.T) {
	cmd := NewSchemaCommand()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "shapes", "jsonschema", "versions"}, names)
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
	assert.Len(t, cmd.Commands(), 2)
}

func TestReadInput(t *testing.T) {
	dir := testutil.SetupTestProject(t, map[string]string{"in.log": "user=alice\n"})

	tests := []struct {
		name    string
		arg     string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "literal", arg: "user=bob", want: "user=bob"},
		{name: "file", arg: "@" + filepath.Join(dir, "in.log"), want: "user=alice"},
		{name: "stdin", arg: "-", stdin: "from stdin\r\n", want: "from stdin"},
		{name: "missing file", arg: "@" + filepath.Join(dir, "nope"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(tt.stdin))

			got, err := readInput(cmd, tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderReport(t *testing.T) {
	rep := report.New("user=alice")
	rep.Info("Loaded the transformer logic without exceptions")
	rep.Warn("Top level field 'x' present in transform output but not found in category schema")
	rep.SetOutput("x", 1)
	rep.Advance(report.StageStructurallyValid)
	rep.Finish(false)

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, renderReport(tr.Renderer, "Transformer validation t", rep))

		out := tr.Output()
		assert.Contains(t, out, "## Transformer validation t")
		assert.Contains(t, out, "**FAILED** Transformer validation t (failed after STRUCTURALLY_VALID)")
		assert.Contains(t, out, "| warning | Top level field 'x' present")
		assert.Contains(t, out, "```json\n{\n  \"x\": 1\n}\n```")
		testutil.AssertNoANSI(t, out)
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, renderReport(tr.Renderer, "ignored", rep))
		assert.Contains(t, tr.Output(), `"passed": false`)
		assert.Contains(t, tr.Output(), `"failed_at": "STRUCTURALLY_VALID"`)
	})
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transformer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, itestutil.NewTestLogger(t), path, func() { calls <- struct{}{} })
	}()

	// Writes to other files in the directory are ignored.
	deadline := time.After(4 * time.Second)
	for {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
		require.NoError(t, os.WriteFile(path, []byte("b"), 0o600))
		select {
		case <-calls:
			cancel()
			assert.NoError(t, <-done)
			return
		case <-time.After(300 * time.Millisecond):
		case <-deadline:
			t.Fatal("no change observed")
		}
	}
}

func TestGetConfigDefaults(t *testing.T) {
	cfg := getConfig()
	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.OCSFVersion)
}
