package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{name: "auto on terminal", mode: ModeAuto, isTTY: true, want: ModeText},
		{name: "auto piped", mode: ModeAuto, isTTY: false, want: ModeMarkdown},
		{name: "empty is auto", mode: "", isTTY: false, want: ModeMarkdown},
		{name: "explicit json", mode: ModeJSON, isTTY: true, want: ModeJSON},
		{name: "explicit text piped", mode: ModeText, isTTY: false, want: ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestTable(t *testing.T) {
	headers := []string{"SEVERITY", "MESSAGE"}
	rows := [][]string{{"info", "Loaded"}, {"warning", "a | b"}}

	t.Run("markdown", func(t *testing.T) {
		out := &bytes.Buffer{}
		NewRendererWithTTY(out, out, false, ModeMarkdown).Table(headers, rows)
		assert.Equal(t, "| SEVERITY | MESSAGE |\n| --- | --- |\n| info | Loaded |\n| warning | a \\| b |\n\n", out.String())
	})

	t.Run("text", func(t *testing.T) {
		out := &bytes.Buffer{}
		NewRendererWithTTY(out, out, false, ModeText).Table(headers, rows)
		assert.Contains(t, out.String(), "SEVERITY")
		assert.Contains(t, out.String(), "Loaded")
		assert.Contains(t, out.String(), "┌")
	})

	t.Run("empty", func(t *testing.T) {
		out := &bytes.Buffer{}
		NewRendererWithTTY(out, out, false, ModeText).Table(headers, nil)
		assert.Equal(t, "(0 rows)\n", out.String())
	})
}

func TestStatusAndHeader(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, out, false, ModeMarkdown)
	r.Header(2, "Report")
	r.Status(false, "extract validation")

	assert.Equal(t, "## Report\n\n**FAILED** extract validation\n\n", out.String())
}

func TestStatus_TextWithoutTTYHasNoColor(t *testing.T) {
	out := &bytes.Buffer{}
	NewRendererWithTTY(out, out, false, ModeText).Status(true, "ok")
	assert.Equal(t, "✓ ok\n", out.String())
}

func TestJSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, out, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", out.String())
}

func TestCodeBlock(t *testing.T) {
	out := &bytes.Buffer{}
	NewRendererWithTTY(out, out, false, ModeMarkdown).CodeBlock("python", "x = 1\n")
	assert.Equal(t, "```python\nx = 1\n```\n\n", out.String())
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
}
