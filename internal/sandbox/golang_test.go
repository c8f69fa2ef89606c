package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRuntime_LoadAndInvoke(t *testing.T) {
	src := Source{
		Language: LangGo,
		Preamble: `import "strings"`,
		Body: `
func Extract(s string) (string, error) {
	return strings.ToUpper(s), nil
}
`,
	}
	unit, err := NewLoader().Load(context.Background(), src, "extract")
	require.NoError(t, err)
	assert.Equal(t, LangGo, unit.Language)

	out, err := unit.Invoke(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "ALICE", out)
}

func TestGoRuntime_MapResult(t *testing.T) {
	src := Source{
		Language: LangGo,
		Body: `
func transform(s string) map[string]interface{} {
	return map[string]interface{}{"user": s, "severity_id": 1}
}
`,
	}
	unit, err := NewLoader().Load(context.Background(), src, "transform")
	require.NoError(t, err)

	out, err := unit.Invoke(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "alice", "severity_id": int64(1)}, out)
}

func TestGoRuntime_ReturnedError(t *testing.T) {
	src := Source{
		Language: LangGo,
		Preamble: `import "fmt"`,
		Body: `
func Extract(s string) (string, error) {
	return "", fmt.Errorf("no user in %q", s)
}
`,
	}
	unit, err := NewLoader().Load(context.Background(), src, "extract")
	require.NoError(t, err)

	_, err = unit.Invoke(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, KindInvocation, KindOf(err))
	assert.Contains(t, err.Error(), `no user in "x"`)
}

func TestGoRuntime_LoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      Source
		wantKind Kind
	}{
		{
			name:     "forbidden import",
			src:      Source{Preamble: `import "os"`, Body: "func Extract(s string) string { return os.Getenv(s) }"},
			wantKind: KindModuleNotAllowed,
		},
		{
			name:     "syntax error",
			src:      Source{Body: "func Extract(s string) string { return s"},
			wantKind: KindInvalidSyntax,
		},
		{
			name:     "missing entry point",
			src:      Source{Body: "func Transform(s string) string { return s }"},
			wantKind: KindMissingEntryPoint,
		},
		{
			name:     "not a function",
			src:      Source{Body: "var Extract = 42"},
			wantKind: KindNotCallable,
		},
		{
			name:     "two parameters",
			src:      Source{Body: "func Extract(a, b string) string { return a }"},
			wantKind: KindBadSignature,
		},
		{
			name:     "second result is not an error",
			src:      Source{Body: "func Extract(s string) (string, int) { return s, 0 }"},
			wantKind: KindBadSignature,
		},
	}

	ld := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.src.Language = LangGo
			unit, err := ld.Load(context.Background(), tt.src, "extract")
			require.Error(t, err)
			assert.Nil(t, unit)
			assert.Equal(t, tt.wantKind, KindOf(err), "kind: %v", err)
		})
	}
}

func TestGoRuntime_PackageClauseKept(t *testing.T) {
	src := Source{
		Language: LangGo,
		Preamble: "package main\n\nimport \"strconv\"",
		Body:     "func Extract(s string) (int, error) { return strconv.Atoi(s) }",
	}
	unit, err := NewLoader().Load(context.Background(), src, "extract")
	require.NoError(t, err)

	out, err := unit.Invoke(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)
}

func TestExported(t *testing.T) {
	assert.Equal(t, "Extract", exported("extract"))
	assert.Equal(t, "Transform", exported("Transform"))
	assert.Equal(t, "", exported(""))
}

func TestGoRuntime_NonFiniteFloat(t *testing.T) {
	src := Source{
		Language: LangGo,
		Preamble: `import "math"`,
		Body: `
func Transform(s string) map[string]interface{} {
	return map[string]interface{}{"ratio": math.NaN()}
}
`,
	}
	unit, err := NewLoader().Load(context.Background(), src, "transform")
	require.NoError(t, err)

	_, err = unit.Invoke(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, KindInvocation, KindOf(err))
	assert.Contains(t, err.Error(), `map key "ratio"`)
}
