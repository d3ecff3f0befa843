package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestFromStarlark_CollidingKeys(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dict := starlark.NewDict(2)
	require.NoError(t, dict.SetKey(starlark.MakeInt(1), starlark.String("a")))
	require.NoError(t, dict.SetKey(starlark.String("1"), starlark.String("b")))

	// --- Act ---
	_, err := FromStarlark(dict)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), `collide as "1"`)
}

func TestFromStarlark_NonStringKeys(t *testing.T) {
	t.Parallel()

	dict := starlark.NewDict(2)
	require.NoError(t, dict.SetKey(starlark.MakeInt(1), starlark.String("a")))
	require.NoError(t, dict.SetKey(starlark.String("b"), starlark.MakeInt(2)))

	out, err := FromStarlark(dict)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "a", "b": int64(2)}, out)
}

func TestEngine_CollidingResultKeysFail(t *testing.T) {
	t.Parallel()

	_, err := runEngine(t, "def analyze(d, m, c):\n    return {1: \"a\", \"1\": \"b\"}\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "collide")
}

func TestEngine_RecursionIsAnError(t *testing.T) {
	t.Parallel()

	src := `
def f(n):
    return f(n + 1)

def analyze(d, m, c):
    return f(0)
`

	_, err := runEngine(t, src)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "called recursively")
}
