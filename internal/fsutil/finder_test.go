package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubdirectories(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()
	for _, dir := range []string{"b_mod", "a_mod", ".hidden", "target"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, dir), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "target"), filepath.Join(root, "linked")))

	// --- Act ---
	dirs, err := Subdirectories(root)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a_mod"),
		filepath.Join(root, "b_mod"),
		filepath.Join(root, "linked"),
		filepath.Join(root, "target"),
	}, dirs)
}

func TestSubdirectories_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Subdirectories(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(path))
	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
