package coding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirListBuildsTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))

	result := DirList(root, 0, false)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "a.txt")
	require.Contains(t, result.ForLLM, "sub/")
	require.Contains(t, result.ForLLM, "b.txt")
	require.NotContains(t, result.ForLLM, ".hidden")
}

func TestDirListShowHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))

	result := DirList(root, 0, true)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, ".hidden")
}

func TestDirListRejectsNonDir(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	result := DirList(file, 0, false)
	require.Error(t, result.Err)
}

func TestDirListMaxDepth(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "deep.txt"), []byte("x"), 0o644))

	result := DirList(root, 1, false)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "a/")
	require.NotContains(t, result.ForLLM, "deep.txt")
}
