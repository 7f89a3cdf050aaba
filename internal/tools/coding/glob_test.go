package coding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobFilesMatchesPattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main_test.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("x"), 0o644))

	result := GlobFiles(root, "**/*.go")
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "src/main.go")
	require.Contains(t, result.ForLLM, "src/main_test.go")
	require.NotContains(t, result.ForLLM, "readme.md")
}

func TestGlobFilesHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("ignored/\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ignored"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored", "skip.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.go"), []byte("x"), 0o644))

	result := GlobFiles(root, "**/*.go")
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "keep.go")
	require.NotContains(t, result.ForLLM, "skip.go")
}
