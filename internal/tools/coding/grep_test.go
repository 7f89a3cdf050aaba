package coding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGrepFilesFindsMatch(t *testing.T) {
	root := t.TempDir()
	content := "line one\nline two\nfindme here\nline four\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte(content), 0o644))

	result := GrepFiles(root, "findme", 0)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "a.txt:3-3:")
	require.Contains(t, result.ForLLM, "findme here")
}

func TestGrepFilesContextLinesMerge(t *testing.T) {
	root := t.TempDir()
	lines := []string{"a", "hit1", "b", "hit2", "c"}
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte(strings.Join(lines, "\n")), 0o644))

	result := GrepFiles(root, "hit", 1)
	require.NoError(t, result.Err)
	// hit1 is line 2 (+-1 => 1-3), hit2 is line 4 (+-1 => 3-5); they overlap
	// and should merge into a single 1-5 range.
	require.Contains(t, result.ForLLM, "a.txt:1-5:")
}

func TestGrepFilesNoMatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("nothing here"), 0o644))

	result := GrepFiles(root, "zzz_not_found", 0)
	require.NoError(t, result.Err)
	require.Empty(t, result.ForLLM)
}

func TestGrepFilesBadPattern(t *testing.T) {
	root := t.TempDir()
	result := GrepFiles(root, "(unclosed", 0)
	require.Error(t, result.Err)
}
