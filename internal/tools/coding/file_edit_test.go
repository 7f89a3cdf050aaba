package coding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileEditReplaceLines(t *testing.T) {
	path := writeTemp(t, "one\ntwo\nthree\n")
	result := FileEdit(EditRequest{Path: path, Op: OpReplaceLines, StartLine: 2, EndLine: 2, Content: "TWO"})
	require.NoError(t, result.Err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one\nTWO\nthree\n", string(got))
}

func TestFileEditInsertBeforeAndAfter(t *testing.T) {
	path := writeTemp(t, "one\ntwo\n")
	result := FileEdit(EditRequest{Path: path, Op: OpInsertBefore, StartLine: 2, Content: "mid"})
	require.NoError(t, result.Err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one\nmid\ntwo\n", string(got))

	result = FileEdit(EditRequest{Path: path, Op: OpInsertAfter, StartLine: 3, Content: "last"})
	require.NoError(t, result.Err)
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one\nmid\ntwo\nlast\n", string(got))
}

func TestFileEditDeleteLines(t *testing.T) {
	path := writeTemp(t, "one\ntwo\nthree\n")
	result := FileEdit(EditRequest{Path: path, Op: OpDeleteLines, StartLine: 2, EndLine: 2})
	require.NoError(t, result.Err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one\nthree\n", string(got))
}

func TestFileEditReplaceString(t *testing.T) {
	path := writeTemp(t, "hello world\n")
	result := FileEdit(EditRequest{Path: path, Op: OpReplaceString, Old: "world", New: "chibi"})
	require.NoError(t, result.Err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello chibi\n", string(got))
}

func TestFileEditPreservesNoTrailingNewline(t *testing.T) {
	path := writeTemp(t, "one\ntwo")
	result := FileEdit(EditRequest{Path: path, Op: OpReplaceLines, StartLine: 1, EndLine: 1, Content: "ONE"})
	require.NoError(t, result.Err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "ONE\ntwo", string(got))
}

func TestFileEditOutOfRange(t *testing.T) {
	path := writeTemp(t, "one\ntwo\n")
	result := FileEdit(EditRequest{Path: path, Op: OpReplaceLines, StartLine: 5, EndLine: 5, Content: "x"})
	require.Error(t, result.Err)
}
