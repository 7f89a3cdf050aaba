package filetools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/permission"
	"github.com/chibi-cli/chibi/internal/tools/coding"
	"github.com/chibi-cli/chibi/internal/vfs"
)

func newTools(t *testing.T) *Tools {
	t.Helper()
	root := t.TempDir()
	backend, err := vfs.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return &Tools{
		ProjectRoot: root,
		VFS:         vfs.New(backend),
		Caller:      "ctx1",
		Gate:        permission.New(permission.AlwaysApprove{}, nil),
	}
}

func TestWriteFileRealPath(t *testing.T) {
	tl := newTools(t)
	result := tl.WriteFile(context.Background(), "notes.txt", "hello")
	require.NoError(t, result.Err)

	data, err := os.ReadFile(filepath.Join(tl.ProjectRoot, "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestWriteFileVFSPath(t *testing.T) {
	tl := newTools(t)
	result := tl.WriteFile(context.Background(), "vfs:///home/ctx1/notes.txt", "hi")
	require.NoError(t, result.Err)
}

func TestFileHeadTailLines(t *testing.T) {
	tl := newTools(t)
	path := filepath.Join(tl.ProjectRoot, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\ne\n"), 0o644))

	head := tl.FileHead(context.Background(), "data.txt", 2)
	require.NoError(t, head.Err)
	require.Equal(t, "a\nb", head.ForLLM)

	tail := tl.FileTail(context.Background(), "data.txt", 2)
	require.NoError(t, tail.Err)
	require.Equal(t, "d\ne", tail.ForLLM)

	lines := tl.FileLines(context.Background(), "data.txt", 2, 3)
	require.NoError(t, lines.Err)
	require.Equal(t, "b\nc", lines.ForLLM)
}

func TestFileHeadReadsVFSPath(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()
	require.NoError(t, tl.VFS.Write(ctx, tl.Caller, mustPath(t, "/home/ctx1/data.txt"), []byte("a\nb\nc\n")))

	head := tl.FileHead(ctx, "vfs:///home/ctx1/data.txt", 2)
	require.NoError(t, head.Err)
	require.Equal(t, "a\nb", head.ForLLM)
}

func TestFileEditRejectsVFSPath(t *testing.T) {
	tl := newTools(t)
	result := tl.FileEdit(context.Background(), "vfs:///home/ctx1/x", coding.EditRequest{Op: coding.OpReplaceString, Old: "a", New: "b"})
	require.Error(t, result.Err)
}

func TestFileGrepFindsMatch(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(tl.ProjectRoot, "data.txt"), []byte("alpha\nneedle\nbeta\n"), 0o644))

	result := tl.FileGrep(ctx, "data.txt", "needle", 0)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "needle")
}

func TestFileGrepReadsVFSPath(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()
	require.NoError(t, tl.VFS.Write(ctx, tl.Caller, mustPath(t, "/home/ctx1/data.txt"), []byte("alpha\nneedle\nbeta\n")))

	result := tl.FileGrep(ctx, "vfs:///home/ctx1/data.txt", "needle", 0)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "needle")
}

func mustPath(t *testing.T, s string) vfs.Path {
	t.Helper()
	p, err := vfs.NewPath(s)
	require.NoError(t, err)
	return p
}
