package safeio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteNoLeftoverTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")

	require.NoError(t, AtomicWriteText(path, "v1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))

	require.NoError(t, AtomicWriteText(path, "v2"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no .tmp file should remain")
	require.Equal(t, "x", entries[0].Name())
}

func TestAtomicWriteCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.txt")
	require.NoError(t, AtomicWriteText(path, "hi"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hi", string(data))
}

func TestFileLockTryAcquire(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".lock")

	l1 := NewFileLock(path)
	ok, err := l1.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	l2 := NewFileLock(path)
	ok2, err := l2.TryAcquire()
	require.NoError(t, err)
	require.False(t, ok2, "second lock should not be acquirable while first is held")

	require.NoError(t, l1.Release())
	ok3, err := l2.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok3)
	require.NoError(t, l2.Release())
}

func TestAppendLineIsSuffixExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")

	require.NoError(t, AppendLine(path, `{"a":1}`))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, AppendLine(path, `{"a":2}`))
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	require.True(t, len(after) > len(before))
	require.Equal(t, string(before), string(after[:len(before)]))
}
