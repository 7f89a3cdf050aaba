package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, st.Files)
	require.False(t, st.Active)
}

func TestUpdateIndexesAndSkipsUnchanged(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))

	res, err := s.Update(context.Background(), root, filepath.Join(root, ".chibi", "plugins"), false, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesIndexed)
	require.Equal(t, 0, res.FilesSkipped)

	res, err = s.Update(context.Background(), root, filepath.Join(root, ".chibi", "plugins"), false, time.Second)
	require.NoError(t, err)
	require.Equal(t, 0, res.FilesIndexed)
	require.Equal(t, 1, res.FilesSkipped)
}

func TestUpdateReindexesOnModify(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	_, err := s.Update(context.Background(), root, "", false, time.Second)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc X() {}\n"), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))

	res, err := s.Update(context.Background(), root, "", false, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesIndexed)
}

func TestUpdateRemovesDeletedFiles(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	_, err := s.Update(context.Background(), root, "", false, time.Second)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	res, err := s.Update(context.Background(), root, "", false, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesRemoved)

	st, err := s.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, st.Files)
}

func TestQuerySymbolsEmptyWithoutPlugin(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))

	_, err := s.Update(context.Background(), root, "", false, time.Second)
	require.NoError(t, err)

	hits, err := s.QuerySymbols(context.Background(), "", "", "")
	require.NoError(t, err)
	require.Empty(t, hits)
}
