package toolcache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/vfs"
)

func newTestCache(t *testing.T, threshold int) *Cache {
	t.Helper()
	backend, err := vfs.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return New(vfs.New(backend), nil, threshold)
}

func TestShouldCacheThreshold(t *testing.T) {
	c := newTestCache(t, 100)
	require.False(t, c.ShouldCache("short"))
	require.False(t, c.ShouldCache("   "))
	require.True(t, c.ShouldCache(strings.Repeat("x", 101)))
}

func TestPutReturnsStubStartingWithCachedMarker(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()
	result := strings.Repeat("y", 101)

	stub, entry, err := c.Put(ctx, "ctx1", "my_tool", `{"a":1}`, result, time.Now())
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.True(t, strings.HasPrefix(stub, "[Output cached: vfs:///sys/tool_cache/"))

	uri, ok := StubURI(stub)
	require.True(t, ok)
	require.Contains(t, uri, "ctx1")
}

func TestReadBack(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	result := strings.Repeat("z", 20)

	_, entry, err := c.Put(ctx, "ctx1", "tool", "{}", result, time.Now())
	require.NoError(t, err)

	data, err := c.Read(ctx, "ctx1", entry.ID)
	require.NoError(t, err)
	require.Equal(t, result, string(data))
}

func TestSweepAgesOutOldEntries(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	_, entry, err := c.Put(ctx, "ctx1", "tool", "{}", strings.Repeat("a", 20), old)
	require.NoError(t, err)

	res, err := c.Sweep(ctx, "ctx1", 24*time.Hour, 1<<30, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, res.AgedOut)

	_, err = c.Read(ctx, "ctx1", entry.ID)
	require.Error(t, err)
}

func TestSweepLRUTrimsToMaxBytes(t *testing.T) {
	c := newTestCache(t, 5)
	ctx := context.Background()
	now := time.Now()

	_, e1, err := c.Put(ctx, "ctx1", "tool", `{"i":1}`, strings.Repeat("a", 50), now.Add(-2*time.Minute))
	require.NoError(t, err)
	_, e2, err := c.Put(ctx, "ctx1", "tool", `{"i":2}`, strings.Repeat("b", 50), now.Add(-1*time.Minute))
	require.NoError(t, err)

	res, err := c.Sweep(ctx, "ctx1", 24*time.Hour, 60, now)
	require.NoError(t, err)
	require.Equal(t, 1, res.LRUOut)

	_, err = c.Read(ctx, "ctx1", e1.ID)
	require.Error(t, err, "oldest-accessed entry should be trimmed first")
	_, err = c.Read(ctx, "ctx1", e2.ID)
	require.NoError(t, err)
}
