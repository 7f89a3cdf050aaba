package mcpbridge

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishAndDiscoverRoundTrip(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, Publish(home, "127.0.0.1:9999"))

	lf, err := Discover(home)
	require.NoError(t, err)
	require.NotNil(t, lf)
	require.Equal(t, "127.0.0.1:9999", lf.Address)
	require.Equal(t, os.Getpid(), lf.PID)
}

func TestDiscoverRemovesStaleLockfile(t *testing.T) {
	home := t.TempDir()
	// PID 999999 is extremely unlikely to be a live process.
	data, err := json.Marshal(Lockfile{PID: 999999, Address: "127.0.0.1:9999", Started: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(LockfilePath(home), data, 0o644))

	lf, err := Discover(home)
	require.NoError(t, err)
	require.Nil(t, lf)

	_, err = os.Stat(LockfilePath(home))
	require.True(t, os.IsNotExist(err))
}

func TestDiscoverAbsentLockfile(t *testing.T) {
	lf, err := Discover(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, lf)
}

func TestServeConnRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ServeConn(conn, func(req Request) Response {
			require.Equal(t, "list_tools", req.Op)
			return Response{OK: true, Tools: []ToolDescriptor{{Server: "s1", Tool: "t1"}}}
		})
	}()

	resp, err := SendRequest(ln.Addr().String(), Request{Op: "list_tools"})
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Len(t, resp.Tools, 1)
	require.Equal(t, "t1", resp.Tools[0].Tool)
}

func TestServeConnMalformedRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	called := false
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ServeConn(conn, func(req Request) Response {
			called = true
			return Response{OK: true}
		})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)
	if tc, ok := conn.(*net.TCPConn); ok {
		require.NoError(t, tc.CloseWrite())
	}

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	conn.Close()

	require.False(t, called)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "malformed request")
}

func TestSummaryCachePutGetAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.jsonl")
	cache, err := LoadSummaryCache(path)
	require.NoError(t, err)

	key := SchemaKey("s1", "t1", map[string]any{"type": "object"})
	_, ok := cache.Get(key)
	require.False(t, ok)

	require.NoError(t, cache.Put(key, "s1", "t1", "does a thing"))
	s, ok := cache.Get(key)
	require.True(t, ok)
	require.Equal(t, "does a thing", s)

	reloaded, err := LoadSummaryCache(path)
	require.NoError(t, err)
	s, ok = reloaded.Get(key)
	require.True(t, ok)
	require.Equal(t, "does a thing", s)
}

func TestSummaryCacheMissingAndApplyTo(t *testing.T) {
	cache, err := LoadSummaryCache(filepath.Join(t.TempDir(), "summaries.jsonl"))
	require.NoError(t, err)

	descs := []ToolDescriptor{
		{Server: "s1", Tool: "t1", Description: "original", Parameters: map[string]any{"a": 1}},
	}
	missing := cache.Missing(descs)
	require.Len(t, missing, 1)

	key := SchemaKey("s1", "t1", map[string]any{"a": 1})
	require.NoError(t, cache.Put(key, "s1", "t1", "summarized"))

	require.Empty(t, cache.Missing(descs))
	applied := cache.ApplyTo(descs)
	require.Equal(t, "summarized", applied[0].Description)
}
