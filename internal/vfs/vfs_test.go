package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVfsWritePermissions(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	v := New(backend)
	ctx := context.Background()

	cases := []struct {
		caller string
		path   string
		ok     bool
	}{
		{"alice", "/shared/x", true},
		{"bob", "/shared/x", true},
		{"alice", "/home/alice/x", true},
		{"bob", "/home/alice/x", false},
		{"alice", "/sys/x", false},
		{System, "/sys/x", true},
		{System, "/home/alice/x", true},
		{"alice", "/other/x", false},
	}
	for _, c := range cases {
		p, err := NewPath(c.path)
		require.NoError(t, err)
		err = v.Write(ctx, c.caller, p, []byte("hi"))
		if c.ok {
			require.NoErrorf(t, err, "%s writing %s", c.caller, c.path)
		} else {
			require.Errorf(t, err, "%s writing %s should be denied", c.caller, c.path)
		}
	}
}

func TestVfsReadAlwaysAllowed(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	v := New(backend)
	ctx := context.Background()

	p := MustPath("/home/alice/secret.txt")
	require.NoError(t, v.Write(ctx, "alice", p, []byte("s")))

	data, err := v.Read(ctx, "bob", p)
	require.NoError(t, err)
	require.Equal(t, "s", string(data))
}
