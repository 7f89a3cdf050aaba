package inbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendAndDrainPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	ib := New(dir, nil)
	ctx := context.Background()

	_, err := ib.Send(ctx, "alice", "bob", "first")
	require.NoError(t, err)
	_, err = ib.Send(ctx, "carol", "bob", "second")
	require.NoError(t, err)

	entries, err := ib.Drain("bob")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Content)
	require.Equal(t, "second", entries[1].Content)

	// Draining again returns nothing — inbox was truncated.
	again, err := ib.Drain("bob")
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestDrainEmptyInboxIsNoop(t *testing.T) {
	dir := t.TempDir()
	ib := New(dir, nil)
	entries, err := ib.Drain("nobody")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFormatForTurn(t *testing.T) {
	require.Empty(t, FormatForTurn(nil))
}
