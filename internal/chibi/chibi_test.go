package chibi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/registry"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	home := t.TempDir()
	root := t.TempDir()
	app, err := New(context.Background(), Options{ChibiHome: home, ProjectRoot: root})
	require.NoError(t, err)
	return app
}

func TestNewWiresEveryTool(t *testing.T) {
	app := newTestApp(t)
	for _, name := range []string{"write_file", "shell_exec", "spawn_agent", "update_todos"} {
		_, ok := app.Registry.Get(name)
		require.True(t, ok, name)
	}
}

func TestDispatchWriteFileWritesUnderProjectRoot(t *testing.T) {
	app := newTestApp(t)
	entry, ok := app.Registry.Get("write_file")
	require.True(t, ok)

	res := app.Dispatch(context.Background(), entry, map[string]any{"path": "hello.txt", "content": "hi there"})
	require.Empty(t, res.Err)

	data, err := os.ReadFile(filepath.Join(app.ProjectRoot, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi there", string(data))
}

func TestDispatchBuiltinUpdateTodosWritesContextDocument(t *testing.T) {
	app := newTestApp(t)
	app.BindContext("scratch", "")
	entry, ok := app.Registry.Get("update_todos")
	require.True(t, ok)

	res := app.Dispatch(context.Background(), entry, map[string]any{"content": "- write tests"})
	require.Empty(t, res.Err)

	data, err := os.ReadFile(filepath.Join(app.ContextDir("scratch"), "todos.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "write tests")
}

func TestDispatchMCPWithoutInvocationPathReturnsError(t *testing.T) {
	app := newTestApp(t)
	res := app.Dispatch(context.Background(), registry.Entry{Tag: registry.TagMCP}, nil)
	require.NotEmpty(t, res.Err)
}

func TestRunSubAgentDrivesLoopToFinalText(t *testing.T) {
	app := newTestApp(t)
	app.Gateway = &gateway.Mock{Turns: [][]gateway.Event{{
		{Kind: gateway.EventTextDelta, TextDelta: "all done"},
		{Kind: gateway.EventDone},
	}}}
	app.BindContext("scratch", "test-model")

	final, cacheID, err := app.RunSubAgent(context.Background(), "scratch", "do the thing", 0)
	require.NoError(t, err)
	require.Equal(t, "all done", final)
	require.Empty(t, cacheID)

	reloaded, err := app.LoadContext("scratch")
	require.NoError(t, err)
	require.Len(t, reloaded.Messages, 2)
}
