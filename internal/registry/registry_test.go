package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/model"
)

func TestRegisterBuiltinsThenAllTables(t *testing.T) {
	r := New(nil)
	r.RegisterBuiltins()
	r.RegisterFileTools()
	r.RegisterCodingTools()
	r.RegisterAgentTools()

	entry, ok := r.Get("write_file")
	require.True(t, ok)
	require.Equal(t, TagFile, entry.Tag)

	entry, ok = r.Get("shell_exec")
	require.True(t, ok)
	require.Equal(t, TagCoding, entry.Tag)

	entry, ok = r.Get("spawn_agent")
	require.True(t, ok)
	require.Equal(t, TagAgent, entry.Tag)
	require.True(t, entry.Tool.Metadata.FlowControl)

	entry, ok = r.Get("update_todos")
	require.True(t, ok)
	require.Equal(t, TagBuiltin, entry.Tag)
}

func TestDuplicateRegistrationFirstWins(t *testing.T) {
	r := New(nil)
	r.Register(model.Tool{Name: "dup", Description: "first"}, TagBuiltin)
	r.Register(model.Tool{Name: "dup", Description: "second"}, TagFile)

	entry, ok := r.Get("dup")
	require.True(t, ok)
	require.Equal(t, "first", entry.Tool.Description)
	require.Equal(t, TagBuiltin, entry.Tag)
}

func TestBuildAPIToolsIncludesEveryRegisteredName(t *testing.T) {
	r := New(nil)
	r.RegisterBuiltins()
	r.RegisterCodingTools()

	apiTools := r.BuildAPITools(context.Background())
	names := map[string]bool{}
	for _, at := range apiTools {
		names[at.Function.Name] = true
	}
	require.True(t, names["model_info"])
	require.True(t, names["grep_files"])
}
