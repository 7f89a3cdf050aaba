package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadGlobalMissingReturnsDefaults(t *testing.T) {
	g, err := LoadGlobal(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, Defaults().Fuel, g.Fuel)
}

func TestLoadGlobalParsesTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
fuel = 20
default_model = "gpt-5"
verbose = true
`), 0o644))

	g, err := LoadGlobal(dir)
	require.NoError(t, err)
	require.Equal(t, 20, g.Fuel)
	require.Equal(t, "gpt-5", g.DefaultModel)
	require.True(t, g.Verbose)
}

func TestLocalOverridesApplyOverGlobal(t *testing.T) {
	dir := t.TempDir()
	model := "claude"
	fuel := 3
	require.NoError(t, SaveLocal(dir, Local{DefaultModel: &model, Fuel: &fuel}))

	l, err := LoadLocal(dir)
	require.NoError(t, err)
	g := applyLocal(Defaults(), l)
	require.Equal(t, "claude", g.DefaultModel)
	require.Equal(t, 3, g.Fuel)
}

func TestApplyOverridesFromPairs(t *testing.T) {
	g := ApplyOverridesFromPairs(Defaults(), map[string]string{
		"fuel":                   "7",
		"verbose":                "true",
		"auto_compact_threshold": "0.5",
		"unknown_key_is_ignored": "x",
	})
	require.Equal(t, 7, g.Fuel)
	require.True(t, g.Verbose)
	require.Equal(t, 0.5, g.AutoCompactThreshold)
}

func TestApplyEnvOverlay(t *testing.T) {
	t.Setenv("CHIBI_FUEL", "42")
	g, err := ApplyEnv(Defaults())
	require.NoError(t, err)
	require.Equal(t, 42, g.Fuel)
}

func TestResolveFullMergeOrder(t *testing.T) {
	chibiHome := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(chibiHome, "config.toml"), []byte("fuel = 10\n"), 0o644))

	contextDir := t.TempDir()
	fuel := 5
	require.NoError(t, SaveLocal(contextDir, Local{Fuel: &fuel}))

	t.Setenv("CHIBI_FUEL", "99")

	cfg, err := Resolve(chibiHome, contextDir, map[string]string{"verbose": "true"})
	require.NoError(t, err)
	require.Equal(t, 99, cfg.Fuel) // env wins over everything
	require.True(t, cfg.Verbose)
}
