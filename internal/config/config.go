// Package config implements the layered configuration system (spec §6, §9
// design note "Mutable global config"): global config.toml, per-context
// local.toml, JSON front-end overrides, and CLI flags combine into one
// ResolvedConfig with a documented, explicit merge order. Grounded on
// other_examples/8b78443e_tchow-twistedxcom-agent-deck__internal-session-userconfig.go.go's
// TOML-load-with-defaults shape, generalized with an env overlay via
// caarlos0/env.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/chibi-cli/chibi/internal/safeio"
)

// Global is the shape of <chibi_home>/config.toml.
type Global struct {
	DefaultModel          string  `toml:"default_model" env:"CHIBI_DEFAULT_MODEL"`
	Fuel                  int     `toml:"fuel" env:"CHIBI_FUEL"`
	FuelEmptyResponseCost int     `toml:"fuel_empty_response_cost" env:"CHIBI_FUEL_EMPTY_RESPONSE_COST"`
	AutoCompactThreshold  float64 `toml:"auto_compact_threshold" env:"CHIBI_AUTO_COMPACT_THRESHOLD"`
	RollingCompactDropPct float64 `toml:"rolling_compact_drop_percentage" env:"CHIBI_ROLLING_COMPACT_DROP_PERCENTAGE"`

	ToolOutputCacheThreshold int   `toml:"tool_output_cache_threshold" env:"CHIBI_TOOL_OUTPUT_CACHE_THRESHOLD"`
	ToolCacheMaxAgeDays      int   `toml:"tool_cache_max_age_days" env:"CHIBI_TOOL_CACHE_MAX_AGE_DAYS"`
	ToolCacheMaxBytes        int64 `toml:"tool_cache_max_bytes" env:"CHIBI_TOOL_CACHE_MAX_BYTES"`

	ContextLockHeartbeatSeconds float64 `toml:"context_lock_heartbeat_seconds" env:"CHIBI_CONTEXT_LOCK_HEARTBEAT_SECONDS"`

	MCPBridgeIdleTimeoutMinutes int `toml:"mcp_bridge_idle_timeout_minutes" env:"CHIBI_MCP_BRIDGE_IDLE_TIMEOUT_MINUTES"`

	Verbose         bool `toml:"verbose" env:"CHIBI_VERBOSE"`
	HideToolCalls   bool `toml:"hide_tool_calls" env:"CHIBI_HIDE_TOOL_CALLS"`
	InteractiveMode bool `toml:"interactive_mode" env:"CHIBI_INTERACTIVE_MODE"`
}

// Defaults returns the built-in fallback values, applied before any file is
// read (spec default fuel "typically 10-20").
func Defaults() Global {
	return Global{
		DefaultModel:                "",
		Fuel:                        15,
		FuelEmptyResponseCost:       1,
		AutoCompactThreshold:        0.85,
		RollingCompactDropPct:       0.5,
		ToolOutputCacheThreshold:    4000,
		ToolCacheMaxAgeDays:         14,
		ToolCacheMaxBytes:           200 * 1024 * 1024,
		ContextLockHeartbeatSeconds: 5,
		MCPBridgeIdleTimeoutMinutes: 30,
		InteractiveMode:             true,
	}
}

// Local is the shape of <context>/local.toml: a sparse per-context override
// of a handful of Global fields. Pointer fields distinguish "unset" from a
// zero value explicitly set by the user.
type Local struct {
	DefaultModel *string  `toml:"default_model,omitempty"`
	Fuel         *int     `toml:"fuel,omitempty"`
	Verbose      *bool    `toml:"verbose,omitempty"`
	AutoCompact  *float64 `toml:"auto_compact_threshold,omitempty"`
}

// ResolvedConfig is the single value every subsystem reads from, the product
// of: Defaults() -> global config.toml -> per-context local.toml -> JSON
// front-end overrides -> environment variables (all applied by Resolve) ->
// CLI flags, which the caller applies afterward and so take the highest
// precedence. No hidden globals; every caller threads a *ResolvedConfig through.
type ResolvedConfig struct {
	Global
}

// LoadGlobal reads <chibi_home>/config.toml over Defaults(); a missing file
// is not an error.
func LoadGlobal(chibiHome string) (Global, error) {
	g := Defaults()
	path := chibiHome + "/config.toml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return g, nil
	}
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return g, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return g, nil
}

// LoadLocal reads <contextDir>/local.toml; a missing file returns a zero
// Local (no overrides).
func LoadLocal(contextDir string) (Local, error) {
	var l Local
	path := contextDir + "/local.toml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return l, nil
	}
	if _, err := toml.DecodeFile(path, &l); err != nil {
		return l, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return l, nil
}

// SaveLocal writes a context's local.toml override file atomically.
func SaveLocal(contextDir string, l Local) error {
	data, err := encodeTOML(l)
	if err != nil {
		return err
	}
	return safeio.AtomicWriteText(contextDir+"/local.toml", data)
}

func encodeTOML(v any) (string, error) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", fmt.Errorf("config: encode toml: %w", err)
	}
	return buf.String(), nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// applyLocal overlays non-nil Local fields onto g.
func applyLocal(g Global, l Local) Global {
	if l.DefaultModel != nil {
		g.DefaultModel = *l.DefaultModel
	}
	if l.Fuel != nil {
		g.Fuel = *l.Fuel
	}
	if l.Verbose != nil {
		g.Verbose = *l.Verbose
	}
	if l.AutoCompact != nil {
		g.AutoCompactThreshold = *l.AutoCompact
	}
	return g
}

// ApplyOverridesFromPairs applies a flat map of string key/value JSON
// front-end overrides onto g, the seam spec §9 asks for explicitly. Unknown
// keys are ignored; malformed numeric/bool values are ignored per key
// (best-effort, matching the "no hidden globals, but never fatal on a
// front-end typo" policy).
func ApplyOverridesFromPairs(g Global, pairs map[string]string) Global {
	for k, v := range pairs {
		switch k {
		case "default_model":
			g.DefaultModel = v
		case "fuel":
			if n, err := parseInt(v); err == nil {
				g.Fuel = n
			}
		case "verbose":
			g.Verbose = v == "true" || v == "1"
		case "hide_tool_calls":
			g.HideToolCalls = v == "true" || v == "1"
		case "auto_compact_threshold":
			if f, err := parseFloat(v); err == nil {
				g.AutoCompactThreshold = f
			}
		}
	}
	return g
}

// ApplyEnv overlays environment variables per each field's `env` struct tag,
// the highest-precedence layer.
func ApplyEnv(g Global) (Global, error) {
	if err := env.Parse(&g); err != nil {
		return g, fmt.Errorf("config: env overlay: %w", err)
	}
	return g, nil
}

// Resolve runs the full merge order: defaults -> global file -> local file
// -> JSON overrides -> env. CLI flags are applied by the caller afterward
// via whatever cobra flags it bound, since those are command-specific.
func Resolve(chibiHome, contextDir string, jsonOverrides map[string]string) (*ResolvedConfig, error) {
	g, err := LoadGlobal(chibiHome)
	if err != nil {
		return nil, err
	}

	if contextDir != "" {
		l, err := LoadLocal(contextDir)
		if err != nil {
			return nil, err
		}
		g = applyLocal(g, l)
	}

	g = ApplyOverridesFromPairs(g, jsonOverrides)

	g, err = ApplyEnv(g)
	if err != nil {
		return nil, err
	}

	return &ResolvedConfig{Global: g}, nil
}
