package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
)

// schemaResponse is one tool definition as emitted by `<exe> --schema`.
type schemaResponse struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Parameters    map[string]any `json:"parameters"`
	Hooks         []string       `json:"hooks"`
	Metadata      *schemaMeta    `json:"metadata"`
	SummaryParams []string       `json:"summary_params"`
}

type schemaMeta struct {
	Parallel    bool `json:"parallel"`
	FlowControl bool `json:"flow_control"`
	EndsTurn    bool `json:"ends_turn"`
}

// PluginExecutable pairs a plugin's display name with the executable path
// used to invoke it.
type PluginExecutable struct {
	Name string
	Path string
}

// DiscoverPluginExecutables walks pluginsDir. Each entry is either an
// executable file or a directory containing a like-named executable.
// Entries named "*.disabled" (or containing ".disabled" as a path
// component) are skipped.
func DiscoverPluginExecutables(pluginsDir string) ([]PluginExecutable, error) {
	entries, err := os.ReadDir(pluginsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read plugins dir: %w", err)
	}

	var out []PluginExecutable
	for _, e := range entries {
		if strings.Contains(e.Name(), ".disabled") {
			continue
		}
		full := filepath.Join(pluginsDir, e.Name())
		if e.IsDir() {
			inner := filepath.Join(full, e.Name())
			if info, err := os.Stat(inner); err == nil && !info.IsDir() && isExecutable(info.Mode()) {
				out = append(out, PluginExecutable{Name: e.Name(), Path: inner})
			}
			continue
		}
		info, err := e.Info()
		if err != nil || !isExecutable(info.Mode()) {
			continue
		}
		out = append(out, PluginExecutable{Name: e.Name(), Path: full})
	}
	return out, nil
}

func isExecutable(mode os.FileMode) bool {
	return mode&0o111 != 0
}

// LoadSchema runs exe --schema and parses its stdout as a single tool object
// or an array of objects.
func LoadSchema(ctx context.Context, exe PluginExecutable, timeout time.Duration) ([]model.Tool, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, exe.Path, "--schema")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("registry: %s --schema: %w", exe.Path, err)
	}

	raw := bytes.TrimSpace(stdout.Bytes())
	var single schemaResponse
	if err := json.Unmarshal(raw, &single); err == nil && single.Name != "" {
		return []model.Tool{toModelTool(single, exe.Path)}, nil
	}

	var multi []schemaResponse
	if err := json.Unmarshal(raw, &multi); err != nil {
		return nil, fmt.Errorf("registry: parse schema from %s: %w", exe.Path, err)
	}
	tools := make([]model.Tool, 0, len(multi))
	for _, s := range multi {
		tools = append(tools, toModelTool(s, exe.Path))
	}
	return tools, nil
}

func toModelTool(s schemaResponse, path string) model.Tool {
	meta := model.ToolMetadata{}
	if s.Metadata != nil {
		meta = model.ToolMetadata{Parallel: s.Metadata.Parallel, FlowControl: s.Metadata.FlowControl, EndsTurn: s.Metadata.EndsTurn}
	}
	return model.Tool{
		Name:           s.Name,
		Description:    s.Description,
		Parameters:     s.Parameters,
		InvocationPath: path,
		Hooks:          s.Hooks,
		Metadata:       meta,
		SummaryParams:  s.SummaryParams,
	}
}

// DiscoverAndRegisterPlugins walks pluginsDir, loads each executable's
// schema, and registers every resulting tool under TagPlugin. A plugin
// whose schema cannot be parsed is skipped with a warning — it never aborts
// discovery for the rest of the directory.
func (r *Registry) DiscoverAndRegisterPlugins(ctx context.Context, pluginsDir string, timeout time.Duration) {
	execs, err := DiscoverPluginExecutables(pluginsDir)
	if err != nil {
		logx.WarnCF("registry", "plugin discovery failed", map[string]any{"error": err.Error()})
		return
	}
	for _, exe := range execs {
		tools, err := LoadSchema(ctx, exe, timeout)
		if err != nil {
			logx.WarnCF("registry", "plugin schema load failed", map[string]any{"plugin": exe.Name, "error": err.Error()})
			continue
		}
		for _, t := range tools {
			r.Register(t, TagPlugin)
		}
	}
}
