// Package registry implements the Tool Registry (spec §4.6): discovery of
// plugin-process tools, registration of built-ins, and the API-surface view
// handed to the model each turn. Per spec §9's design note, dispatch
// category is stored as an explicit Tag at registration time rather than
// inferred from the tool's name/path at call time.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
)

// Tag is the closed set of dispatch categories a tool belongs to.
type Tag int

const (
	TagBuiltin Tag = iota
	TagPlugin
	TagFile
	TagCoding
	TagAgent
	TagMCP
)

func (t Tag) String() string {
	switch t {
	case TagBuiltin:
		return "builtin"
	case TagPlugin:
		return "plugin"
	case TagFile:
		return "file"
	case TagCoding:
		return "coding"
	case TagAgent:
		return "agent"
	case TagMCP:
		return "mcp"
	default:
		return "unknown"
	}
}

// Entry is one registered tool: its declared metadata plus its dispatch tag.
type Entry struct {
	Tool model.Tool
	Tag  Tag
}

// Registry holds every tool known to the process, keyed by name. Names
// collide first-wins, with a warning (spec §3).
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Entry
	order   []string
	hookReg *hooks.Registry
}

// New returns an empty Registry. hookReg may be nil if no hooks are wired.
func New(hookReg *hooks.Registry) *Registry {
	return &Registry{byName: map[string]Entry{}, hookReg: hookReg}
}

// Register adds tool under tag. If a tool with the same name already
// exists, the new registration is dropped and a warning logged.
func (r *Registry) Register(tool model.Tool, tag Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[tool.Name]; exists {
		logx.WarnCF("registry", "duplicate tool name, first registration wins", map[string]any{"name": tool.Name})
		return
	}
	r.byName[tool.Name] = Entry{Tool: tool, Tag: tag}
	r.order = append(r.order, tool.Name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// List returns every registered entry in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// APIToolFunction is the OpenAI-style function descriptor for one tool.
type APIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// APITool is the OpenAI-style {type:"function", function:{...}} wrapper sent
// to the model each turn (spec §4.6).
type APITool struct {
	Type     string          `json:"type"`
	Function APIToolFunction `json:"function"`
}

// BuildAPITools renders the current registry as the tools array sent with a
// model request, after giving any PreApiTools hook a chance to filter it
// (e.g. stripping gated tools in read-only mode). A hook result must be a
// []any of tool names to keep; any other shape is ignored.
func (r *Registry) BuildAPITools(ctx context.Context) []APITool {
	entries := r.List()

	allowed := map[string]bool{}
	filtered := false
	if r.hookReg != nil {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Tool.Name
		}
		results := r.hookReg.Fire(ctx, hooks.PreApiTools, map[string]any{"tools": names})
		for _, res := range results {
			if list, ok := res.Value.([]any); ok {
				filtered = true
				for _, v := range list {
					if s, ok := v.(string); ok {
						allowed[s] = true
					}
				}
			}
		}
	}

	out := make([]APITool, 0, len(entries))
	for _, e := range entries {
		if filtered && !allowed[e.Tool.Name] {
			continue
		}
		out = append(out, APITool{
			Type: "function",
			Function: APIToolFunction{
				Name:        e.Tool.Name,
				Description: e.Tool.Description,
				Parameters:  e.Tool.Parameters,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Function.Name < out[j].Function.Name })
	return out
}
