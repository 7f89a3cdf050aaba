// Package chibi wires every subsystem (safeio, vfs, ctxlock, inbox,
// toolcache, hooks, registry, the concrete tool packages, the context
// engine, the agentic loop, permission gating, the MCP bridge client, and
// the codebase index) into one process-lifetime App, the way
// cmd/picoclaw/main.go composes its subcommands over a shared set of
// long-lived collaborators. Front-ends (cmd/chibi, cmd/chibi-json) depend
// only on this package, never on the leaf internal packages directly.
package chibi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chibi-cli/chibi/internal/config"
	chibictx "github.com/chibi-cli/chibi/internal/context"
	"github.com/chibi-cli/chibi/internal/ctxlock"
	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/inbox"
	"github.com/chibi-cli/chibi/internal/index"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/mcpbridge"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/permission"
	"github.com/chibi-cli/chibi/internal/registry"
	"github.com/chibi-cli/chibi/internal/toolcache"
	"github.com/chibi-cli/chibi/internal/tools/agenttools"
	"github.com/chibi-cli/chibi/internal/tools/filetools"
	"github.com/chibi-cli/chibi/internal/vfs"
)

// Caller is the VFS principal every tool dispatch runs as. Individual
// sub-agent contexts could be given distinct principals in the future; for
// now every in-process caller shares one identity (spec §9 open question:
// VFS ownership is context-scoped by path convention, not by caller
// identity).
const Caller = "agent"

// App is one process's fully wired set of collaborators, built once at
// startup and threaded through every command.
type App struct {
	ChibiHome   string
	ProjectRoot string
	Config      *config.ResolvedConfig

	Hooks      *hooks.Registry
	VFS        *vfs.Vfs
	Inbox      *inbox.Inbox
	ToolCache  *toolcache.Cache
	Gate       *permission.Gate
	Registry   *registry.Registry
	Index      *index.Store
	Gateway    gateway.Client
	MCPAddress string

	fileTools  *filetools.Tools
	agentTools *agenttools.Tools

	currentContextName string
	currentModel       string
}

// BindContext records which context and model the next Dispatch/RunSubAgent
// calls act on. One App is built per process invocation (spec §1: no daemon
// model for the main binary), so this is set once before running a turn
// rather than threaded as a parameter through every tool call.
func (a *App) BindContext(contextName, modelName string) {
	a.currentContextName = contextName
	a.currentModel = modelName
}

// Options bundles the knobs New needs beyond what config.Resolve already
// reads from disk.
type Options struct {
	ChibiHome      string
	ProjectRoot    string
	Gateway        gateway.Client // nil until a front-end injects a transport
	Interactive    bool           // selects InteractivePrompt vs AlwaysApprove
	JSONOverrides  map[string]string
	ContextDirHint string // per-context local.toml, empty at startup before a context is chosen
}

// New builds an App: config resolution, VFS/inbox/cache/registry wiring,
// built-in + plugin + MCP tool discovery, and the permission gate. The
// codebase index is opened lazily by callers that need it (IndexStore).
func New(ctx context.Context, opts Options) (*App, error) {
	if err := os.MkdirAll(opts.ChibiHome, 0o755); err != nil {
		return nil, fmt.Errorf("chibi: mkdir chibi home: %w", err)
	}

	cfg, err := config.Resolve(opts.ChibiHome, opts.ContextDirHint, opts.JSONOverrides)
	if err != nil {
		return nil, fmt.Errorf("chibi: resolve config: %w", err)
	}

	hookReg := hooks.NewRegistry()

	if _, err := chibictx.Sweep(ctx, hookReg, filepath.Join(opts.ChibiHome, "contexts")); err != nil {
		logx.WarnCF("chibi", "auto-destroy sweep failed", map[string]any{"error": err.Error()})
	}

	backend, err := vfs.NewLocalBackend(filepath.Join(opts.ChibiHome, "vfs"))
	if err != nil {
		return nil, fmt.Errorf("chibi: vfs backend: %w", err)
	}
	v := vfs.New(backend)

	ib := inbox.New(filepath.Join(opts.ChibiHome, "contexts"), hookReg)
	cache := toolcache.New(v, hookReg, cfg.ToolOutputCacheThreshold)

	var handler permission.Handler = permission.AlwaysApprove{}
	if opts.Interactive {
		handler = permission.NewInteractivePrompt()
	}
	gate := permission.New(handler, hookReg)

	reg := registry.New(hookReg)
	reg.RegisterBuiltins()
	reg.RegisterFileTools()
	reg.RegisterCodingTools()
	reg.RegisterAgentTools()
	reg.DiscoverAndRegisterPlugins(ctx, filepath.Join(opts.ChibiHome, "plugins"), 10*time.Second)

	var mcpAddress string
	if lf, err := mcpbridge.Discover(opts.ChibiHome); err == nil && lf != nil {
		mcpAddress = lf.Address
		if tools, err := mcpbridge.ListTools(lf.Address); err == nil {
			descs := make([]registry.MCPToolDescriptor, len(tools))
			for i, t := range tools {
				descs[i] = registry.MCPToolDescriptor{Server: t.Server, Tool: t.Tool, Description: t.Description, Parameters: t.Parameters}
			}
			reg.RegisterMCPTools(descs)
		}
	}

	app := &App{
		ChibiHome:   opts.ChibiHome,
		ProjectRoot: opts.ProjectRoot,
		Config:      cfg,
		Hooks:       hookReg,
		VFS:         v,
		Inbox:       ib,
		ToolCache:   cache,
		Gate:        gate,
		Registry:    reg,
		Gateway:     opts.Gateway,
		MCPAddress:  mcpAddress,
	}
	app.fileTools = &filetools.Tools{ProjectRoot: opts.ProjectRoot, VFS: v, Caller: Caller, Gate: gate}
	app.agentTools = &agenttools.Tools{Runner: app, VFS: v, Caller: Caller}
	return app, nil
}

// ContextDir returns the on-disk directory for a named context.
func (a *App) ContextDir(name string) string {
	return filepath.Join(a.ChibiHome, "contexts", name)
}

// LoadContext loads (or creates empty) the named context.
func (a *App) LoadContext(name string) (*model.Context, error) {
	return chibictx.Load(a.ContextDir(name), name)
}

// SystemPrompt assembles the layered system prompt for a context directory,
// per spec §4.7's precedence walk.
func (a *App) SystemPrompt(ctx context.Context, contextDir string) string {
	home, _ := os.UserHomeDir()
	return chibictx.SystemPrompt(ctx, a.Hooks, chibictx.PromptSources{
		Dir:         contextDir,
		HomeDir:     home,
		ChibiHome:   a.ChibiHome,
		ProjectRoot: a.ProjectRoot,
		Cwd:         a.ProjectRoot,
	})
}

// IndexStore lazily opens (and memoizes) the codebase index database under
// ChibiHome.
func (a *App) IndexStore() (*index.Store, error) {
	if a.Index != nil {
		return a.Index, nil
	}
	store, err := index.Open(filepath.Join(a.ChibiHome, "index.sqlite"))
	if err != nil {
		return nil, err
	}
	a.Index = store
	return store, nil
}

// AcquireLock takes the context lock for dir, per spec §4.2. heartbeatSeconds
// matches config.Global's float64 tuning knob; ctxlock itself speaks
// time.Duration.
func (a *App) AcquireLock(dir string, heartbeatSeconds float64) (*ctxlock.Lock, error) {
	return ctxlock.Acquire(dir, time.Duration(heartbeatSeconds*float64(time.Second)))
}

// ConfigureLogging points internal/logx at stderr at the requested level,
// mirroring the teacher's logger.Configure(out, verbose) call shape.
func ConfigureLogging(verbose bool) {
	logx.Configure(os.Stderr, verbose)
}
