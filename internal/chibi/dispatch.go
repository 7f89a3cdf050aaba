package chibi

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

	chibictx "github.com/chibi-cli/chibi/internal/context"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/loop"
	"github.com/chibi-cli/chibi/internal/mcpbridge"
	"github.com/chibi-cli/chibi/internal/permission"
	"github.com/chibi-cli/chibi/internal/registry"
	"github.com/chibi-cli/chibi/internal/tools"
	"github.com/chibi-cli/chibi/internal/tools/agenttools"
	"github.com/chibi-cli/chibi/internal/tools/coding"
)

// pluginInvokeTimeout bounds a discovered plugin tool's run. It is longer
// than the 10-second --schema probe New gives DiscoverAndRegisterPlugins.
const pluginInvokeTimeout = 30 * time.Second

func argStr(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// Dispatch implements loop.Dispatcher, routing a resolved tool call to its
// concrete package by the registry's recorded Tag (spec §9 design note:
// dispatch category is explicit at registration time, not inferred from
// name/path at call time).
func (a *App) Dispatch(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
	switch entry.Tag {
	case registry.TagBuiltin:
		return a.dispatchBuiltin(ctx, entry.Tool.Name, args)
	case registry.TagFile:
		return a.dispatchFile(ctx, entry.Tool.Name, args)
	case registry.TagCoding:
		return a.dispatchCoding(ctx, entry.Tool.Name, args)
	case registry.TagAgent:
		return a.dispatchAgent(ctx, entry.Tool.Name, args)
	case registry.TagMCP:
		return a.dispatchMCP(entry, args)
	case registry.TagPlugin:
		return a.dispatchPlugin(ctx, entry, args)
	default:
		return tools.ErrorResult("unknown dispatch tag")
	}
}

// dispatchMCP routes an MCP-tagged tool to the bridge's call_tool op, per
// spec §4.12. The registry encodes server/tool in InvocationPath as
// "mcp://<server>/<tool>" (registry.RegisterMCPTools).
func (a *App) dispatchMCP(entry registry.Entry, args map[string]any) *tools.Result {
	server, tool, ok := parseMCPInvocationPath(entry.Tool.InvocationPath)
	if !ok {
		return tools.ErrorResult("mcp tool has no valid invocation path: " + entry.Tool.InvocationPath)
	}
	if a.MCPAddress == "" {
		return tools.ErrorResult("mcp bridge not running")
	}
	result, err := mcpbridge.CallTool(a.MCPAddress, server, tool, args)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	return tools.OK(result)
}

func parseMCPInvocationPath(path string) (server, tool string, ok bool) {
	const prefix = "mcp://"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	parts := strings.SplitN(path[len(prefix):], "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// dispatchPlugin spawns a discovered plugin executable, passing its call
// arguments and process context via CHIBI_TOOL_* environment variables
// (spec §4.6), and returns its trimmed stdout. A non-zero exit is an error
// result carrying stderr.
func (a *App) dispatchPlugin(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
	if entry.Tool.InvocationPath == "" {
		return tools.ErrorResult("plugin tool has no invocation path: " + entry.Tool.Name)
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}

	runCtx, cancel := context.WithTimeout(ctx, pluginInvokeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, entry.Tool.InvocationPath)
	cmd.Env = append(os.Environ(),
		"CHIBI_TOOL_NAME="+entry.Tool.Name,
		"CHIBI_TOOL_ARGS="+string(argsJSON),
		"CHIBI_PROJECT_ROOT="+a.ProjectRoot,
		"CHIBI_INDEX_DB="+filepath.Join(a.ChibiHome, "index.sqlite"),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return tools.ErrorResult(fmt.Sprintf("plugin %s: %v: %s", entry.Tool.Name, err, strings.TrimSpace(stderr.String())))
	}
	return tools.OK(strings.TrimSpace(stdout.String()))
}

func (a *App) dispatchFile(ctx context.Context, name string, args map[string]any) *tools.Result {
	switch name {
	case "write_file":
		return a.fileTools.WriteFile(ctx, argStr(args, "path"), argStr(args, "content"))
	case "file_edit":
		req := coding.EditRequest{
			Op:        coding.EditOp(argStr(args, "op")),
			StartLine: argInt(args, "start", 0),
			EndLine:   argInt(args, "end", 0),
			Content:   argStr(args, "content"),
			Old:       argStr(args, "old"),
			New:       argStr(args, "new"),
		}
		return a.fileTools.FileEdit(ctx, argStr(args, "path"), req)
	case "file_head":
		return a.fileTools.FileHead(ctx, argStr(args, "path"), argInt(args, "n", 10))
	case "file_tail":
		return a.fileTools.FileTail(ctx, argStr(args, "path"), argInt(args, "n", 10))
	case "file_lines":
		return a.fileTools.FileLines(ctx, argStr(args, "path"), argInt(args, "start", 1), argInt(args, "end", 1))
	case "file_grep":
		return a.fileTools.FileGrep(ctx, argStr(args, "path"), argStr(args, "pattern"), argInt(args, "context_lines", 2))
	default:
		return tools.ErrorResult("unknown file tool " + name)
	}
}

func (a *App) dispatchCoding(ctx context.Context, name string, args map[string]any) *tools.Result {
	switch name {
	case "dir_list":
		return coding.DirList(argStr(args, "root"), argInt(args, "max_depth", 3), argBool(args, "show_hidden"))
	case "glob_files":
		return coding.GlobFiles(argStr(args, "root"), argStr(args, "pattern"))
	case "grep_files":
		return coding.GrepFiles(argStr(args, "root"), argStr(args, "pattern"), argInt(args, "context_lines", 2))
	case "shell_exec":
		command := argStr(args, "command")
		if a.Gate != nil && !a.Gate.Check(ctx, hooks.PreFileWrite, permission.Request{Tool: "shell_exec", Operation: "exec", Path: command}) {
			return tools.ErrorResult("permission denied: shell_exec " + command)
		}
		timeout := time.Duration(argInt(args, "timeout_seconds", 30)) * time.Second
		return coding.ShellExec(ctx, command, timeout)
	case "fetch_url":
		maxBytes := int64(argInt(args, "max_bytes", 1<<20))
		timeout := time.Duration(argInt(args, "timeout_seconds", 15)) * time.Second
		return coding.FetchURL(ctx, argStr(args, "url"), maxBytes, timeout)
	case "index_update":
		store, err := a.IndexStore()
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		return coding.IndexUpdate(ctx, store, a.ProjectRoot, pluginsDirFor(a), argBool(args, "force"))
	case "index_query":
		store, err := a.IndexStore()
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		return coding.IndexQuery(ctx, store, argStr(args, "name"), argStr(args, "file"), argStr(args, "kind"), argStr(args, "ref"))
	case "index_status":
		store, err := a.IndexStore()
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		return coding.IndexStatus(ctx, store)
	default:
		return tools.ErrorResult("unknown coding tool " + name)
	}
}

func pluginsDirFor(a *App) string {
	return a.ChibiHome + "/plugins"
}

func (a *App) dispatchAgent(ctx context.Context, name string, args map[string]any) *tools.Result {
	switch name {
	case "spawn_agent":
		return a.agentTools.SpawnAgent(ctx, argStr(args, "context"), argStr(args, "prompt"))
	case "retrieve_content":
		return a.agentTools.RetrieveContent(ctx, argStr(args, "uri"))
	default:
		return tools.ErrorResult("unknown agent tool " + name)
	}
}

func (a *App) dispatchBuiltin(ctx context.Context, name string, args map[string]any) *tools.Result {
	switch name {
	case "update_reflection":
		return a.builtinDocUpdate(chibictx.UpdateReflection, args)
	case "update_todos":
		return a.builtinDocUpdate(chibictx.UpdateTodos, args)
	case "update_goals":
		return a.builtinDocUpdate(chibictx.UpdateGoals, args)
	case "send_message":
		entry, err := a.Inbox.Send(ctx, a.currentContextName, argStr(args, "to_context"), argStr(args, "content"))
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		if entry == nil {
			return tools.OK("delivered via hook interception")
		}
		return tools.OK(fmt.Sprintf("queued message %s to %s", entry.ID, argStr(args, "to_context")))
	case "model_info":
		if a.Gateway == nil {
			return tools.ErrorResult("no gateway configured")
		}
		info, err := a.Gateway.ModelInfo(ctx, a.currentModel)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		return tools.OK(fmt.Sprintf("%+v", info))
	case "call_agent":
		return a.agentTools.SpawnAgent(ctx, argStr(args, "context"), argStr(args, "prompt"))
	case "call_user":
		return tools.OK("turn handed back to user")
	default:
		return tools.ErrorResult("unknown builtin " + name)
	}
}

func (a *App) builtinDocUpdate(fn func(dir, content string) error, args map[string]any) *tools.Result {
	if err := fn(a.ContextDir(a.currentContextName), argStr(args, "content")); err != nil {
		return tools.ErrorResult(err.Error())
	}
	return tools.OK("updated")
}

var _ loop.Dispatcher = (*App)(nil)
var _ agenttools.Runner = (*App)(nil)
