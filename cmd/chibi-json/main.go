// Command chibi-json is the JSON-over-stdio front-end (spec §6): it reads
// one request document from stdin, performs exactly one operation against a
// chibi.App, writes one JSON response to stdout, and exits. Diagnostics go
// to stderr as JSONL via internal/logx, never to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chibi-cli/chibi/internal/chibi"
	chibictx "github.com/chibi-cli/chibi/internal/context"
	"github.com/chibi-cli/chibi/internal/logx"
)

// request is the shape described in spec §6: {command, context, flags?,
// username?, home?, project_root?, url_policy?, overrides?, config?}.
type request struct {
	Command     string            `json:"command"`
	Context     string            `json:"context"`
	Prompt      string            `json:"prompt,omitempty"`
	ToContext   string            `json:"to_context,omitempty"`
	Username    string            `json:"username,omitempty"`
	Home        string            `json:"home,omitempty"`
	ProjectRoot string            `json:"project_root,omitempty"`
	URLPolicy   string            `json:"url_policy,omitempty"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	Config      map[string]any    `json:"config,omitempty"`
}

type response struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func main() {
	logx.Configure(os.Stderr, false)

	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil && err != io.EOF {
		writeResponse(response{Error: fmt.Sprintf("parse request: %v", err)})
		os.Exit(1)
	}

	res, err := handle(context.Background(), req)
	if err != nil {
		writeResponse(response{Error: err.Error()})
		os.Exit(1)
	}
	writeResponse(response{OK: true, Result: res})
}

func writeResponse(r response) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(r); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func handle(ctx context.Context, req request) (any, error) {
	home := req.Home
	if home == "" {
		home = defaultHome()
	}

	app, err := chibi.New(ctx, chibi.Options{
		ChibiHome:     home,
		ProjectRoot:   req.ProjectRoot,
		Interactive:   false, // JSON front-end is always trust-mode (spec §4.10)
		JSONOverrides: req.Overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	switch req.Command {
	case "list_contexts":
		return listContexts(app)
	case "inspect":
		return inspectContext(app, req.Context)
	case "send_prompt":
		return sendPrompt(ctx, app, req)
	case "spawn_agent":
		return spawnAgent(ctx, app, req)
	case "compact":
		return compactContext(ctx, app, req.Context)
	case "archive":
		return nil, chibictx.Archive(app.ContextDir(req.Context))
	case "destroy":
		return nil, chibictx.Destroy(ctx, app.Hooks, app.ContextDir(req.Context), req.Context)
	case "clear_cache", "cleanup_cache":
		return cleanupCache(ctx, app, req.Context)
	default:
		return nil, fmt.Errorf("unknown command %q", req.Command)
	}
}

func defaultHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chibi")
}

func listContexts(app *chibi.App) (any, error) {
	entries, err := os.ReadDir(filepath.Join(app.ChibiHome, "contexts"))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func inspectContext(app *chibi.App, name string) (any, error) {
	c, err := app.LoadContext(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func sendPrompt(ctx context.Context, app *chibi.App, req request) (any, error) {
	if app.Gateway == nil {
		return nil, fmt.Errorf("no gateway configured for this invocation")
	}
	app.BindContext(req.Context, app.Config.DefaultModel)
	finalText, _, err := app.RunSubAgent(ctx, req.Context, req.Prompt, 0)
	if err != nil {
		return nil, err
	}
	return map[string]any{"final_text": finalText}, nil
}

func spawnAgent(ctx context.Context, app *chibi.App, req request) (any, error) {
	app.BindContext(req.Context, app.Config.DefaultModel)
	finalText, cacheID, err := app.RunSubAgent(ctx, req.ToContext, req.Prompt, 0)
	if err != nil {
		return nil, err
	}
	return map[string]any{"final_text": finalText, "cache_id": cacheID}, nil
}

func compactContext(ctx context.Context, app *chibi.App, name string) (any, error) {
	dir := app.ContextDir(name)
	c, err := app.LoadContext(name)
	if err != nil {
		return nil, err
	}
	if app.Gateway == nil {
		return nil, fmt.Errorf("no gateway configured for this invocation")
	}
	systemPrompt := app.SystemPrompt(ctx, dir)
	if err := chibictx.Manual(ctx, dir, app.Gateway, app.Config.DefaultModel, c, app.Hooks, systemPrompt); err != nil {
		return nil, err
	}
	return map[string]any{"summary": c.Summary}, nil
}

func cleanupCache(ctx context.Context, app *chibi.App, name string) (any, error) {
	maxAge := time.Duration(app.Config.ToolCacheMaxAgeDays) * 24 * time.Hour
	result, err := app.ToolCache.Sweep(ctx, name, maxAge, app.Config.ToolCacheMaxBytes, time.Now())
	if err != nil {
		return nil, err
	}
	return result, nil
}
