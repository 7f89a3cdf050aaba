// Package hooks implements Chibi's hook points (spec §4.8): a fixed,
// case-sensitive enumeration of snake_case names, each firing as a list of
// subprocess (or in-process) handlers whose results the caller inspects.
// Grounded on original_source/crates/chibi-core/src/tools/hooks.rs and the
// teacher's env-driven plugin invocation convention (CHIBI_TOOL_NAME style).
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"github.com/chibi-cli/chibi/internal/logx"
)

// Point is one of the fixed hook point names. Values are matched
// case-sensitively as snake_case strings at the plugin interface.
type Point string

const (
	OnStart             Point = "on_start"
	OnEnd               Point = "on_end"
	PreMessage          Point = "pre_message"
	PostMessage         Point = "post_message"
	PreTool             Point = "pre_tool"
	PostTool            Point = "post_tool"
	PreToolOutput       Point = "pre_tool_output"
	PostToolOutput      Point = "post_tool_output"
	PreClear            Point = "pre_clear"
	PostClear           Point = "post_clear"
	PreCompact          Point = "pre_compact"
	PostCompact         Point = "post_compact"
	PreRollingCompact   Point = "pre_rolling_compact"
	PostRollingCompact  Point = "post_rolling_compact"
	PreSystemPrompt     Point = "pre_system_prompt"
	PostSystemPrompt    Point = "post_system_prompt"
	PreSendMessage      Point = "pre_send_message"
	PostSendMessage     Point = "post_send_message"
	PreCacheOutput      Point = "pre_cache_output"
	PostCacheOutput     Point = "post_cache_output"
	PreApiTools         Point = "pre_api_tools"
	PreApiRequest       Point = "pre_api_request"
	PreAgenticLoop      Point = "pre_agentic_loop"
	PostToolBatch       Point = "post_tool_batch"
	PreFileWrite        Point = "pre_file_write"
	PreIndexFile        Point = "pre_index_file"
	PostIndexFile       Point = "post_index_file"
)

// AllPoints enumerates every valid hook point, for registry subscription
// validation.
var AllPoints = []Point{
	OnStart, OnEnd, PreMessage, PostMessage, PreTool, PostTool, PreToolOutput,
	PostToolOutput, PreClear, PostClear, PreCompact, PostCompact,
	PreRollingCompact, PostRollingCompact, PreSystemPrompt, PostSystemPrompt,
	PreSendMessage, PostSendMessage, PreCacheOutput, PostCacheOutput,
	PreApiTools, PreApiRequest, PreAgenticLoop, PostToolBatch, PreFileWrite,
	PreIndexFile, PostIndexFile,
}

// Result is one hook's return value paired with the name of the subscriber
// that produced it.
type Result struct {
	ToolName string
	Value    any
}

// NativeHook is the in-process escape hatch from spec §9's design note: a
// same-language extension can subscribe without paying the subprocess cost.
type NativeHook interface {
	Name() string
	Points() []Point
	Invoke(ctx context.Context, point Point, payload any) (any, error)
}

// ProcessHook is a subscriber backed by an external executable, invoked with
// CHIBI_HOOK / CHIBI_HOOK_DATA per spec §6.
type ProcessHook struct {
	ToolName   string
	Executable string
	Points     []Point
	Env        map[string]string
	Timeout    time.Duration
}

// Registry dispatches hook points to their subscribers.
type Registry struct {
	native  map[Point][]NativeHook
	process map[Point][]ProcessHook
}

// NewRegistry returns an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{native: map[Point][]NativeHook{}, process: map[Point][]ProcessHook{}}
}

// RegisterNative subscribes an in-process hook to all of its declared points.
func (r *Registry) RegisterNative(h NativeHook) {
	for _, p := range h.Points() {
		r.native[p] = append(r.native[p], h)
	}
}

// RegisterProcess subscribes a subprocess hook to all of its declared points.
func (r *Registry) RegisterProcess(h ProcessHook) {
	for _, p := range h.Points {
		r.process[p] = append(r.process[p], h)
	}
}

// Fire invokes every subscriber of point with payload and collects their
// results. Hook failures are logged and ignored (spec §7): a broken or
// nonzero-exit subprocess hook never aborts the core flow; it simply
// contributes no result.
func (r *Registry) Fire(ctx context.Context, point Point, payload any) []Result {
	var results []Result

	for _, h := range r.native[point] {
		val, err := h.Invoke(ctx, point, payload)
		if err != nil {
			logx.WarnCF("hooks", "native hook failed", map[string]any{
				"hook": h.Name(), "point": string(point), "error": err.Error(),
			})
			continue
		}
		results = append(results, Result{ToolName: h.Name(), Value: val})
	}

	for _, h := range r.process[point] {
		val, err := runProcessHook(ctx, h, point, payload)
		if err != nil {
			logx.WarnCF("hooks", "process hook failed", map[string]any{
				"hook": h.ToolName, "point": string(point), "error": err.Error(),
			})
			continue
		}
		if val != nil {
			results = append(results, Result{ToolName: h.ToolName, Value: val})
		}
	}

	return results
}

func runProcessHook(ctx context.Context, h ProcessHook, point Point, payload any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	timeout := h.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, h.Executable)
	cmd.Env = append(os.Environ(),
		"CHIBI_HOOK="+string(point),
		"CHIBI_HOOK_DATA="+string(data),
	)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, err
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, nil
	}
	var asJSON any
	if err := json.Unmarshal(out, &asJSON); err == nil {
		return asJSON, nil
	}
	// Non-JSON stdout is wrapped as a plain string.
	return string(out), nil
}
