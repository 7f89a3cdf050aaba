package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/registry"
	"github.com/chibi-cli/chibi/internal/toolcache"
)

// MaxToolCalls caps the accumulator vector a single turn's stream can grow
// to; overflow aborts the turn with an error (spec §4.9 step 6).
const MaxToolCalls = 100

// Config tunes one Loop's fuel economy and model selection.
type Config struct {
	Model                 string
	Fuel                  int
	FuelEmptyResponseCost int
	AutoCompactThreshold  float64 // fraction of context window
	ContextWindow         int     // model's context window, in tokens; 0 means unknown
}

// CompactFunc rolling-compacts messages when invoked, returning the
// (possibly shortened) replacement list. Wired by the context engine.
type CompactFunc func(ctx context.Context, messages []model.Message) ([]model.Message, error)

// Loop runs the agentic loop (spec §4.9) over one context's message list.
type Loop struct {
	Gateway     gateway.Client
	Registry    *registry.Registry
	Hooks       *hooks.Registry
	Dispatcher  Dispatcher
	Config      Config
	Compact     CompactFunc
	ToolCache   *toolcache.Cache // nil disables the tool output cache entirely
	ContextName string           // owning context, used as the cache's storage key

	onStartOnce sync.Once
}

// toolAccumulator collects one streamed tool call's pieces in arrival order.
type toolAccumulator struct {
	id, name string
	argsBuf  string
}

// Run drives the loop to completion: one or more model turns, each
// possibly followed by a tool-call batch, until the model returns plain
// text, fuel is exhausted, or the sink reports cancellation.
func (l *Loop) Run(ctx context.Context, sink Sink, req Request) error {
	l.onStartOnce.Do(func() {
		if l.Hooks != nil {
			l.Hooks.Fire(ctx, hooks.OnStart, nil)
		}
	})
	if l.Hooks != nil {
		l.Hooks.Fire(ctx, hooks.PreMessage, map[string]any{"prompt": req.Prompt})
	}

	messages := append([]model.Message{}, req.Messages...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: req.Prompt})

	fuel := l.Config.Fuel
	if fuel <= 0 {
		fuel = 15
	}
	fuelCost := l.Config.FuelEmptyResponseCost
	if fuelCost <= 0 {
		fuelCost = 1
	}

	if l.Hooks != nil {
		l.Hooks.Fire(ctx, hooks.PreAgenticLoop, map[string]any{"fuel": fuel})
	}

	exhaustedOnce := false

	for {
		if sink.Cancelled() {
			sink.Emit(ResponseEvent{Kind: EventCancelled})
			return nil
		}

		if l.Compact != nil && l.shouldCompact(messages) {
			compacted, err := l.Compact(ctx, messages)
			if err != nil {
				logx.WarnCF("loop", "rolling compaction failed", map[string]any{"error": err.Error()})
			} else {
				messages = compacted
			}
		}

		apiTools := []registry.APITool{}
		if l.Registry != nil {
			apiTools = l.Registry.BuildAPITools(ctx)
		}
		toolsAny := make([]any, len(apiTools))
		for i, t := range apiTools {
			toolsAny[i] = t
		}

		gwReq := gateway.Request{Model: l.Config.Model, Messages: messages, Tools: toolsAny}
		if l.Hooks != nil {
			l.Hooks.Fire(ctx, hooks.PreApiRequest, gwReq)
		}

		events, err := l.Gateway.StreamChat(ctx, gwReq)
		if err != nil {
			sink.Emit(ResponseEvent{Kind: EventError, Err: err})
			return err
		}

		turn, err := demux(ctx, events, sink)
		if err != nil {
			sink.Emit(ResponseEvent{Kind: EventError, Err: err})
			return err
		}

		if len(turn.toolCalls) == 0 {
			if turn.text != "" {
				messages = append(messages, model.Message{Role: model.RoleAssistant, Content: turn.text})
				if l.Hooks != nil {
					l.Hooks.Fire(ctx, hooks.PostMessage, map[string]any{"content": turn.text})
				}
				sink.Emit(ResponseEvent{Kind: EventFinished, Final: turn.text})
				return nil
			}

			fuel -= fuelCost
			if fuel <= 0 {
				messages = append(messages, model.Message{Role: model.RoleUser, Content: fuelSentinel})
				fuel = l.Config.Fuel
			}
			continue
		}

		messages = l.appendToolCallMessage(messages, turn)

		results, ended, endText := l.runToolBatch(ctx, turn.toolCalls)
		messages = appendToolResults(messages, turn.toolCalls, results)

		if ended {
			sink.Emit(ResponseEvent{Kind: EventFinished, Final: endText})
			return nil
		}

		fuel--
		var continuation string
		if l.Hooks != nil {
			post := l.Hooks.Fire(ctx, hooks.PostToolBatch, map[string]any{"fuel": fuel})
			for _, r := range post {
				if m, ok := r.Value.(map[string]any); ok {
					if c, ok := m["continuation"].(string); ok && c != "" {
						continuation = c
					}
				}
			}
		}
		if continuation != "" {
			messages = append(messages, model.Message{Role: model.RoleUser, Content: continuation})
		}

		if fuel <= 0 {
			if exhaustedOnce {
				sink.Emit(ResponseEvent{Kind: EventFuelExhausted})
				return nil
			}
			exhaustedOnce = true
			messages = append(messages, model.Message{Role: model.RoleUser, Content: fuelExhaustedSentinel})
		}
	}
}

const (
	fuelSentinel          = "[SYSTEM] Continue."
	fuelExhaustedSentinel = "[SYSTEM] Fuel exhausted. Summarize your progress and stop. Do not call any more tools."
)

// shouldCompact reports whether estimated prompt tokens exceed
// AutoCompactThreshold × ContextWindow (spec §4.9 step 11). A zero
// ContextWindow means the model's size is unknown, so compaction never
// fires rather than guessing.
func (l *Loop) shouldCompact(messages []model.Message) bool {
	if l.Config.ContextWindow <= 0 || l.Config.AutoCompactThreshold <= 0 {
		return false
	}
	budget := int(l.Config.AutoCompactThreshold * float64(l.Config.ContextWindow))
	return estimateTokens(messages) > budget
}

// estimateTokens is the same chars/4 heuristic the tool output cache uses
// for its TokenEstimate field.
func estimateTokens(messages []model.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}

type turnResult struct {
	text      string
	toolCalls []toolAccumulator
}

func demux(ctx context.Context, events <-chan gateway.Event, sink Sink) (turnResult, error) {
	var text string
	accum := map[int]*toolAccumulator{}
	var order []int

	for ev := range events {
		switch ev.Kind {
		case gateway.EventTextDelta:
			text += ev.TextDelta
			sink.Emit(ResponseEvent{Kind: EventTextChunk, Text: ev.TextDelta})
		case gateway.EventToolCallDelta:
			if ev.ToolCall == nil {
				continue
			}
			idx := ev.ToolCall.Index
			if idx >= MaxToolCalls {
				return turnResult{}, fmt.Errorf("tool call index %d exceeds MAX_TOOL_CALLS=%d", idx, MaxToolCalls)
			}
			acc, exists := accum[idx]
			if !exists {
				acc = &toolAccumulator{}
				accum[idx] = acc
				order = append(order, idx)
			}
			if ev.ToolCall.ID != "" {
				acc.id = ev.ToolCall.ID
			}
			if ev.ToolCall.Name != "" {
				acc.name = ev.ToolCall.Name
			}
			acc.argsBuf += ev.ToolCall.ArgumentsPart
		case gateway.EventError:
			return turnResult{}, ev.Err
		case gateway.EventDone:
			// no-op: channel close signals end of turn too
		}
	}

	calls := make([]toolAccumulator, 0, len(order))
	for _, idx := range order {
		calls = append(calls, *accum[idx])
	}
	return turnResult{text: text, toolCalls: calls}, nil
}

func (l *Loop) appendToolCallMessage(messages []model.Message, turn turnResult) []model.Message {
	tcs := make([]model.ToolCall, len(turn.toolCalls))
	for i, tc := range turn.toolCalls {
		tcs[i] = model.ToolCall{ID: tc.id, Name: tc.name, Arguments: tc.argsBuf}
	}
	return append(messages, model.Message{Role: model.RoleAssistant, Content: turn.text, ToolCalls: tcs})
}

type batchResult struct {
	forLLM string
}

// runToolBatch executes every accumulated call. Tools flagged parallel and
// not flow-control run concurrently via errgroup; everything else runs in
// call order. A flow-control tool that ends the turn short-circuits the
// remainder of the batch (spec §4.9 steps 8-9).
func (l *Loop) runToolBatch(ctx context.Context, calls []toolAccumulator) (results []batchResult, ended bool, endText string) {
	results = make([]batchResult, len(calls))

	var parallelIdx, sequentialIdx []int
	for i, tc := range calls {
		entry, ok := l.Registry.Get(tc.name)
		if ok && entry.Tool.Metadata.Parallel && !entry.Tool.Metadata.FlowControl {
			parallelIdx = append(parallelIdx, i)
		} else {
			sequentialIdx = append(sequentialIdx, i)
		}
	}

	if len(parallelIdx) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, i := range parallelIdx {
			i := i
			g.Go(func() error {
				results[i] = l.runOne(gctx, calls[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, i := range sequentialIdx {
		tc := calls[i]
		entry, ok := l.Registry.Get(tc.name)
		results[i] = l.runOne(ctx, tc)

		if ok && entry.Tool.Metadata.FlowControl {
			if entry.Tool.Metadata.EndsTurn {
				return results, true, results[i].forLLM
			}
		}
	}

	return results, false, ""
}

func (l *Loop) runOne(ctx context.Context, tc toolAccumulator) batchResult {
	var args map[string]any
	if tc.argsBuf != "" {
		if err := json.Unmarshal([]byte(tc.argsBuf), &args); err != nil {
			args = map[string]any{}
		}
	} else {
		args = map[string]any{}
	}

	entry, ok := l.Registry.Get(tc.name)
	if !ok {
		return batchResult{forLLM: fmt.Sprintf("unknown tool %q", tc.name)}
	}

	if l.Hooks != nil {
		preResults := l.Hooks.Fire(ctx, hooks.PreTool, map[string]any{"tool": tc.name, "args": args})
		if cancel, found := hooks.FindCancel(preResults); found {
			return batchResult{forLLM: cancel.Result}
		}
	}

	var out string
	if l.Dispatcher == nil {
		out = "no dispatcher configured"
	} else {
		result := l.Dispatcher.Dispatch(ctx, entry, args)
		out = result.ForLLM
		if out == "" && result.Err != nil {
			out = result.Err.Error()
		}
	}

	// Tool Output Cache (spec §4.4/§8): any oversized, non-blank result is
	// written to the VFS and replaced with a stub before the model ever
	// sees it, regardless of which dispatch tag produced it.
	if l.ToolCache != nil && l.ToolCache.ShouldCache(out) {
		stub, _, err := l.ToolCache.Put(ctx, l.ContextName, tc.name, tc.argsBuf, out, time.Now())
		if err != nil {
			logx.WarnCF("loop", "tool output cache put failed", map[string]any{"tool": tc.name, "error": err.Error()})
		} else {
			out = stub
		}
	}

	if l.Hooks != nil {
		toOutput := l.Hooks.Fire(ctx, hooks.PreToolOutput, map[string]any{"tool": tc.name, "output": out})
		for _, r := range toOutput {
			if m, ok := r.Value.(map[string]any); ok {
				if replacement, ok := m["replacement"].(string); ok {
					out = replacement
				}
			}
		}
		l.Hooks.Fire(ctx, hooks.PostToolOutput, map[string]any{"tool": tc.name, "output": out})
		l.Hooks.Fire(ctx, hooks.PostTool, map[string]any{"tool": tc.name})
	}

	return batchResult{forLLM: out}
}

func appendToolResults(messages []model.Message, calls []toolAccumulator, results []batchResult) []model.Message {
	for i, tc := range calls {
		content := ""
		if i < len(results) {
			content = results[i].forLLM
		}
		messages = append(messages, model.Message{Role: model.RoleTool, Content: content, ToolCallID: tc.id})
	}
	return messages
}
