package loop

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/registry"
	"github.com/chibi-cli/chibi/internal/tools"
	"github.com/chibi-cli/chibi/internal/toolcache"
	"github.com/chibi-cli/chibi/internal/vfs"
)

func textTurn(text string) []gateway.Event {
	return []gateway.Event{
		{Kind: gateway.EventTextDelta, TextDelta: text},
		{Kind: gateway.EventDone},
	}
}

func toolCallTurn(name, args string) []gateway.Event {
	return []gateway.Event{
		{Kind: gateway.EventToolCallDelta, ToolCall: &gateway.ToolCallDelta{Index: 0, ID: "call_1", Name: name, ArgumentsPart: args}},
		{Kind: gateway.EventDone},
	}
}

func newTestLoop(t *testing.T, turns [][]gateway.Event) (*Loop, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil)
	l := &Loop{
		Gateway:  &gateway.Mock{Turns: turns},
		Registry: reg,
		Config:   Config{Model: "test-model", Fuel: 10, FuelEmptyResponseCost: 1},
	}
	return l, reg
}

func TestRunFinishesOnPlainText(t *testing.T) {
	l, _ := newTestLoop(t, [][]gateway.Event{textTurn("hello there")})
	sink := NewChannelSink(16, nil)

	go func() {
		err := l.Run(context.Background(), sink, Request{Prompt: "hi"})
		require.NoError(t, err)
		close(sink.Events)
	}()

	var final string
	for ev := range sink.Events {
		if ev.Kind == EventFinished {
			final = ev.Final
		}
	}
	require.Equal(t, "hello there", final)
}

func TestRunExecutesToolCallThenFinishes(t *testing.T) {
	l, reg := newTestLoop(t, [][]gateway.Event{
		toolCallTurn("echo_tool", `{"msg":"hi"}`),
		textTurn("done"),
	})
	reg.Register(model.Tool{Name: "echo_tool"}, registry.TagBuiltin)
	l.Dispatcher = DispatchFunc(func(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
		return tools.OK("echoed: " + args["msg"].(string))
	})

	sink := NewChannelSink(16, nil)
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "hi"}))
		close(sink.Events)
	}()

	var final string
	for ev := range sink.Events {
		if ev.Kind == EventFinished {
			final = ev.Final
		}
	}
	require.Equal(t, "done", final)
}

func TestRunEndsTurnOnFlowControlTool(t *testing.T) {
	l, reg := newTestLoop(t, [][]gateway.Event{
		toolCallTurn("call_user", `{}`),
	})
	reg.Register(model.Tool{Name: "call_user", Metadata: model.ToolMetadata{FlowControl: true, EndsTurn: true}}, registry.TagBuiltin)
	l.Dispatcher = DispatchFunc(func(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
		return tools.OK("handed back to user")
	})

	sink := NewChannelSink(16, nil)
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "hi"}))
		close(sink.Events)
	}()

	var final string
	for ev := range sink.Events {
		if ev.Kind == EventFinished {
			final = ev.Final
		}
	}
	require.Equal(t, "handed back to user", final)
}

func TestRunRespectsCancellation(t *testing.T) {
	reg := registry.New(nil)
	l := &Loop{
		Gateway:  &gateway.Mock{Turns: [][]gateway.Event{textTurn("should not see this")}},
		Registry: reg,
		Config:   Config{Model: "test-model", Fuel: 10, FuelEmptyResponseCost: 1},
	}

	sink := &cancelledSink{events: make(chan ResponseEvent, 16)}
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "hi"}))
		close(sink.events)
	}()

	var kinds []EventKind
	for ev := range sink.events {
		kinds = append(kinds, ev.Kind)
	}
	require.Contains(t, kinds, EventCancelled)
}

type cancelledSink struct {
	events chan ResponseEvent
}

func (s *cancelledSink) Emit(ev ResponseEvent) { s.events <- ev }
func (s *cancelledSink) Cancelled() bool       { return true }

type captureOutputHook struct{ output string }

func (c *captureOutputHook) Name() string          { return "capture" }
func (c *captureOutputHook) Points() []hooks.Point { return []hooks.Point{hooks.PostToolOutput} }
func (c *captureOutputHook) Invoke(_ context.Context, _ hooks.Point, payload any) (any, error) {
	if m, ok := payload.(map[string]any); ok {
		if s, ok := m["output"].(string); ok {
			c.output = s
		}
	}
	return nil, nil
}

func TestRunCachesOversizedToolResult(t *testing.T) {
	l, reg := newTestLoop(t, [][]gateway.Event{
		toolCallTurn("big_tool", `{}`),
		textTurn("done"),
	})
	reg.Register(model.Tool{Name: "big_tool"}, registry.TagBuiltin)

	backend, err := vfs.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	l.ToolCache = toolcache.New(vfs.New(backend), nil, 10)
	l.ContextName = "ctx1"

	capture := &captureOutputHook{}
	hookReg := hooks.NewRegistry()
	hookReg.RegisterNative(capture)
	l.Hooks = hookReg

	big := strings.Repeat("x", 50)
	l.Dispatcher = DispatchFunc(func(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
		return tools.OK(big)
	})

	sink := NewChannelSink(16, nil)
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "hi"}))
		close(sink.Events)
	}()
	for range sink.Events {
	}

	require.Contains(t, capture.output, "[Output cached:")
	require.NotContains(t, capture.output, big)
}

func TestRunSkipsCompactionWithUnknownContextWindow(t *testing.T) {
	l, _ := newTestLoop(t, [][]gateway.Event{textTurn("done")})
	l.Config.AutoCompactThreshold = 0.5

	calls := 0
	l.Compact = func(ctx context.Context, messages []model.Message) ([]model.Message, error) {
		calls++
		return messages, nil
	}

	sink := NewChannelSink(16, nil)
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "hi"}))
		close(sink.Events)
	}()
	for range sink.Events {
	}

	require.Equal(t, 0, calls)
}

func TestRunCompactsWhenEstimatedTokensExceedBudget(t *testing.T) {
	l, _ := newTestLoop(t, [][]gateway.Event{textTurn("done")})
	l.Config.AutoCompactThreshold = 0.1
	l.Config.ContextWindow = 10 // budget = 1 token; any real prompt exceeds it

	calls := 0
	l.Compact = func(ctx context.Context, messages []model.Message) ([]model.Message, error) {
		calls++
		return messages, nil
	}

	sink := NewChannelSink(16, nil)
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "a prompt long enough to exceed the tiny token budget"}))
		close(sink.Events)
	}()
	for range sink.Events {
	}

	require.Equal(t, 1, calls)
}

func TestHooksFireOnToolCall(t *testing.T) {
	l, reg := newTestLoop(t, [][]gateway.Event{
		toolCallTurn("echo_tool", `{"msg":"hi"}`),
		textTurn("done"),
	})
	reg.Register(model.Tool{Name: "echo_tool"}, registry.TagBuiltin)
	capture := &captureOutputHook{}
	hookReg := hooks.NewRegistry()
	hookReg.RegisterNative(capture)
	l.Hooks = hookReg
	l.Dispatcher = DispatchFunc(func(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
		return tools.OK("ok")
	})

	sink := NewChannelSink(16, nil)
	go func() {
		require.NoError(t, l.Run(context.Background(), sink, Request{Prompt: "hi"}))
		close(sink.Events)
	}()
	for range sink.Events {
	}

	require.Equal(t, "ok", capture.output)
}
