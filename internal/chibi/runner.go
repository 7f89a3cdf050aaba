package chibi

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	chibictx "github.com/chibi-cli/chibi/internal/context"
	"github.com/chibi-cli/chibi/internal/inbox"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/loop"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/toolcache"
)

// RunSubAgent implements agenttools.Runner: spawn_agent's recursive
// invocation of the same core over a fresh named sub-context (spec §4.11).
// CHIBI_AGENT_DEPTH is threaded through the environment for the duration of
// the call so a nested spawn_agent sees the incremented depth, restored
// afterward.
func (a *App) RunSubAgent(ctx context.Context, contextName, prompt string, depth int) (string, string, error) {
	prevDepth := os.Getenv("CHIBI_AGENT_DEPTH")
	os.Setenv("CHIBI_AGENT_DEPTH", strconv.Itoa(depth))
	defer func() {
		if prevDepth == "" {
			os.Unsetenv("CHIBI_AGENT_DEPTH")
		} else {
			os.Setenv("CHIBI_AGENT_DEPTH", prevDepth)
		}
	}()

	dir := a.ContextDir(contextName)
	sub, err := chibictx.Load(dir, contextName)
	if err != nil {
		return "", "", fmt.Errorf("chibi: load sub-context %s: %w", contextName, err)
	}

	systemPrompt := a.SystemPrompt(ctx, dir)
	finalText, err := a.runLoop(ctx, contextName, dir, sub, systemPrompt, prompt)
	if err != nil {
		return "", "", err
	}

	var cacheID string
	if a.ToolCache != nil && a.ToolCache.ShouldCache(finalText) {
		transcript := renderTranscript(sub)
		stub, _, err := a.ToolCache.Put(ctx, a.currentContextName, "spawn_agent", contextName, transcript, time.Now())
		if err == nil {
			if uri, ok := toolcache.StubURI(stub); ok {
				cacheID = uri
			}
		}
	}
	return finalText, cacheID, nil
}

// runLoop drives one agentic-loop turn over sub, appending prompt as the
// user message, persisting the resulting messages, and returning the
// assistant's final text.
func (a *App) runLoop(ctx context.Context, contextName, dir string, sub *model.Context, systemPrompt, prompt string) (string, error) {
	contextWindow := 0
	if a.Gateway != nil {
		if info, err := a.Gateway.ModelInfo(ctx, a.currentModel); err == nil {
			contextWindow = info.ContextWindow
		}
	}

	l := &loop.Loop{
		Gateway:     a.Gateway,
		Registry:    a.Registry,
		Hooks:       a.Hooks,
		Dispatcher:  a,
		ToolCache:   a.ToolCache,
		ContextName: contextName,
		Config: loop.Config{
			Model:                 a.currentModel,
			Fuel:                  a.Config.Fuel,
			FuelEmptyResponseCost: a.Config.FuelEmptyResponseCost,
			AutoCompactThreshold:  a.Config.AutoCompactThreshold,
			ContextWindow:         contextWindow,
		},
		Compact: func(ctx context.Context, messages []model.Message) ([]model.Message, error) {
			if a.Gateway == nil {
				return messages, nil
			}
			return chibictx.Rolling(ctx, a.Gateway, a.currentModel, messages, a.Config.RollingCompactDropPct, a.Hooks)
		},
	}

	messages := withSystemPrompt(sub.Messages, systemPrompt)
	// inbox_injected isn't among the fixed hook points (spec §4.8), same as
	// pre_shell; the drain itself still runs unconditionally (spec §4.9
	// step 2) before the real prompt is appended.
	if a.Inbox != nil {
		if entries, err := a.Inbox.Drain(contextName); err != nil {
			logx.WarnCF("chibi", "inbox drain failed", map[string]any{"context": contextName, "error": err.Error()})
		} else if note := inbox.FormatForTurn(entries); note != "" {
			messages = append(messages, model.Message{Role: model.RoleUser, Content: note})
		}
	}

	sink := loop.NewChannelSink(64, func() bool { return false })
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, sink, loop.Request{Prompt: prompt, Messages: messages, SystemPrompt: systemPrompt})
		close(sink.Events)
	}()

	var final string
	for ev := range sink.Events {
		switch ev.Kind {
		case loop.EventFinished:
			final = ev.Final
		case loop.EventError:
			return "", ev.Err
		}
	}
	if err := <-done; err != nil {
		return "", err
	}

	sub.Messages = append(sub.Messages, model.Message{Role: model.RoleUser, Content: prompt})
	if final != "" {
		sub.Messages = append(sub.Messages, model.Message{Role: model.RoleAssistant, Content: final})
	}
	if err := chibictx.Save(dir, sub); err != nil {
		return final, err
	}
	return final, nil
}

// withSystemPrompt prepends a system message to history if one isn't
// already the first entry.
func withSystemPrompt(history []model.Message, systemPrompt string) []model.Message {
	if systemPrompt == "" {
		return history
	}
	if len(history) > 0 && history[0].Role == model.RoleSystem {
		return history
	}
	out := make([]model.Message, 0, len(history)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: systemPrompt})
	return append(out, history...)
}

func renderTranscript(c *model.Context) string {
	var sb strings.Builder
	for _, m := range c.Messages {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
