package context

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/model"
)

const compactionPrompt = "Summarize the conversation above so far in a few dense paragraphs. " +
	"Capture decisions made, open threads, and anything a continuation needs to know. " +
	"Do not address the user directly."

// RollingCompactDropPercentage is the default fraction of the oldest
// non-system messages folded into a summary when rolling compaction fires.
const RollingCompactDropPercentage = 0.5

// Manual asks gw to summarize the current transcript, then replaces
// ctx.Messages with [system_prompt, user(continuation+summary), assistant(ack)]
// and archives the prior transcript file (spec §4.7 manual compaction).
func Manual(ctx context.Context, dir string, gw gateway.Client, model_ string, c *model.Context, hookReg *hooks.Registry, systemPrompt string) error {
	if hookReg != nil {
		hookReg.Fire(ctx, hooks.PreCompact, map[string]any{"context": c.Name})
	}

	summary, err := summarize(ctx, gw, model_, c.Messages, compactionPrompt)
	if err != nil {
		return fmt.Errorf("context: manual compaction: %w", err)
	}

	if err := Archive(dir); err != nil {
		return fmt.Errorf("context: archive before compaction: %w", err)
	}

	c.Messages = []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: "Continuing from a prior conversation. Summary:\n\n" + summary},
		{Role: model.RoleAssistant, Content: "Understood, continuing from that summary."},
	}
	c.Summary = summary

	if err := Save(dir, c); err != nil {
		return err
	}

	if hookReg != nil {
		hookReg.Fire(ctx, hooks.PostCompact, map[string]any{"context": c.Name, "summary": summary})
	}
	return nil
}

// Rolling drops the oldest dropPercentage of non-system messages into a
// summary and keeps the tail, returning the replacement list. Triggered by
// the loop when prompt tokens approach the model's context window.
func Rolling(ctx context.Context, gw gateway.Client, modelName string, messages []model.Message, dropPercentage float64, hookReg *hooks.Registry) ([]model.Message, error) {
	if dropPercentage <= 0 {
		dropPercentage = RollingCompactDropPercentage
	}
	if hookReg != nil {
		hookReg.Fire(ctx, hooks.PreRollingCompact, map[string]any{"message_count": len(messages)})
	}

	var systemMsgs, rest []model.Message
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			systemMsgs = append(systemMsgs, m)
		} else {
			rest = append(rest, m)
		}
	}
	if len(rest) == 0 {
		return messages, nil
	}

	dropCount := int(float64(len(rest)) * dropPercentage)
	if dropCount <= 0 {
		return messages, nil
	}
	if dropCount > len(rest) {
		dropCount = len(rest)
	}

	dropped, kept := rest[:dropCount], rest[dropCount:]
	summary, err := summarize(ctx, gw, modelName, dropped, compactionPrompt)
	if err != nil {
		return nil, fmt.Errorf("context: rolling compaction: %w", err)
	}

	out := append([]model.Message{}, systemMsgs...)
	out = append(out, model.Message{Role: model.RoleUser, Content: "[Earlier conversation summarized]\n\n" + summary})
	out = append(out, kept...)

	if hookReg != nil {
		hookReg.Fire(ctx, hooks.PostRollingCompact, map[string]any{"dropped": dropCount, "kept": len(kept)})
	}
	return out, nil
}

func summarize(ctx context.Context, gw gateway.Client, modelName string, messages []model.Message, prompt string) (string, error) {
	if gw == nil {
		return "", fmt.Errorf("context: no gateway client configured for compaction")
	}
	req := gateway.Request{
		Model:    modelName,
		Messages: append(append([]model.Message{}, messages...), model.Message{Role: model.RoleUser, Content: prompt}),
	}
	events, err := gw.StreamChat(ctx, req)
	if err != nil {
		return "", err
	}
	var text string
	for ev := range events {
		switch ev.Kind {
		case gateway.EventTextDelta:
			text += ev.TextDelta
		case gateway.EventError:
			return "", ev.Err
		}
	}
	return text, nil
}

// Archive renames transcript.jsonl with a timestamp suffix and leaves the
// active transcript absent (a fresh one is created lazily on next append).
func Archive(dir string) error {
	path := filepath.Join(dir, transcriptFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("context: stat %s: %w", path, err)
	}

	archived := filepath.Join(dir, fmt.Sprintf("transcript-%d.jsonl", time.Now().UnixNano()))
	if err := os.Rename(path, archived); err != nil {
		return fmt.Errorf("context: archive %s: %w", path, err)
	}
	return nil
}
