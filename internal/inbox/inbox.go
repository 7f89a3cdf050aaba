// Package inbox implements cross-context message delivery (spec §4.5):
// per-context append-only JSONL, drained into the next user turn, with
// PreSendMessage/PostSendMessage hook interception.
package inbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chibi-cli/chibi/internal/chibierr"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/safeio"
)

const fileName = "inbox.jsonl"

// Inbox drives delivery and draining for one chibi_home's contexts directory.
type Inbox struct {
	contextsRoot string
	hookRegistry *hooks.Registry
}

// New returns an Inbox rooted at contextsRoot (typically
// <chibi_home>/contexts).
func New(contextsRoot string, registry *hooks.Registry) *Inbox {
	return &Inbox{contextsRoot: contextsRoot, hookRegistry: registry}
}

func (ib *Inbox) path(contextName string) string {
	return filepath.Join(ib.contextsRoot, contextName, fileName)
}

// SendPayload is the pre_send_message hook payload shape.
type SendPayload struct {
	FromContext string `json:"from_context"`
	ToContext   string `json:"to_context"`
	Content     string `json:"content"`
}

// Send appends an entry to the recipient's inbox, unless a PreSendMessage
// hook intercepts delivery (returning {delivered:true, via:"..."}), in which
// case the file is never touched. PostSendMessage always fires afterward.
func (ib *Inbox) Send(ctx context.Context, fromContext, toContext, content string) (*model.InboxEntry, error) {
	payload := SendPayload{FromContext: fromContext, ToContext: toContext, Content: content}

	if ib.hookRegistry != nil {
		results := ib.hookRegistry.Fire(ctx, hooks.PreSendMessage, payload)
		if d, ok := hooks.FindDelivered(results); ok && d.Delivered {
			logx.InfoCF("inbox", "delivery intercepted by hook", map[string]any{"via": d.Via})
			ib.firePost(ctx, fromContext, toContext, content, d.Via)
			return nil, nil
		}
	}

	entry := model.InboxEntry{
		ID:          uuid.NewString(),
		FromContext: fromContext,
		Content:     content,
		SentEpoch:   time.Now().Unix(),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "inbox", err)
	}
	if err := safeio.AppendLine(ib.path(toContext), string(line)); err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "inbox", err)
	}

	ib.firePost(ctx, fromContext, toContext, content, "")
	return &entry, nil
}

func (ib *Inbox) firePost(ctx context.Context, fromContext, toContext, content, via string) {
	if ib.hookRegistry == nil {
		return
	}
	ib.hookRegistry.Fire(ctx, hooks.PostSendMessage, map[string]any{
		"from_context": fromContext,
		"to_context":   toContext,
		"content":      content,
		"via":          via,
	})
}

// Drain reads every pending entry for contextName, preserving file order,
// and truncates the inbox (rewriting it empty via safeio, per the
// explicit-archive-step rewrite rule — this is the normal drain path, not an
// append, so it is exempt from the append-only invariant between drains).
func (ib *Inbox) Drain(contextName string) ([]model.InboxEntry, error) {
	path := ib.path(contextName)
	entries, err := ib.Peek(contextName)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}
	if err := safeio.AtomicWrite(path, nil); err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "inbox", err)
	}
	return entries, nil
}

// Peek reads pending entries without draining them. Malformed lines are
// skipped with a warning, never fail the read.
func (ib *Inbox) Peek(contextName string) ([]model.InboxEntry, error) {
	f, err := os.Open(ib.path(contextName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "inbox", err)
	}
	defer f.Close()

	var entries []model.InboxEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e model.InboxEntry
		if err := json.Unmarshal(line, &e); err != nil {
			logx.WarnCF("inbox", "skipping malformed line", map[string]any{"error": err.Error()})
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FixedNote is prepended before drained entries when injecting them into the
// next user turn (spec §4.5).
const FixedNote = "[SYSTEM] You have pending inbox messages from other contexts. Handle anything urgent before continuing."

// FormatForTurn renders drained entries as a single framed user message.
func FormatForTurn(entries []model.InboxEntry) string {
	if len(entries) == 0 {
		return ""
	}
	out := FixedNote + "\n\n"
	for _, e := range entries {
		out += fmt.Sprintf("- from %s: %s\n", e.FromContext, e.Content)
	}
	return out
}
