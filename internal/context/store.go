// Package context implements the Context Engine (spec §4.7): per-context
// message history, transcript, system-prompt assembly, and compaction.
// Grounded on the teacher's context-persistence conventions (JSONL +
// sidecar JSON) and original_source/src/context.rs for the
// legacy-context.json migration and reflection.md supplement.
package context

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/safeio"
)

const (
	contextFile    = "context.jsonl"
	legacyFile     = "context.json"
	metaFile       = "context_meta.json"
	transcriptFile = "transcript.jsonl"
	reflectionFile = "reflection.md"
	goalsFile      = "goals.md"
	todosFile      = "todos.md"
)

// legacyDocument is the single-document shape context.json used before the
// JSONL format; read once as a migration source.
type legacyDocument struct {
	Messages []model.Message   `json:"messages"`
	Meta     model.ContextMeta `json:"meta"`
}

// Load builds the in-memory Context for dir by streaming context.jsonl. If
// absent, a legacy context.json is migrated in place (rewritten as JSONL)
// before returning; if neither exists, an empty Context for name is
// returned.
func Load(dir, name string) (*model.Context, error) {
	jsonlPath := filepath.Join(dir, contextFile)
	if _, err := os.Stat(jsonlPath); err == nil {
		messages, err := readJSONL(jsonlPath)
		if err != nil {
			return nil, err
		}
		meta, err := loadMeta(dir, name)
		if err != nil {
			return nil, err
		}
		return &model.Context{Name: name, Messages: messages, Meta: meta}, nil
	}

	legacyPath := filepath.Join(dir, legacyFile)
	if data, err := os.ReadFile(legacyPath); err == nil {
		var doc legacyDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("context: parse legacy %s: %w", legacyPath, err)
		}
		if doc.Meta.Name == "" {
			doc.Meta.Name = name
		}
		ctx := &model.Context{Name: name, Messages: doc.Messages, Meta: doc.Meta}
		if err := Save(dir, ctx); err != nil {
			return nil, err
		}
		if err := os.Remove(legacyPath); err != nil {
			logx.WarnCF("context", "failed to remove migrated legacy file", map[string]any{"path": legacyPath, "error": err.Error()})
		}
		return ctx, nil
	}

	now := time.Now()
	return &model.Context{
		Name: name,
		Meta: model.ContextMeta{Name: name, CreatedAt: now, UpdatedAt: now, LastActive: now, Destroy: model.DestroyPolicy{Kind: model.DestroyNever}},
	}, nil
}

func readJSONL(path string) ([]model.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("context: open %s: %w", path, err)
	}
	defer f.Close()

	var messages []model.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logx.WarnCF("context", "skipping malformed context line", map[string]any{"path": path, "line": lineNo})
			continue
		}
		messages = append(messages, msg)
	}
	return messages, scanner.Err()
}

func loadMeta(dir, name string) (model.ContextMeta, error) {
	path := filepath.Join(dir, metaFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		now := time.Now()
		return model.ContextMeta{Name: name, CreatedAt: now, UpdatedAt: now, LastActive: now, Destroy: model.DestroyPolicy{Kind: model.DestroyNever}}, nil
	}
	if err != nil {
		return model.ContextMeta{}, fmt.Errorf("context: read %s: %w", path, err)
	}
	var meta model.ContextMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.ContextMeta{}, fmt.Errorf("context: parse %s: %w", path, err)
	}
	return meta, nil
}

func saveMeta(dir string, meta model.ContextMeta) error {
	return safeio.AtomicWriteJSON(filepath.Join(dir, metaFile), meta)
}

// AppendMessage mutates ctx in memory and appends one JSON line to
// context.jsonl under the context's file lock.
func AppendMessage(dir string, ctx *model.Context, msg model.Message) error {
	lock := safeio.NewFileLock(filepath.Join(dir, ".append.lock"))
	if err := lock.Acquire(); err != nil {
		return fmt.Errorf("context: acquire append lock: %w", err)
	}
	defer lock.Release()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("context: marshal message: %w", err)
	}
	if err := safeio.AppendLine(filepath.Join(dir, contextFile), string(data)); err != nil {
		return err
	}
	ctx.Messages = append(ctx.Messages, msg)
	return nil
}

// Save atomically replaces context.jsonl with ctx's current message list
// and persists its metadata sidecar (used after compaction, or on migration).
func Save(dir string, ctx *model.Context) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("context: mkdir %s: %w", dir, err)
	}

	var sb strings.Builder
	for _, msg := range ctx.Messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("context: marshal message: %w", err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	if err := safeio.AtomicWriteText(filepath.Join(dir, contextFile), sb.String()); err != nil {
		return err
	}
	ctx.Dirty = false
	return saveMeta(dir, ctx.Meta)
}

// AppendTranscript writes one JSONL line to transcript.jsonl.
func AppendTranscript(dir string, entry model.TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("context: marshal transcript entry: %w", err)
	}
	return safeio.AppendLine(filepath.Join(dir, transcriptFile), string(data))
}
