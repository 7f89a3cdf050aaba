package context

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/model"
)

func TestLoadEmptyWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	ctx, err := Load(dir, "scratch")
	require.NoError(t, err)
	require.Equal(t, "scratch", ctx.Name)
	require.Empty(t, ctx.Messages)
	require.Equal(t, model.DestroyNever, ctx.Meta.Destroy.Kind)
}

func TestAppendMessageThenReload(t *testing.T) {
	dir := t.TempDir()
	ctx, err := Load(dir, "scratch")
	require.NoError(t, err)

	require.NoError(t, AppendMessage(dir, ctx, model.Message{Role: model.RoleUser, Content: "hi"}))
	require.NoError(t, AppendMessage(dir, ctx, model.Message{Role: model.RoleAssistant, Content: "hello"}))
	require.Len(t, ctx.Messages, 2)

	reloaded, err := Load(dir, "scratch")
	require.NoError(t, err)
	require.Len(t, reloaded.Messages, 2)
	require.Equal(t, "hi", reloaded.Messages[0].Content)
	require.Equal(t, "hello", reloaded.Messages[1].Content)
}

func TestLoadMigratesLegacyContextJSON(t *testing.T) {
	dir := t.TempDir()
	legacy := legacyDocument{
		Messages: []model.Message{{Role: model.RoleUser, Content: "from legacy"}},
		Meta:     model.ContextMeta{Name: "old", CreatedAt: time.Now(), Destroy: model.DestroyPolicy{Kind: model.DestroyNever}},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, legacyFile), data, 0o644))

	ctx, err := Load(dir, "old")
	require.NoError(t, err)
	require.Len(t, ctx.Messages, 1)
	require.Equal(t, "from legacy", ctx.Messages[0].Content)

	_, err = os.Stat(filepath.Join(dir, legacyFile))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, contextFile))
	require.NoError(t, err)
}

func TestSaveReplacesContextFile(t *testing.T) {
	dir := t.TempDir()
	ctx := &model.Context{Name: "x", Messages: []model.Message{{Role: model.RoleUser, Content: "one"}}}
	require.NoError(t, Save(dir, ctx))

	ctx.Messages = []model.Message{{Role: model.RoleUser, Content: "two"}}
	require.NoError(t, Save(dir, ctx))

	reloaded, err := Load(dir, "x")
	require.NoError(t, err)
	require.Len(t, reloaded.Messages, 1)
	require.Equal(t, "two", reloaded.Messages[0].Content)
}

func TestAppendTranscript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendTranscript(dir, model.TranscriptEntry{ID: "1", From: "user", Type: model.EntryMessage, Content: "hi"}))
	data, err := os.ReadFile(filepath.Join(dir, transcriptFile))
	require.NoError(t, err)
	require.Contains(t, string(data), "\"id\":\"1\"")
}

func TestSystemPromptAssemblesSections(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, UpdateReflection(dir, "remember the prior bug"))
	require.NoError(t, UpdateGoals(dir, "ship the feature"))
	require.NoError(t, UpdateTodos(dir, "- write tests"))

	prompt := SystemPrompt(context.Background(), nil, PromptSources{Dir: dir})
	require.Contains(t, prompt, "remember the prior bug")
	require.Contains(t, prompt, "ship the feature")
	require.Contains(t, prompt, "write tests")
}

func TestSystemPromptAgentsOverClaudeAtSameDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("agents rules"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "CLAUDE.md"), []byte("claude rules"), 0o644))

	prompt := SystemPrompt(context.Background(), nil, PromptSources{Dir: t.TempDir(), ProjectRoot: root, Cwd: root})
	require.Contains(t, prompt, "agents rules")
	require.NotContains(t, prompt, "claude rules")
}

func TestSystemPromptWalksProjectRootDownToCwd(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "pkg", "inner")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("root rules"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "AGENTS.md"), []byte("inner rules"), 0o644))

	prompt := SystemPrompt(context.Background(), nil, PromptSources{Dir: t.TempDir(), ProjectRoot: root, Cwd: sub})
	require.Contains(t, prompt, "root rules")
	require.Contains(t, prompt, "inner rules")
}

func TestSystemPromptHooksSplice(t *testing.T) {
	reg := hooks.NewRegistry()
	reg.RegisterNative(spliceHook{})
	prompt := SystemPrompt(context.Background(), reg, PromptSources{Dir: t.TempDir()})
	require.Contains(t, prompt, "spliced-in preamble")
}

type spliceHook struct{}

func (spliceHook) Name() string          { return "splice_hook" }
func (spliceHook) Points() []hooks.Point { return []hooks.Point{hooks.PreSystemPrompt} }
func (spliceHook) Invoke(_ context.Context, _ hooks.Point, _ any) (any, error) {
	return "spliced-in preamble", nil
}

func TestManualCompactionReplacesMessagesAndArchives(t *testing.T) {
	dir := t.TempDir()
	c := &model.Context{
		Name: "x",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "do the thing"},
			{Role: model.RoleAssistant, Content: "done"},
		},
	}
	require.NoError(t, AppendTranscript(dir, model.TranscriptEntry{ID: "1", Type: model.EntryMessage}))

	gw := &gateway.Mock{Turns: [][]gateway.Event{{
		{Kind: gateway.EventTextDelta, TextDelta: "summary of the conversation"},
		{Kind: gateway.EventDone},
	}}}

	require.NoError(t, Manual(context.Background(), dir, gw, "test-model", c, nil, "be helpful"))
	require.Len(t, c.Messages, 3)
	require.Contains(t, c.Messages[1].Content, "summary of the conversation")
	require.Equal(t, "summary of the conversation", c.Summary)

	_, err := os.Stat(filepath.Join(dir, transcriptFile))
	require.True(t, os.IsNotExist(err))
}

func TestRollingCompactionKeepsTailAndSummarizesHead(t *testing.T) {
	var messages []model.Message
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: "sys"})
	for i := 0; i < 10; i++ {
		messages = append(messages, model.Message{Role: model.RoleUser, Content: "msg"})
	}

	gw := &gateway.Mock{Turns: [][]gateway.Event{{
		{Kind: gateway.EventTextDelta, TextDelta: "condensed"},
		{Kind: gateway.EventDone},
	}}}

	out, err := Rolling(context.Background(), gw, "test-model", messages, 0.5, nil)
	require.NoError(t, err)
	require.Equal(t, "sys", out[0].Content)
	require.Contains(t, out[1].Content, "condensed")
	require.Len(t, out, 2+5)
}

func TestTouchUpdatesLastActive(t *testing.T) {
	dir := t.TempDir()
	meta := model.ContextMeta{Name: "x", LastActive: time.Now().Add(-time.Hour)}
	before := meta.LastActive
	require.NoError(t, Touch(dir, &meta, nil))
	require.True(t, meta.LastActive.After(before))

	reloaded, err := loadMeta(dir, "x")
	require.NoError(t, err)
	require.WithinDuration(t, meta.LastActive, reloaded.LastActive, time.Second)
}

func TestSweepDestroysExpiredContexts(t *testing.T) {
	home := t.TempDir()
	expiredDir := filepath.Join(home, "expired")
	aliveDir := filepath.Join(home, "alive")
	require.NoError(t, os.MkdirAll(expiredDir, 0o755))
	require.NoError(t, os.MkdirAll(aliveDir, 0o755))

	past := time.Now().Add(-time.Hour).Unix()
	require.NoError(t, saveMeta(expiredDir, model.ContextMeta{Name: "expired", Destroy: model.DestroyPolicy{Kind: model.DestroyAt, AtEpoch: past}}))
	require.NoError(t, saveMeta(aliveDir, model.ContextMeta{Name: "alive", Destroy: model.DestroyPolicy{Kind: model.DestroyNever}}))

	result, err := Sweep(context.Background(), nil, home)
	require.NoError(t, err)
	require.Equal(t, 2, result.Scanned)
	require.Contains(t, result.Destroyed, "expired")

	_, err = os.Stat(expiredDir)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(aliveDir)
	require.NoError(t, err)
}

func TestSweepDestroysElapsedCronPolicy(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "nightly")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	lastActive := time.Now().Add(-48 * time.Hour)
	require.NoError(t, saveMeta(dir, model.ContextMeta{
		Name:       "nightly",
		LastActive: lastActive,
		Destroy:    model.DestroyPolicy{Kind: model.DestroyCron, CronExpr: "0 3 * * *"},
	}))

	result, err := Sweep(context.Background(), nil, home)
	require.NoError(t, err)
	require.Contains(t, result.Destroyed, "nightly")
}

func TestDestroyRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644))
	require.NoError(t, Destroy(context.Background(), nil, dir, "x"))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestRenameMovesDirectoryAndUpdatesMeta(t *testing.T) {
	home := t.TempDir()
	oldDir := filepath.Join(home, "old")
	newDir := filepath.Join(home, "new")
	require.NoError(t, os.MkdirAll(oldDir, 0o755))
	require.NoError(t, saveMeta(oldDir, model.ContextMeta{Name: "old"}))

	require.NoError(t, Rename(oldDir, newDir, "new"))
	meta, err := loadMeta(newDir, "new")
	require.NoError(t, err)
	require.Equal(t, "new", meta.Name)
}
