package context

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/chibi-cli/chibi/internal/hooks"
)

// PromptSources names the directories SystemPrompt walks to assemble the
// project-discovery portion of the prompt.
type PromptSources struct {
	Dir         string // context directory (reflection.md, local prompt, goals, todos)
	HomeDir     string // user home, walked for a top-level AGENTS.md/CLAUDE.md
	ChibiHome   string // ~/.chibi or $CHIBI_HOME, same treatment as HomeDir
	ProjectRoot string // repo root; walked root-down-to-cwd
	Cwd         string // must be == or under ProjectRoot
}

const localPromptFile = "system_prompt.md"

// SystemPrompt assembles the full system prompt: reflection, context-local
// prompt, goals, todos, then AGENTS.md/CLAUDE.md discovered by walking
// home -> chibi-home -> project-root-down-to-cwd. At any one directory an
// AGENTS.md present there is used exclusively over a CLAUDE.md in that same
// directory (spec §4.7). Non-empty string results of PreSystemPrompt hooks
// are added as sections before all others, those of PostSystemPrompt hooks
// after all others; hooks cannot remove or rewrite the assembled sections.
func SystemPrompt(ctx context.Context, hookReg *hooks.Registry, src PromptSources) string {
	var sections []string

	if hookReg != nil {
		pre := hookReg.Fire(ctx, hooks.PreSystemPrompt, map[string]any{"dir": src.Dir})
		for _, r := range pre {
			if s, ok := r.Value.(string); ok && s != "" {
				sections = append(sections, s)
			}
		}
	}

	if s := readIfExists(filepath.Join(src.Dir, reflectionFile)); s != "" {
		sections = append(sections, s)
	}
	if s := readIfExists(filepath.Join(src.Dir, localPromptFile)); s != "" {
		sections = append(sections, s)
	}
	if s := readIfExists(filepath.Join(src.Dir, goalsFile)); s != "" {
		sections = append(sections, "## Goals\n"+s)
	}
	if s := readIfExists(filepath.Join(src.Dir, todosFile)); s != "" {
		sections = append(sections, "## Todos\n"+s)
	}

	for _, dir := range agentDirs(src) {
		if s := readAgentsOrClaude(dir); s != "" {
			sections = append(sections, s)
		}
	}

	if hookReg != nil {
		post := hookReg.Fire(ctx, hooks.PostSystemPrompt, map[string]any{"dir": src.Dir})
		for _, r := range post {
			if s, ok := r.Value.(string); ok && s != "" {
				sections = append(sections, s)
			}
		}
	}

	return strings.Join(sections, "\n\n")
}

// agentDirs returns, in walk order, every directory whose AGENTS.md/CLAUDE.md
// should be considered: the user's home, the chibi home, then the project
// root down to cwd inclusive.
func agentDirs(src PromptSources) []string {
	var dirs []string
	if src.HomeDir != "" {
		dirs = append(dirs, src.HomeDir)
	}
	if src.ChibiHome != "" && src.ChibiHome != src.HomeDir {
		dirs = append(dirs, src.ChibiHome)
	}
	if src.ProjectRoot == "" {
		return dirs
	}

	root := filepath.Clean(src.ProjectRoot)
	cwd := filepath.Clean(src.Cwd)
	if cwd == "" {
		cwd = root
	}

	rel, err := filepath.Rel(root, cwd)
	if err != nil || strings.HasPrefix(rel, "..") {
		return append(dirs, root)
	}

	cur := root
	dirs = append(dirs, cur)
	if rel == "." {
		return dirs
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		dirs = append(dirs, cur)
	}
	return dirs
}

// readAgentsOrClaude returns AGENTS.md's content if present in dir,
// otherwise CLAUDE.md's; AGENTS.md always wins when both exist in the same
// directory.
func readAgentsOrClaude(dir string) string {
	if s := readIfExists(filepath.Join(dir, "AGENTS.md")); s != "" {
		return s
	}
	return readIfExists(filepath.Join(dir, "CLAUDE.md"))
}

func readIfExists(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\n")
}
