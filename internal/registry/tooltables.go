package registry

import "github.com/chibi-cli/chibi/internal/model"

func intParam(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func boolParam(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// FileTools is the static table of real/VFS file tools from spec §4.6.
func FileTools() []model.Tool {
	return []model.Tool{
		{
			Name:        "write_file",
			Description: "Write content to a file, replacing it entirely. Paths prefixed vfs:// route to the virtual filesystem.",
			Parameters: objSchema([]string{"path", "content"}, map[string]any{
				"path":    strParam("File path, or a vfs:// URI."),
				"content": strParam("New file content."),
			}),
		},
		{
			Name:        "file_edit",
			Description: "Apply a line-oriented edit operation to an existing file: replace_lines, insert_before, insert_after, delete_lines, or replace_string.",
			Parameters: objSchema([]string{"path", "op"}, map[string]any{
				"path":    strParam("File path."),
				"op":      strParam("One of replace_lines, insert_before, insert_after, delete_lines, replace_string."),
				"start":   intParam("1-indexed start line, for line-range operations."),
				"end":     intParam("1-indexed end line (inclusive), for line-range operations."),
				"content": strParam("Replacement/insertion text."),
				"old":     strParam("Exact substring to replace, for replace_string."),
				"new":     strParam("Replacement text, for replace_string."),
			}),
		},
		{
			Name:        "file_head",
			Description: "Return the first N lines of a file.",
			Parameters:  objSchema([]string{"path"}, map[string]any{"path": strParam("File path."), "n": intParam("Number of lines.")}),
		},
		{
			Name:        "file_tail",
			Description: "Return the last N lines of a file.",
			Parameters:  objSchema([]string{"path"}, map[string]any{"path": strParam("File path."), "n": intParam("Number of lines.")}),
		},
		{
			Name:        "file_lines",
			Description: "Return an inclusive 1-indexed line range of a file.",
			Parameters: objSchema([]string{"path", "start", "end"}, map[string]any{
				"path": strParam("File path."), "start": intParam("Start line."), "end": intParam("End line."),
			}),
		},
		{
			Name:        "file_grep",
			Description: "Search a single file for a regex pattern, returning matched ranges with surrounding context.",
			Parameters: objSchema([]string{"path", "pattern"}, map[string]any{
				"path": strParam("File path."), "pattern": strParam("Regular expression."), "context_lines": intParam("Lines of context around each match."),
			}),
		},
	}
}

// CodingTools is the static table of coding-workspace tools from spec §4.6.
func CodingTools() []model.Tool {
	return []model.Tool{
		{
			Name:        "dir_list",
			Description: "Render a directory tree with size-formatted entries.",
			Parameters: objSchema([]string{"root"}, map[string]any{
				"root": strParam("Directory to list."), "max_depth": intParam("Maximum recursion depth."), "show_hidden": boolParam("Include dotfiles."),
			}),
		},
		{
			Name:        "glob_files",
			Description: "Match files under root against a glob pattern, honoring .gitignore.",
			Parameters: objSchema([]string{"root", "pattern"}, map[string]any{
				"root": strParam("Directory to search."), "pattern": strParam("Glob pattern, e.g. **/*.go."),
			}),
		},
		{
			Name:        "grep_files",
			Description: "Search files under root for a regex pattern, returning matched ranges with context.",
			Parameters: objSchema([]string{"root", "pattern"}, map[string]any{
				"root": strParam("Directory to search."), "pattern": strParam("Regular expression."), "context_lines": intParam("Lines of context around each match."),
			}),
		},
		{
			Name:        "shell_exec",
			Description: "Run a shell command (sh -c) with a timeout, returning stdout, stderr, exit_code, and timed_out.",
			Parameters: objSchema([]string{"command"}, map[string]any{
				"command": strParam("Shell command line."), "timeout_seconds": intParam("Timeout in seconds."),
			}),
			Metadata: model.ToolMetadata{Parallel: false},
		},
		{
			Name:        "fetch_url",
			Description: "HTTP GET a URL, stripping HTML tags from text/html responses, bounded by a byte ceiling and a timeout.",
			Parameters: objSchema([]string{"url"}, map[string]any{
				"url": strParam("Absolute http(s) URL."), "max_bytes": intParam("Byte ceiling."), "timeout_seconds": intParam("Timeout in seconds."),
			}),
			Metadata: model.ToolMetadata{Parallel: true},
		},
		{
			Name:        "index_update",
			Description: "Incrementally refresh the codebase index: walk root, hash files, re-run language plugins on changed files.",
			Parameters: objSchema(nil, map[string]any{"force": boolParam("Reindex every file, even those whose mtime and size are unchanged.")}),
		},
		{
			Name:        "index_query",
			Description: "Query indexed files, symbols, and references by optional substring/kind filters.",
			Parameters: objSchema(nil, map[string]any{
				"name": strParam("Symbol name substring."), "file": strParam("File path substring."),
				"kind": strParam("Exact symbol kind."), "ref": strParam("Reference target substring."),
			}),
		},
		{
			Name:        "index_status",
			Description: "Report index summary counts: files, symbols, refs, per-language breakdown, active/empty.",
			Parameters:  objSchema(nil, map[string]any{}),
		},
	}
}

// AgentTools is the static table of spawn/retrieve tools from spec §4.11.
func AgentTools() []model.Tool {
	return []model.Tool{
		{
			Name:        "spawn_agent",
			Description: "Recursively invoke the agentic loop over a fresh named sub-context with an isolated fuel budget, returning its final text.",
			Parameters: objSchema([]string{"context", "prompt"}, map[string]any{
				"context": strParam("Sub-agent context name."), "prompt": strParam("Prompt for the sub-agent."),
			}),
			Metadata: model.ToolMetadata{FlowControl: true},
		},
		{
			Name:        "retrieve_content",
			Description: "Fetch previously cached content (e.g. a spawn_agent transcript) by its vfs:// URI.",
			Parameters:  objSchema([]string{"uri"}, map[string]any{"uri": strParam("Cached content's vfs:// URI.")}),
		},
	}
}

// RegisterFileTools registers FileTools() under TagFile.
func (r *Registry) RegisterFileTools() {
	for _, t := range FileTools() {
		r.Register(t, TagFile)
	}
}

// RegisterCodingTools registers CodingTools() under TagCoding.
func (r *Registry) RegisterCodingTools() {
	for _, t := range CodingTools() {
		r.Register(t, TagCoding)
	}
}

// RegisterAgentTools registers AgentTools() under TagAgent.
func (r *Registry) RegisterAgentTools() {
	for _, t := range AgentTools() {
		r.Register(t, TagAgent)
	}
}
