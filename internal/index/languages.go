package index

import "path/filepath"

// languageByExt maps file extensions to the language name used both for
// per-lang counts and for locating a "lang_<language>" plugin executable.
var languageByExt = map[string]string{
	".go":   "go",
	".rs":   "rust",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".rb":   "ruby",
	".md":   "markdown",
}

func detectLanguage(path string) (string, bool) {
	lang, ok := languageByExt[filepath.Ext(path)]
	return lang, ok
}
