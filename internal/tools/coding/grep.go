package coding

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/chibi-cli/chibi/internal/tools"
)

const grepMaxMatches = 500

type grepMatch struct {
	path string
	from int
	to   int
	body string
}

// GrepFiles walks root, matching pattern (a Go regexp) against each file's
// lines, and returns merged context-line ranges per file, capped at
// grepMaxMatches total matches.
func GrepFiles(root, pattern string, contextLines int) *tools.Result {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("grep_files: bad pattern: %v", err))
	}
	if contextLines < 0 {
		contextLines = 0
	}

	ignorer := loadGitignore(root)
	var results []grepMatch

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if strings.HasPrefix(rel, ".git"+string(filepath.Separator)) || rel == ".git" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || len(results) >= grepMaxMatches {
			return nil
		}
		matches, grepErr := grepFile(path, re, contextLines)
		if grepErr != nil {
			return nil
		}
		for _, m := range matches {
			m.path = rel
			results = append(results, m)
			if len(results) >= grepMaxMatches {
				break
			}
		}
		return nil
	})
	if walkErr != nil {
		return tools.ErrorResult(fmt.Sprintf("grep_files: %v", walkErr))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].path != results[j].path {
			return results[i].path < results[j].path
		}
		return results[i].from < results[j].from
	})

	var sb strings.Builder
	for _, m := range results {
		fmt.Fprintf(&sb, "%s:%d-%d:\n%s\n", m.path, m.from, m.to, m.body)
	}
	return tools.OK(sb.String())
}

func grepFile(path string, re *regexp.Regexp, contextLines int) ([]grepMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanner.Err() != nil {
		return nil, scanner.Err()
	}
	return matchLines(lines, re, contextLines), nil
}

// matchLines finds every line in lines matching re and returns merged
// context-line ranges, shared by the filesystem walk (grepFile) and
// GrepContent's in-memory variant.
func matchLines(lines []string, re *regexp.Regexp, contextLines int) []grepMatch {
	var hitLines []int
	for i, line := range lines {
		if re.MatchString(line) {
			hitLines = append(hitLines, i)
		}
	}
	if len(hitLines) == 0 {
		return nil
	}

	ranges := mergeRanges(hitLines, contextLines, len(lines))
	matches := make([]grepMatch, 0, len(ranges))
	for _, r := range ranges {
		body := strings.Join(lines[r[0]:r[1]+1], "\n")
		matches = append(matches, grepMatch{from: r[0] + 1, to: r[1] + 1, body: body})
	}
	return matches
}

// GrepContent matches pattern against content directly, for VFS-backed
// reads where there is no directory to walk (spec §9: vfs:// paths route
// through the VFS reader, not the filesystem).
func GrepContent(content, pattern string, contextLines int) *tools.Result {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("file_grep: bad pattern: %v", err))
	}
	if contextLines < 0 {
		contextLines = 0
	}

	matches := matchLines(strings.Split(content, "\n"), re, contextLines)
	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%d-%d:\n%s\n", m.from, m.to, m.body)
	}
	return tools.OK(sb.String())
}

// mergeRanges expands each hit line by contextLines in both directions and
// merges overlapping or adjacent ranges, clamped to [0, total).
func mergeRanges(hitLines []int, contextLines, total int) [][2]int {
	raw := make([][2]int, len(hitLines))
	for i, h := range hitLines {
		from := h - contextLines
		if from < 0 {
			from = 0
		}
		to := h + contextLines
		if to > total-1 {
			to = total - 1
		}
		raw[i] = [2]int{from, to}
	}

	merged := [][2]int{raw[0]}
	for _, r := range raw[1:] {
		last := &merged[len(merged)-1]
		if r[0] <= last[1]+1 {
			if r[1] > last[1] {
				last[1] = r[1]
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
