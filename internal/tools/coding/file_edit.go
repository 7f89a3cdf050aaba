package coding

import (
	"fmt"
	"os"
	"strings"

	"github.com/chibi-cli/chibi/internal/safeio"
	"github.com/chibi-cli/chibi/internal/tools"
)

// EditOp names one of the five file_edit operations from spec §4.6.
type EditOp string

const (
	OpReplaceLines EditOp = "replace_lines"
	OpInsertBefore EditOp = "insert_before"
	OpInsertAfter  EditOp = "insert_after"
	OpDeleteLines  EditOp = "delete_lines"
	OpReplaceString EditOp = "replace_string"
)

// EditRequest is the decoded argument set for file_edit. StartLine/EndLine
// are 1-indexed and inclusive, per spec. Old/New are used by replace_string.
type EditRequest struct {
	Path      string
	Op        EditOp
	StartLine int
	EndLine   int
	Content   string
	Old       string
	New       string
}

// FileEdit applies req to the file at req.Path, writing atomically and
// preserving whether the file ended in a trailing newline.
func FileEdit(req EditRequest) *tools.Result {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("file_edit: %v", err))
	}

	hadTrailingNewline := len(data) > 0 && data[len(data)-1] == '\n'
	text := string(data)
	if hadTrailingNewline {
		text = text[:len(text)-1]
	}
	lines := strings.Split(text, "\n")
	if text == "" {
		lines = nil
	}

	var out []string
	switch req.Op {
	case OpReplaceLines:
		out, err = replaceLines(lines, req.StartLine, req.EndLine, req.Content)
	case OpInsertBefore:
		out, err = insertAt(lines, req.StartLine, req.Content, false)
	case OpInsertAfter:
		out, err = insertAt(lines, req.StartLine, req.Content, true)
	case OpDeleteLines:
		out, err = deleteLines(lines, req.StartLine, req.EndLine)
	case OpReplaceString:
		out, err = replaceString(lines, req.Old, req.New)
	default:
		return tools.ErrorResult(fmt.Sprintf("file_edit: unknown operation %q", req.Op))
	}
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("file_edit: %v", err))
	}

	newText := strings.Join(out, "\n")
	if hadTrailingNewline || newText == "" {
		newText += "\n"
	}
	if werr := safeio.AtomicWriteText(req.Path, newText); werr != nil {
		return tools.ErrorResult(fmt.Sprintf("file_edit: %v", werr))
	}
	return tools.OK(fmt.Sprintf("edited %s (%s)", req.Path, req.Op))
}

func checkLine(n, max int) error {
	if n < 1 || n > max {
		return fmt.Errorf("line %d out of range [1,%d]", n, max)
	}
	return nil
}

func replaceLines(lines []string, start, end int, content string) ([]string, error) {
	if err := checkLine(start, len(lines)); err != nil {
		return nil, err
	}
	if err := checkLine(end, len(lines)); err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("end_line %d before start_line %d", end, start)
	}
	replacement := splitContent(content)
	out := append([]string{}, lines[:start-1]...)
	out = append(out, replacement...)
	out = append(out, lines[end:]...)
	return out, nil
}

func insertAt(lines []string, at int, content string, after bool) ([]string, error) {
	if len(lines) == 0 {
		return splitContent(content), nil
	}
	if err := checkLine(at, len(lines)); err != nil {
		return nil, err
	}
	idx := at - 1
	if after {
		idx = at
	}
	inserted := splitContent(content)
	out := append([]string{}, lines[:idx]...)
	out = append(out, inserted...)
	out = append(out, lines[idx:]...)
	return out, nil
}

func deleteLines(lines []string, start, end int) ([]string, error) {
	if err := checkLine(start, len(lines)); err != nil {
		return nil, err
	}
	if err := checkLine(end, len(lines)); err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("end_line %d before start_line %d", end, start)
	}
	out := append([]string{}, lines[:start-1]...)
	out = append(out, lines[end:]...)
	return out, nil
}

func replaceString(lines []string, old, new string) ([]string, error) {
	if old == "" {
		return nil, fmt.Errorf("old string must not be empty")
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, old) {
		return nil, fmt.Errorf("old string not found")
	}
	joined = strings.Replace(joined, old, new, 1)
	return strings.Split(joined, "\n"), nil
}

func splitContent(content string) []string {
	if content == "" {
		return []string{""}
	}
	return strings.Split(content, "\n")
}
