// Package filetools implements the file tools from spec §4.6: write_file,
// file_edit, file_head, file_tail, file_lines, file_grep. Real paths resolve
// against a project_root; paths prefixed "vfs://" route to the VFS caller
// instead (spec §9) for every tool except file_edit, whose line-oriented
// mutations are real-filesystem-only. Mutations go through the permission
// gate.
package filetools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/permission"
	"github.com/chibi-cli/chibi/internal/safeio"
	"github.com/chibi-cli/chibi/internal/tools"
	"github.com/chibi-cli/chibi/internal/tools/coding"
	"github.com/chibi-cli/chibi/internal/vfs"
)

const vfsPrefix = "vfs://"

// Tools bundles the dependencies every file tool needs: a project root for
// resolving relative paths, the VFS for "vfs:///" paths, and the permission
// gate for writes.
type Tools struct {
	ProjectRoot string
	VFS         *vfs.Vfs
	Caller      string
	Gate        *permission.Gate
}

func (t *Tools) resolve(path string) (real string, isVFS bool) {
	if strings.HasPrefix(path, vfsPrefix) {
		return path, true
	}
	if filepath.IsAbs(path) {
		return path, false
	}
	return filepath.Join(t.ProjectRoot, path), false
}

// WriteFile writes content to path, gated by pre_file_write / the
// permission handler for real paths; VFS paths go through Vfs.Write
// directly (its own zone rules apply).
func (t *Tools) WriteFile(ctx context.Context, path, content string) *tools.Result {
	real, isVFS := t.resolve(path)
	if isVFS {
		p, err := vfs.ParsePathFromURI(real)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		if err := t.VFS.Write(ctx, t.Caller, p, []byte(content)); err != nil {
			return tools.ErrorResult(err.Error())
		}
		return tools.OK(fmt.Sprintf("wrote %s", path))
	}

	if !t.approve(ctx, "write_file", "write", real) {
		return tools.ErrorResult("permission denied: write_file " + real)
	}
	if err := safeio.AtomicWriteText(real, content); err != nil {
		return tools.ErrorResult(err.Error())
	}
	return tools.OK(fmt.Sprintf("wrote %s", path))
}

// FileEdit applies a coding.EditRequest against the resolved real path.
// VFS-routed edits are rejected: file_edit's line-oriented operations are
// real-filesystem-only (spec routes VFS access through the plain read/write
// verbs instead).
func (t *Tools) FileEdit(ctx context.Context, path string, req coding.EditRequest) *tools.Result {
	real, isVFS := t.resolve(path)
	if isVFS {
		return tools.ErrorResult("file_edit does not support vfs:// paths; use write_file")
	}
	if !t.approve(ctx, "file_edit", string(req.Op), real) {
		return tools.ErrorResult("permission denied: file_edit " + real)
	}
	req.Path = real
	return coding.FileEdit(req)
}

func (t *Tools) approve(ctx context.Context, tool, op, path string) bool {
	if t.Gate == nil {
		return true
	}
	return t.Gate.Check(ctx, hooks.PreFileWrite, permission.Request{Tool: tool, Operation: op, Path: path})
}

// FileHead returns the first n lines of path.
func (t *Tools) FileHead(ctx context.Context, path string, n int) *tools.Result {
	return t.readLines(ctx, path, func(lines []string) []string {
		if n <= 0 || n >= len(lines) {
			return lines
		}
		return lines[:n]
	})
}

// FileTail returns the last n lines of path.
func (t *Tools) FileTail(ctx context.Context, path string, n int) *tools.Result {
	return t.readLines(ctx, path, func(lines []string) []string {
		if n <= 0 || n >= len(lines) {
			return lines
		}
		return lines[len(lines)-n:]
	})
}

// FileLines returns lines [start, end] (1-indexed, inclusive) of path.
func (t *Tools) FileLines(ctx context.Context, path string, start, end int) *tools.Result {
	return t.readLines(ctx, path, func(lines []string) []string {
		if start < 1 {
			start = 1
		}
		if end > len(lines) {
			end = len(lines)
		}
		if start > end || start > len(lines) {
			return nil
		}
		return lines[start-1 : end]
	})
}

// FileGrep greps path for pattern, returning matched context ranges. Only
// that one file is searched: a real path is read from disk and a vfs://
// path from the VFS, and either is matched in memory with the same
// range-merging logic as the coding package's grep_files (spec §4.4: this
// is the tool the tool output cache's stub text names for examining a
// cached entry).
func (t *Tools) FileGrep(ctx context.Context, path, pattern string, contextLines int) *tools.Result {
	real, isVFS := t.resolve(path)
	if isVFS {
		content, err := t.readVFS(ctx, real)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		return coding.GrepContent(content, pattern, contextLines)
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	return coding.GrepContent(string(data), pattern, contextLines)
}

func (t *Tools) readVFS(ctx context.Context, uri string) (string, error) {
	p, err := vfs.ParsePathFromURI(uri)
	if err != nil {
		return "", err
	}
	data, err := t.VFS.Read(ctx, t.Caller, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (t *Tools) readLines(ctx context.Context, path string, slice func([]string) []string) *tools.Result {
	real, isVFS := t.resolve(path)
	if isVFS {
		content, err := t.readVFS(ctx, real)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		return tools.OK(strings.Join(slice(strings.Split(content, "\n")), "\n"))
	}

	f, err := os.Open(real)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return tools.ErrorResult(err.Error())
	}

	return tools.OK(strings.Join(slice(lines), "\n"))
}
