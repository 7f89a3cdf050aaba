// Package coding implements the coding/file-system tools from spec §4.6:
// shell_exec, dir_list, glob_files, grep_files, file_edit, fetch_url.
// Grounded on the teacher's pkg/tools/web.go (HTTP fetch shape) and
// pkg/tools/shell_test.go (shell tool conventions). Permission gating is the
// caller's responsibility (internal/chibi/dispatch.go), not this package's;
// these functions just run the requested operation.
package coding

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/chibi-cli/chibi/internal/tools"
)

// ShellResult is the structured {stdout,stderr,exit_code,timed_out} shape
// shell_exec returns (spec §4.6).
type ShellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out"`
}

// ShellExec runs command via "sh -c" with a bounded timeout. Dropping the
// context (timeout or cancellation) kills the child process.
func ShellExec(ctx context.Context, command string, timeout time.Duration) *tools.Result {
	if command == "" {
		return tools.ErrorResult("command is required")
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ShellResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() != nil {
		result.TimedOut = true
		result.ExitCode = -1
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		return tools.ErrorResult(err.Error())
	}

	data, merr := json.Marshal(result)
	if merr != nil {
		return tools.ErrorResult(merr.Error())
	}
	return tools.OK(string(data))
}
