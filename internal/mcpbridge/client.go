package mcpbridge

import (
	"fmt"
	"os/exec"
	"time"
)

// EnsureRunning discovers a live bridge via the lockfile, or spawns a fresh
// detached one (running selfExe with the given spawnArgs) and waits for its
// lockfile, per spec §4.12 step 1.
func EnsureRunning(chibiHome, selfExe string, spawnArgs []string) (*Lockfile, error) {
	if lf, err := Discover(chibiHome); err != nil {
		return nil, err
	} else if lf != nil {
		return lf, nil
	}

	cmd := exec.Command(selfExe, spawnArgs...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcpbridge: spawn bridge: %w", err)
	}
	_ = cmd.Process.Release()

	return WaitForLockfile(chibiHome, 10*time.Second)
}

// ListTools is a convenience wrapper sending {op:"list_tools"}.
func ListTools(address string) ([]ToolDescriptor, error) {
	resp, err := SendRequest(address, Request{Op: "list_tools"})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("mcpbridge: list_tools: %s", resp.Error)
	}
	return resp.Tools, nil
}

// CallTool is a convenience wrapper sending {op:"call_tool", ...}.
func CallTool(address, server, tool string, args map[string]any) (string, error) {
	resp, err := SendRequest(address, Request{Op: "call_tool", Server: server, Tool: tool, Args: args})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("mcpbridge: call_tool %s:%s: %s", server, tool, resp.Error)
	}
	text, _ := resp.Result.(string)
	return text, nil
}
