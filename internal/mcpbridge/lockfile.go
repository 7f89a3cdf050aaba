// Package mcpbridge implements the MCP Bridge daemon (spec §4.12): a
// long-lived process multiplexing upstream MCP servers behind a small
// line-delimited JSON/TCP protocol, with its own tool-description summary
// cache. Grounded on internal/ctxlock's lockfile-with-liveness-probe pattern
// and the teacher's subprocess-management conventions.
package mcpbridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chibi-cli/chibi/internal/safeio"
)

const lockfileName = "mcp-bridge.lock"

// Lockfile is the published contents of <chibi_home>/mcp-bridge.lock.
type Lockfile struct {
	PID     int       `json:"pid"`
	Address string    `json:"address"`
	Started time.Time `json:"started"`
}

// LockfilePath returns the well-known lockfile path under a chibi home dir.
func LockfilePath(chibiHome string) string {
	return filepath.Join(chibiHome, lockfileName)
}

// Publish atomically writes the lockfile advertising this process's address.
func Publish(chibiHome string, address string) error {
	lf := Lockfile{PID: os.Getpid(), Address: address, Started: time.Now()}
	return safeio.AtomicWriteJSON(LockfilePath(chibiHome), lf)
}

// Remove deletes the lockfile; best-effort, called on clean shutdown.
func Remove(chibiHome string) error {
	err := os.Remove(LockfilePath(chibiHome))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Discover reads the lockfile, if present, and reports whether its PID is
// still alive. A stale lockfile (process gone) is removed so a fresh bridge
// can be spawned in its place.
func Discover(chibiHome string) (*Lockfile, error) {
	path := LockfilePath(chibiHome)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: read lockfile: %w", err)
	}

	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		_ = os.Remove(path)
		return nil, nil
	}

	if !pidAlive(lf.PID) {
		_ = os.Remove(path)
		return nil, nil
	}
	return &lf, nil
}

// pidAlive probes liveness by sending signal 0, the portable no-op kill.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// WaitForLockfile polls for a newly published lockfile up to timeout, used
// by a caller that just spawned a bridge process.
func WaitForLockfile(chibiHome string, timeout time.Duration) (*Lockfile, error) {
	deadline := time.Now().Add(timeout)
	for {
		lf, err := Discover(chibiHome)
		if err != nil {
			return nil, err
		}
		if lf != nil {
			return lf, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("mcpbridge: timed out waiting for lockfile after %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
