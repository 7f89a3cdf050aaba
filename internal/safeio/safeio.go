// Package safeio provides the crash-safe write primitives every other Chibi
// subsystem is required to use (spec §4.1): write temp + fsync + rename, and
// an exclusive OS-advisory file lock. Grounded on original_source/src/safe_io.rs.
package safeio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// AtomicWrite writes data to path via a temp file in the same directory,
// fsyncs it, then renames it over path. Parent directories are created as
// needed. At any crash point path is either absent, holds its previous
// bytes, or holds the new bytes — never partial, and no ".tmp" is left
// behind after a subsequent successful write.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("safeio: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("safeio: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	// Any early return removes the leftover temp file; only the final
	// rename consumes it.
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("safeio: write temp %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("safeio: fsync temp %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("safeio: close temp %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("safeio: rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

// AtomicWriteText is AtomicWrite for a string.
func AtomicWriteText(path string, text string) error {
	return AtomicWrite(path, []byte(text))
}

// AtomicWriteJSON marshals v and writes it atomically.
func AtomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("safeio: marshal for %s: %w", path, err)
	}
	return AtomicWrite(path, data)
}

// AppendLine appends a single line (newline-terminated) to path, creating it
// if necessary. Used for JSONL append-only logs (transcript, inbox,
// context.jsonl). Not itself atomic across the whole file — callers that
// need atomic replace use AtomicWrite instead.
func AppendLine(path string, line string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("safeio: mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("safeio: open %s: %w", path, err)
	}
	defer f.Close()
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("safeio: append %s: %w", path, err)
	}
	return f.Sync()
}

// FileLock wraps an exclusive OS-advisory lock on a lock file.
type FileLock struct {
	fl *flock.Flock
}

// NewFileLock returns a FileLock bound to path. The lock is not held until
// Acquire or TryAcquire succeeds.
func NewFileLock(path string) *FileLock {
	return &FileLock{fl: flock.New(path)}
}

// Acquire blocks until the lock is held.
func (l *FileLock) Acquire() error {
	return l.fl.Lock()
}

// TryAcquire attempts a non-blocking acquire. It returns (false, nil) rather
// than an error when the lock is already held by someone else.
func (l *FileLock) TryAcquire() (bool, error) {
	return l.fl.TryLock()
}

// Release drops the lock.
func (l *FileLock) Release() error {
	return l.fl.Unlock()
}
