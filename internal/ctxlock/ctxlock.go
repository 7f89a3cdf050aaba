// Package ctxlock implements the Context Lock (spec §4.2): process-level
// ownership of a context directory, with a heartbeat thread and stale-lock
// recovery. Grounded on original_source's lock.rs plus the teacher's
// goroutine-lifecycle idiom (context.Context + done channel teardown).
package ctxlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chibi-cli/chibi/internal/chibierr"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/safeio"
)

const lockFileName = ".lock"

// Status is the result of GetStatus.
type Status string

const (
	StatusActive Status = "active"
	StatusStale  Status = "stale"
	StatusNone   Status = "none"
)

// freshFactor is how many heartbeat intervals a lock stays "fresh" before
// it is considered stale and recoverable (spec §4.2: 1.5 * heartbeat_s).
const freshFactor = 1.5

// Lock represents an acquired context lock. Call Release to drop it.
type Lock struct {
	path          string
	heartbeat     time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

func lockPath(dir string) string {
	return filepath.Join(dir, lockFileName)
}

func readTimestamp(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, chibierr.New(chibierr.Corrupted, "ctxlock", "malformed lock timestamp: %v", err)
	}
	return time.Unix(sec, 0), nil
}

func writeTimestamp(path string, t time.Time) error {
	return safeio.AtomicWriteText(path, strconv.FormatInt(t.Unix(), 10))
}

func isFresh(ts time.Time, now time.Time, heartbeat time.Duration) bool {
	return now.Sub(ts) <= time.Duration(float64(heartbeat)*freshFactor)
}

// GetStatus reports whether dir currently holds an active, stale, or absent
// lock, given the heartbeat interval the lock was (or would be) taken with.
func GetStatus(dir string, heartbeat time.Duration) Status {
	ts, err := readTimestamp(lockPath(dir))
	if err != nil {
		return StatusNone
	}
	if isFresh(ts, time.Now(), heartbeat) {
		return StatusActive
	}
	return StatusStale
}

// Acquire takes the context lock for dir. If a fresh lock file already
// exists, it fails with an AlreadyExists error. A stale lock file (written
// more than 1.5*heartbeat ago) is removed and replaced. A background
// goroutine rewrites the timestamp every heartbeat until Release is called.
func Acquire(dir string, heartbeat time.Duration) (*Lock, error) {
	path := lockPath(dir)

	if ts, err := readTimestamp(path); err == nil && isFresh(ts, time.Now(), heartbeat) {
		return nil, chibierr.New(chibierr.AlreadyExists, "ctxlock", "context %q already locked", dir)
	}
	// Either no lock file, unreadable, or stale: (re)claim it.
	_ = os.Remove(path)
	now := time.Now()
	if err := writeTimestamp(path, now); err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "ctxlock", err)
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	l := &Lock{path: path, heartbeat: heartbeat, cancel: cancel, done: make(chan struct{})}
	go l.heartbeatLoop(hbCtx)
	return l, nil
}

func (l *Lock) heartbeatLoop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeTimestamp(l.path, time.Now()); err != nil {
				logx.ErrorCF("ctxlock", "heartbeat rewrite failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// Release stops the heartbeat goroutine, waits for it to exit, then removes
// the lock file.
func (l *Lock) Release() error {
	l.cancel()
	<-l.done
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ctxlock: remove %s: %w", l.path, err)
	}
	return nil
}
