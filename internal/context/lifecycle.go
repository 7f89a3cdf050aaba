package context

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
)

// Touch updates last_active in the context's metadata sidecar. debugDestroyAt,
// when non-nil, overrides the destroy-at epoch used by Sweep (test hook).
func Touch(dir string, meta *model.ContextMeta, debugDestroyAt *int64) error {
	meta.LastActive = time.Now()
	if debugDestroyAt != nil {
		meta.DebugDestroyAt = debugDestroyAt
	}
	return saveMeta(dir, *meta)
}

// Destroy removes a context's directory entirely and fires on_destroy-style
// hooks via OnEnd (the closest fixed hook point to a per-context teardown).
func Destroy(ctx context.Context, hookReg *hooks.Registry, dir, name string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("context: destroy %s: %w", dir, err)
	}
	if hookReg != nil {
		hookReg.Fire(ctx, hooks.OnEnd, map[string]any{"context": name, "reason": "destroyed"})
	}
	return nil
}

// Rename moves a context's directory from oldDir to newDir and updates the
// name recorded in its metadata sidecar.
func Rename(oldDir, newDir, newName string) error {
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("context: rename %s -> %s: %w", oldDir, newDir, err)
	}
	meta, err := loadMeta(newDir, newName)
	if err != nil {
		return err
	}
	meta.Name = newName
	return saveMeta(newDir, meta)
}

// SweepResult reports what an auto-destroy sweep did.
type SweepResult struct {
	Destroyed []string
	Scanned   int
}

// Sweep walks homeDir's immediate subdirectories, treating each as one
// context's directory, and destroys any whose destroy policy has elapsed
// (spec §4.7 auto-destroy sweep). chibi.New runs it once at process start.
func Sweep(ctx context.Context, hookReg *hooks.Registry, homeDir string) (SweepResult, error) {
	var result SweepResult

	entries, err := os.ReadDir(homeDir)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("context: read %s: %w", homeDir, err)
	}

	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result.Scanned++
		name := entry.Name()
		dir := filepath.Join(homeDir, name)

		meta, err := loadMeta(dir, name)
		if err != nil {
			logx.WarnCF("context", "sweep: failed to load metadata, skipping", map[string]any{"dir": dir, "error": err.Error()})
			continue
		}

		if !shouldDestroy(meta, now) {
			continue
		}
		if err := Destroy(ctx, hookReg, dir, name); err != nil {
			logx.WarnCF("context", "sweep: failed to destroy expired context", map[string]any{"dir": dir, "error": err.Error()})
			continue
		}
		result.Destroyed = append(result.Destroyed, name)
	}
	return result, nil
}

func shouldDestroy(meta model.ContextMeta, now time.Time) bool {
	if meta.DebugDestroyAt != nil {
		return now.Unix() >= *meta.DebugDestroyAt
	}
	switch meta.Destroy.Kind {
	case model.DestroyAt:
		return meta.Destroy.AtEpoch > 0 && now.Unix() >= meta.Destroy.AtEpoch
	case model.DestroyInactiv:
		if meta.Destroy.InactiveSeconds <= 0 {
			return false
		}
		return now.Sub(meta.LastActive) >= time.Duration(meta.Destroy.InactiveSeconds)*time.Second
	case model.DestroyCron:
		return cronHasTicked(meta.Destroy.CronExpr, meta.LastActive, now)
	default:
		return false
	}
}

// cronHasTicked reports whether expr's schedule has a tick falling between
// since and now, e.g. a "destroy nightly at 03:00" policy elapsing once the
// context has sat untouched past that tick.
func cronHasTicked(expr string, since, now time.Time) bool {
	if expr == "" {
		return false
	}
	next, err := gronx.NextTickAfter(expr, since, false)
	if err != nil {
		logx.WarnCF("context", "invalid cron destroy expression", map[string]any{"expr": expr, "error": err.Error()})
		return false
	}
	return !next.After(now)
}
