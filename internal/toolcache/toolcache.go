// Package toolcache implements the threshold-based Tool Output Cache (spec
// §4.4): oversized tool results are written to the VFS under SYSTEM identity
// and replaced with a short stub pointing at the cache entry.
package toolcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chibi-cli/chibi/internal/chibierr"
	"github.com/chibi-cli/chibi/internal/hooks"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
	"github.com/chibi-cli/chibi/internal/vfs"
)

// previewChars is how many leading characters of a cached result are shown
// in the stub, truncated at the last newline before that cutoff.
const previewChars = 500

// Cache stores oversized tool results in the VFS under
// /sys/tool_cache/<context>/<id> with a JSON metadata sidecar.
type Cache struct {
	vfs          *vfs.Vfs
	hookRegistry *hooks.Registry
	Threshold    int // tool_output_cache_threshold, in characters
}

// New returns a Cache backed by v, enforcing threshold characters before a
// result is cached.
func New(v *vfs.Vfs, registry *hooks.Registry, threshold int) *Cache {
	return &Cache{vfs: v, hookRegistry: registry, Threshold: threshold}
}

func (c *Cache) zonePath(contextName, id string) vfs.Path {
	return vfs.MustPath(fmt.Sprintf("/sys/tool_cache/%s/%s", contextName, id))
}

func (c *Cache) metaPath(contextName, id string) vfs.Path {
	return vfs.MustPath(fmt.Sprintf("/sys/tool_cache/%s/%s.meta.json", contextName, id))
}

// ShouldCache reports whether a tool result must be cached: non-blank and
// longer than Threshold characters (spec §8 invariant "cache threshold").
func (c *Cache) ShouldCache(result string) bool {
	return strings.TrimSpace(result) != "" && len(result) > c.Threshold
}

// argsHash32 is a short, stable hash of a tool's call arguments, used in the
// cache id.
func argsHash32(args string) string {
	sum := sha256.Sum256([]byte(args))
	return fmt.Sprintf("%x", sum)[:8]
}

// Put stores result under a new cache id and returns the stub text to give
// the model instead. contextName is the owning context; toolName and
// argsJSON feed the cache id; now is the observation time (injected so
// callers control it instead of calling time.Now() inside this package).
func (c *Cache) Put(ctx context.Context, contextName, toolName, argsJSON, result string, now time.Time) (string, *model.CacheEntry, error) {
	if c.hookRegistry != nil {
		results := c.hookRegistry.Fire(ctx, hooks.PreCacheOutput, map[string]any{
			"context": contextName, "tool": toolName, "char_count": len(result),
		})
		if d, ok := hooks.FindAllow(results); ok && !d.Allow {
			return result, nil, nil
		}
	}

	id := fmt.Sprintf("%s_%x_%s", toolName, now.Unix(), argsHash32(argsJSON))
	lineCount := strings.Count(result, "\n") + 1
	entry := model.CacheEntry{
		ID:            id,
		ToolName:      toolName,
		Timestamp:     now,
		ArgsHash:      argsHash32(argsJSON),
		CharCount:     len(result),
		TokenEstimate: len(result) / 4,
		LineCount:     lineCount,
		LastAccessed:  now,
	}

	contentPath := c.zonePath(contextName, id)
	if err := c.vfs.Write(ctx, vfs.System, contentPath, []byte(result)); err != nil {
		return "", nil, err
	}
	metaData, err := json.Marshal(entry)
	if err != nil {
		return "", nil, chibierr.Wrap(chibierr.Fatal, "toolcache", err)
	}
	if err := c.vfs.Write(ctx, vfs.System, c.metaPath(contextName, id), metaData); err != nil {
		return "", nil, err
	}

	uri := vfs.URI(contentPath)
	preview := truncatePreview(result, previewChars)
	stub := fmt.Sprintf(
		"[Output cached: %s]\nTool: %s | Size: %d chars, ~%d/4 tokens | Lines: %d\nPreview:\n---\n%s\n---\nUse file_head, file_tail, file_lines, file_grep with path=\"%s\" to examine.",
		uri, toolName, entry.CharCount, entry.CharCount, entry.LineCount, preview, uri)

	if c.hookRegistry != nil {
		c.hookRegistry.Fire(ctx, hooks.PostCacheOutput, map[string]any{
			"context": contextName, "tool": toolName, "id": id,
		})
	}

	return stub, &entry, nil
}

// truncatePreview returns the first n characters of s, then backs off to the
// last newline so the preview never ends mid-line.
func truncatePreview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

// Read fetches a cached entry's content and refreshes LastAccessed
// best-effort (failure to update metadata does not fail the read).
func (c *Cache) Read(ctx context.Context, contextName, id string) ([]byte, error) {
	data, err := c.vfs.Read(ctx, vfs.System, c.zonePath(contextName, id))
	if err != nil {
		return nil, err
	}
	c.touch(ctx, contextName, id)
	return data, nil
}

func (c *Cache) touch(ctx context.Context, contextName, id string) {
	metaBytes, err := c.vfs.Read(ctx, vfs.System, c.metaPath(contextName, id))
	if err != nil {
		return
	}
	var entry model.CacheEntry
	if err := json.Unmarshal(metaBytes, &entry); err != nil {
		return
	}
	entry.LastAccessed = time.Now()
	out, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = c.vfs.Write(ctx, vfs.System, c.metaPath(contextName, id), out)
}

// entryWithPaths pairs a decoded CacheEntry with the VFS paths backing it,
// for the sweep below.
type entryWithPaths struct {
	entry       model.CacheEntry
	contentPath vfs.Path
	metaPath    vfs.Path
	size        int64
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	AgedOut int
	LRUOut  int
	Orphans int
}

// Sweep removes cache entries older than maxAge, then trims remaining
// entries by least-recently-accessed until the total size is <= maxBytes.
// Partial ".tmp" leftovers and mismatched content/metadata pairs (an orphan
// of either side) are removed unconditionally. Age eviction always runs
// before the LRU pass, per spec §4.4.
func (c *Cache) Sweep(ctx context.Context, contextName string, maxAge time.Duration, maxBytes int64, now time.Time) (SweepResult, error) {
	var result SweepResult

	listing, err := c.vfs.List(ctx, vfs.System, vfs.MustPath(fmt.Sprintf("/sys/tool_cache/%s", contextName)))
	if err != nil {
		if chibierr.Is(err, chibierr.NotFound) {
			return result, nil
		}
		return result, err
	}

	contentNames := map[string]bool{}
	metaNames := map[string]bool{}
	for _, e := range listing {
		switch {
		case strings.HasSuffix(e.Name, ".meta.json"):
			metaNames[strings.TrimSuffix(e.Name, ".meta.json")] = true
		case strings.HasSuffix(e.Name, ".tmp"):
			p := vfs.MustPath(fmt.Sprintf("/sys/tool_cache/%s/%s", contextName, e.Name))
			_ = c.vfs.Delete(ctx, vfs.System, p)
			result.Orphans++
		default:
			contentNames[e.Name] = true
		}
	}

	// Orphans: metadata without content, or content without metadata.
	for id := range contentNames {
		if !metaNames[id] {
			_ = c.vfs.Delete(ctx, vfs.System, c.zonePath(contextName, id))
			result.Orphans++
			delete(contentNames, id)
		}
	}
	for id := range metaNames {
		if !contentNames[id] {
			_ = c.vfs.Delete(ctx, vfs.System, c.metaPath(contextName, id))
			result.Orphans++
			delete(metaNames, id)
		}
	}

	var live []entryWithPaths
	for id := range contentNames {
		metaBytes, err := c.vfs.Read(ctx, vfs.System, c.metaPath(contextName, id))
		if err != nil {
			continue
		}
		var entry model.CacheEntry
		if err := json.Unmarshal(metaBytes, &entry); err != nil {
			continue
		}

		contentPath := c.zonePath(contextName, id)
		metaPath := c.metaPath(contextName, id)

		if now.Sub(entry.Timestamp) > maxAge {
			_ = c.vfs.Delete(ctx, vfs.System, contentPath)
			_ = c.vfs.Delete(ctx, vfs.System, metaPath)
			result.AgedOut++
			continue
		}

		md, err := c.vfs.Metadata(ctx, vfs.System, contentPath)
		size := entry.CharCount
		if err == nil {
			size = int(md.Size)
		}
		live = append(live, entryWithPaths{entry: entry, contentPath: contentPath, metaPath: metaPath, size: int64(size)})
	}

	var total int64
	for _, e := range live {
		total += e.size
	}
	if total <= maxBytes {
		return result, nil
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].entry.LastAccessed.Before(live[j].entry.LastAccessed)
	})
	for _, e := range live {
		if total <= maxBytes {
			break
		}
		_ = c.vfs.Delete(ctx, vfs.System, e.contentPath)
		_ = c.vfs.Delete(ctx, vfs.System, e.metaPath)
		total -= e.size
		result.LRUOut++
	}

	logx.InfoCF("toolcache", "sweep complete", map[string]any{
		"context": contextName, "aged_out": result.AgedOut, "lru_out": result.LRUOut, "orphans": result.Orphans,
	})
	return result, nil
}

// StubURI extracts the VFS URI a stub points at, for callers that only have
// the stub text (e.g. a hook wanting to resolve the cached content).
func StubURI(stub string) (string, bool) {
	const marker = "[Output cached: "
	idx := strings.Index(stub, marker)
	if idx < 0 {
		return "", false
	}
	rest := stub[idx+len(marker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
