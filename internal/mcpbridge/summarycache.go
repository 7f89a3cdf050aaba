package mcpbridge

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/chibi-cli/chibi/internal/safeio"
)

// SummaryEntry is one persisted row of the summary cache JSONL file.
type SummaryEntry struct {
	Key     string `json:"key"` // server:tool:sha256(schema)[:8]
	Server  string `json:"server"`
	Tool    string `json:"tool"`
	Summary string `json:"summary"`
}

// SchemaKey derives the cache key for one server/tool/schema triple.
func SchemaKey(server, tool string, schema map[string]any) string {
	data, _ := json.Marshal(schema)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s", server, tool, hex.EncodeToString(sum[:])[:8])
}

// SummaryCache is an in-memory index over a JSONL-persisted summary store.
type SummaryCache struct {
	path string

	mu      sync.RWMutex
	entries map[string]string // key -> summary
}

// LoadSummaryCache reads path (if present) into memory.
func LoadSummaryCache(path string) (*SummaryCache, error) {
	c := &SummaryCache{path: path, entries: map[string]string{}}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: open summary cache: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry SummaryEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		c.entries[entry.Key] = entry.Summary
	}
	return c, scanner.Err()
}

// Get returns the cached summary for key, if any.
func (c *SummaryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[key]
	return s, ok
}

// Put records a summary and appends it to the JSONL file.
func (c *SummaryCache) Put(key, server, tool, summary string) error {
	c.mu.Lock()
	c.entries[key] = summary
	c.mu.Unlock()

	data, err := json.Marshal(SummaryEntry{Key: key, Server: server, Tool: tool, Summary: summary})
	if err != nil {
		return err
	}
	return safeio.AppendLine(c.path, string(data))
}

// Missing returns which of the given descriptors have no cached summary yet.
func (c *SummaryCache) Missing(descs []ToolDescriptor) []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []ToolDescriptor
	for _, d := range descs {
		key := SchemaKey(d.Server, d.Tool, d.Parameters)
		if _, ok := c.entries[key]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}

// ApplyTo replaces each descriptor's Description with its cached summary,
// when one exists, leaving the original description otherwise.
func (c *SummaryCache) ApplyTo(descs []ToolDescriptor) []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolDescriptor, len(descs))
	for i, d := range descs {
		key := SchemaKey(d.Server, d.Tool, d.Parameters)
		if s, ok := c.entries[key]; ok {
			d.Description = s
		}
		out[i] = d
	}
	return out
}
