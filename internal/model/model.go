// Package model holds Chibi's persistent data shapes (spec §3): contexts,
// messages, transcript entries, tools, cache entries, inbox entries, and the
// codebase index records. These are plain structs serialised as JSON/JSONL;
// behavior lives in the owning package (context, toolcache, inbox, index).
package model

import "time"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single function-call request emitted by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON text, accumulated from stream deltas
}

// Message is one entry in a Context's ordered conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// DestroyPolicyKind selects how a Context's auto-destroy policy is evaluated.
type DestroyPolicyKind string

const (
	DestroyNever   DestroyPolicyKind = "never"
	DestroyAt      DestroyPolicyKind = "at"
	DestroyInactiv DestroyPolicyKind = "after_inactive"
	DestroyCron    DestroyPolicyKind = "cron"
)

// DestroyPolicy is a Context's auto-destroy rule (spec §3). CronExpr
// supplements the at/after_inactive kinds the distillation named with a
// standard five-field cron expression, for contexts that should be swept on
// a recurring schedule (e.g. nightly scratch contexts) rather than a single
// epoch or inactivity window.
type DestroyPolicy struct {
	Kind            DestroyPolicyKind `json:"kind"`
	AtEpoch         int64             `json:"at_epoch,omitempty"`
	InactiveSeconds int64             `json:"inactive_seconds,omitempty"`
	CronExpr        string            `json:"cron_expr,omitempty"`
}

// VcsSnapshot records the git commit active when a context was last touched.
// Supplemented from original_source's vcs.rs; best-effort, never fatal.
type VcsSnapshot struct {
	Commit string `json:"commit,omitempty"`
	Dirty  bool   `json:"dirty,omitempty"`
}

// ContextMeta is the sidecar metadata for a Context, persisted as
// context_meta.json.
type ContextMeta struct {
	Name          string        `json:"name"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastActive    time.Time     `json:"last_active"`
	Destroy       DestroyPolicy `json:"destroy"`
	Vcs           *VcsSnapshot  `json:"vcs,omitempty"`
	DebugDestroyAt *int64       `json:"debug_destroy_at,omitempty"`
}

// Context is the in-memory representation of a named conversation (spec §3).
type Context struct {
	Name      string
	Messages  []Message
	Meta      ContextMeta
	Summary   string
	Dirty     bool
}

// EntryType classifies a TranscriptEntry.
type EntryType string

const (
	EntryMessage     EntryType = "message"
	EntryToolCall    EntryType = "tool_call"
	EntryToolResult  EntryType = "tool_result"
	EntryCompaction  EntryType = "compaction"
	EntrySystem      EntryType = "system"
)

// TranscriptEntry is one append-only log record (spec §3).
type TranscriptEntry struct {
	ID         string         `json:"id"`
	EpochMS    int64          `json:"epoch_ms"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Content    string         `json:"content"`
	Type       EntryType      `json:"entry_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ToolMetadata carries the behavioural flags a Tool declares.
type ToolMetadata struct {
	Parallel     bool `json:"parallel,omitempty"`
	FlowControl  bool `json:"flow_control,omitempty"`
	EndsTurn     bool `json:"ends_turn,omitempty"`
}

// Tool describes one registered tool (spec §3).
type Tool struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Parameters     map[string]any `json:"parameters"`
	InvocationPath string         `json:"invocation_path"`
	Hooks          []string       `json:"hooks,omitempty"`
	Metadata       ToolMetadata   `json:"metadata,omitempty"`
	SummaryParams  []string       `json:"summary_params,omitempty"`
}

// CacheEntry is the metadata sidecar for one tool-output cache item (spec §3).
type CacheEntry struct {
	ID            string    `json:"id"`
	ToolName      string    `json:"tool_name"`
	Timestamp     time.Time `json:"timestamp"`
	ArgsHash      string    `json:"args_hash"`
	CharCount     int       `json:"char_count"`
	TokenEstimate int       `json:"token_estimate"`
	LineCount     int       `json:"line_count"`
	LastAccessed  time.Time `json:"last_accessed_at"`
}

// InboxEntry is one queued cross-context message (spec §3).
type InboxEntry struct {
	ID          string         `json:"id"`
	FromContext string         `json:"from_context"`
	Content     string         `json:"content"`
	SentEpoch   int64          `json:"sent_epoch"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// FileRecord is one row of the codebase index's files table.
type FileRecord struct {
	ID        int64
	Path      string
	Lang      string
	Mtime     int64
	Size      int64
	Hash      string
	IndexedAt time.Time
}

// SymbolRecord is one row of the codebase index's symbols table.
type SymbolRecord struct {
	ID         int64
	FileID     int64
	ParentID   *int64
	Name       string
	Kind       string
	LineStart  int
	LineEnd    int
	Signature  string
	Visibility string
}

// RefRecord is one row of the codebase index's refs table.
type RefRecord struct {
	ID         int64
	FromFileID int64
	FromLine   int
	ToName     string
	Kind       string
}

// ParamAvailability classifies how a model parameter may be set.
type ParamAvailability string

const (
	ParamMutableRange ParamAvailability = "mutable_range"
	ParamReadOnly     ParamAvailability = "read_only"
	ParamOpaque       ParamAvailability = "opaque"
	ParamUnsupported  ParamAvailability = "unsupported"
)

// ModelMetadata is a read-only snapshot of one model's capabilities, as
// reported by the gateway.
type ModelMetadata struct {
	Provider        string                       `json:"provider"`
	ContextWindow   int                           `json:"context_window"`
	MaxOutputTokens int                           `json:"max_output_tokens"`
	Parameters      map[string]ParamAvailability  `json:"parameters"`
	Pricing         map[string]float64            `json:"pricing"`
}
