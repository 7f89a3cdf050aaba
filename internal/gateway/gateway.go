// Package gateway defines the adapter boundary between the agentic loop and
// whatever model-serving transport a front-end wires in. No vendor LLM SDK
// is imported here (spec §1 places model transport out of scope): this is
// the seam a concrete front-end fills in, mirroring the teacher's
// pkg/tools SearchProvider interface-over-implementation pattern.
package gateway

import (
	"context"

	"github.com/chibi-cli/chibi/internal/model"
)

// EventKind distinguishes the pieces of a streamed turn.
type EventKind string

const (
	EventTextDelta     EventKind = "text_delta"
	EventToolCallDelta EventKind = "tool_call_delta"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
)

// ToolCallDelta is one streamed fragment of a tool call, keyed by its
// position in tool_calls[] per spec §4.9.
type ToolCallDelta struct {
	Index        int
	ID           string
	Name         string
	ArgumentsPart string
}

// Event is one unit of a streamed model turn.
type Event struct {
	Kind      EventKind
	TextDelta string
	ToolCall  *ToolCallDelta
	Err       error
}

// Request is what the agentic loop sends to start a turn.
type Request struct {
	Model    string
	Messages []model.Message
	Tools    []any // registry.APITool, kept as any to avoid an import cycle
}

// Client streams a chat completion. Implementations wrap a concrete vendor
// SDK or HTTP transport; none is built in this module.
type Client interface {
	StreamChat(ctx context.Context, req Request) (<-chan Event, error)
	ModelInfo(ctx context.Context, modelName string) (model.ModelMetadata, error)
}
