package registry

import "github.com/chibi-cli/chibi/internal/model"

// strParam is a minimal JSON-schema string parameter, used by the static
// built-in tables below.
func strParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objSchema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// BuiltinTools is the seed menu of core built-ins from spec §4.6. It is
// exemplary, not exhaustive (spec §9 open question): Registry.Register
// accepts further tools to grow the menu.
func BuiltinTools() []model.Tool {
	return []model.Tool{
		{
			Name:        "update_reflection",
			Description: "Replace the context's persisted self-critique note.",
			Parameters:  objSchema([]string{"content"}, map[string]any{"content": strParam("New reflection markdown.")}),
		},
		{
			Name:        "update_todos",
			Description: "Replace the context's todo list.",
			Parameters:  objSchema([]string{"content"}, map[string]any{"content": strParam("New todos markdown.")}),
		},
		{
			Name:        "update_goals",
			Description: "Replace the context's goals document.",
			Parameters:  objSchema([]string{"content"}, map[string]any{"content": strParam("New goals markdown.")}),
		},
		{
			Name:        "send_message",
			Description: "Deliver a message to another context's inbox.",
			Parameters: objSchema([]string{"to_context", "content"}, map[string]any{
				"to_context": strParam("Target context name."),
				"content":    strParam("Message body."),
			}),
		},
		{
			Name:        "model_info",
			Description: "Report the current model's metadata snapshot.",
			Parameters:  objSchema(nil, map[string]any{}),
		},
		{
			Name:        "call_agent",
			Description: "Hand off the remainder of this turn to a named sub-agent context.",
			Parameters: objSchema([]string{"context", "prompt"}, map[string]any{
				"context": strParam("Sub-agent context name."),
				"prompt":  strParam("Prompt for the sub-agent."),
			}),
			Metadata: model.ToolMetadata{FlowControl: true},
		},
		{
			Name:        "call_user",
			Description: "End the turn and hand control back to the user.",
			Parameters:  objSchema(nil, map[string]any{}),
			Metadata:    model.ToolMetadata{FlowControl: true, EndsTurn: true},
		},
	}
}

// RegisterBuiltins registers every tool in BuiltinTools under TagBuiltin.
func (r *Registry) RegisterBuiltins() {
	for _, t := range BuiltinTools() {
		r.Register(t, TagBuiltin)
	}
}
