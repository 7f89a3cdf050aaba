package registry

import (
	"fmt"

	"github.com/chibi-cli/chibi/internal/model"
)

// MCPToolDescriptor is one tool reported by the MCP bridge's list_tools
// response (spec §4.12).
type MCPToolDescriptor struct {
	Server      string
	Tool        string
	Description string
	Parameters  map[string]any
}

// RegisterMCPTools registers bridge-reported tools under virtual URIs
// "mcp://<server>/<tool>", tagged TagMCP. Bridge unavailability is handled
// by the caller simply passing an empty slice — registration itself never
// fails.
func (r *Registry) RegisterMCPTools(descs []MCPToolDescriptor) {
	for _, d := range descs {
		r.Register(model.Tool{
			Name:           fmt.Sprintf("%s__%s", d.Server, d.Tool),
			Description:    d.Description,
			Parameters:     d.Parameters,
			InvocationPath: fmt.Sprintf("mcp://%s/%s", d.Server, d.Tool),
		}, TagMCP)
	}
}

// IsMCPPath reports whether path is a virtual MCP URI.
func IsMCPPath(path string) bool {
	return len(path) > len("mcp://") && path[:len("mcp://")] == "mcp://"
}
