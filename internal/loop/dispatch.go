package loop

import (
	"context"

	"github.com/chibi-cli/chibi/internal/registry"
	"github.com/chibi-cli/chibi/internal/tools"
)

// Dispatcher executes one resolved tool call. Implemented by whatever wires
// the concrete tool packages (file/coding/agent/vfs/mcp/plugin) together;
// declared here so the loop stays decoupled from every concrete tool
// package's import graph.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result
}

// DispatchFunc adapts a plain function to Dispatcher.
type DispatchFunc func(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result

func (f DispatchFunc) Dispatch(ctx context.Context, entry registry.Entry, args map[string]any) *tools.Result {
	return f(ctx, entry, args)
}
