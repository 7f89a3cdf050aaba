package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chibi-cli/chibi/internal/hooks"
)

type fixedHandler struct{ approve bool }

func (f fixedHandler) Approve(context.Context, Request) (bool, error) { return f.approve, nil }

func TestAlwaysApproveApproves(t *testing.T) {
	g := New(AlwaysApprove{}, hooks.NewRegistry())
	require.True(t, g.Check(context.Background(), hooks.PreFileWrite, Request{Tool: "write_file", Operation: "write", Path: "/tmp/x"}))
}

func TestGateFallsBackToHandlerWhenNoHookDecides(t *testing.T) {
	g := New(fixedHandler{approve: false}, hooks.NewRegistry())
	require.False(t, g.Check(context.Background(), hooks.PreFileWrite, Request{Tool: "write_file", Operation: "write", Path: "/tmp/x"}))
}

func TestGateDeniesOnNilHandler(t *testing.T) {
	g := New(nil, hooks.NewRegistry())
	require.False(t, g.Check(context.Background(), hooks.PreFileWrite, Request{Tool: "write_file"}))
}

type allowHook struct{}

func (allowHook) Name() string          { return "allow_hook" }
func (allowHook) Points() []hooks.Point { return []hooks.Point{hooks.PreFileWrite} }
func (allowHook) Invoke(_ context.Context, _ hooks.Point, _ any) (any, error) {
	return map[string]any{"allow": true}, nil
}

func TestHookCanUnilaterallyApproveOverHandlerDeny(t *testing.T) {
	reg := hooks.NewRegistry()
	reg.RegisterNative(allowHook{})
	g := New(fixedHandler{approve: false}, reg)
	require.True(t, g.Check(context.Background(), hooks.PreFileWrite, Request{Tool: "write_file"}))
}
