// Package permission implements the single chokepoint mutating file-system
// and shell operations pass through (spec §4.10): a PermissionHandler
// consulted after any pre_file_write hook has had a chance to unilaterally
// allow or deny.
package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/chibi-cli/chibi/internal/hooks"
)

// Request describes the operation a PermissionHandler is asked to approve.
type Request struct {
	Tool      string `json:"tool"`
	Operation string `json:"operation"`
	Path      string `json:"path,omitempty"`
}

// Handler decides whether a gated operation may proceed.
type Handler interface {
	Approve(ctx context.Context, req Request) (bool, error)
}

// AlwaysApprove is the programmatic-mode handler: the JSON front-end's
// documented "trust mode" (spec §4.10).
type AlwaysApprove struct{}

func (AlwaysApprove) Approve(context.Context, Request) (bool, error) { return true, nil }

// InteractivePrompt asks y/N on a terminal. A non-TTY input stream denies
// fail-safe rather than blocking on a read that will never resolve.
type InteractivePrompt struct {
	In  *os.File
	Out io.Writer
}

// NewInteractivePrompt wires stdin/stdout as the prompt's streams.
func NewInteractivePrompt() *InteractivePrompt {
	return &InteractivePrompt{In: os.Stdin, Out: os.Stdout}
}

func (p *InteractivePrompt) Approve(_ context.Context, req Request) (bool, error) {
	if p.In == nil || !isatty.IsTerminal(p.In.Fd()) {
		return false, nil
	}
	fmt.Fprintf(p.Out, "Allow %s to %s %s? [y/N] ", req.Tool, req.Operation, req.Path)
	reader := bufio.NewReader(p.In)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return line == "y\n" || line == "Y\n" || line == "y" || line == "Y", nil
}

// Gate is the chokepoint: it fires the given hook point (pre_file_write for
// every gated mutation, since pre_shell is not among the fixed hook points)
// and only falls through to the handler if no hook decided the outcome
// unilaterally.
type Gate struct {
	Handler Handler
	Hooks   *hooks.Registry
}

func New(handler Handler, registry *hooks.Registry) *Gate {
	return &Gate{Handler: handler, Hooks: registry}
}

// Check runs the gate for req, firing point (pre_file_write).
// Deny is fail-safe: any hook/handler error denies rather than panics.
func (g *Gate) Check(ctx context.Context, point hooks.Point, req Request) bool {
	if g.Hooks != nil {
		results := g.Hooks.Fire(ctx, point, req)
		if decision, ok := hooks.FindAllow(results); ok {
			return decision.Allow
		}
	}
	if g.Handler == nil {
		return false
	}
	ok, err := g.Handler.Approve(ctx, req)
	if err != nil {
		return false
	}
	return ok
}
