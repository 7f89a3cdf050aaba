// Package agenttools implements spawn_agent and retrieve_content from spec
// §4.11: spawn_agent creates an isolated sub-context and runs the agentic
// loop over it; retrieve_content reads a previously cached agent result.
// Grounded on the teacher's pkg/tools/spawn_test.go (SubagentManager shape,
// "task is required" validation, async-result convention) generalized to
// this spec's fuel/depth-cycle model.
package agenttools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chibi-cli/chibi/internal/tools"
	"github.com/chibi-cli/chibi/internal/vfs"
)

// MaxAgentDepth bounds CHIBI_AGENT_DEPTH: spawn_agent refuses once the
// calling chain is this deep, preventing a call_agent cycle from recursing
// forever (spec §4.11).
const MaxAgentDepth = 8

// Runner is whatever can execute the agentic loop over a named sub-context
// with an isolated fuel budget. Implemented by internal/loop; declared here
// to avoid a loop<->agenttools import cycle (loop registers this package's
// tools, this package calls back into loop through this seam).
type Runner interface {
	RunSubAgent(ctx context.Context, contextName, prompt string, depth int) (finalText string, cacheID string, err error)
}

// Tools bundles spawn_agent/retrieve_content's dependencies.
type Tools struct {
	Runner Runner
	VFS    *vfs.Vfs
	Caller string
}

// currentDepth reads CHIBI_AGENT_DEPTH from the environment, defaulting to 0.
func currentDepth() int {
	raw := os.Getenv("CHIBI_AGENT_DEPTH")
	if raw == "" {
		return 0
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth < 0 {
		return 0
	}
	return depth
}

// SpawnAgent creates a fresh sub-context named contextName, runs the
// agentic loop over it with prompt, and returns the final assistant text
// plus a cache id for the full transcript.
func (t *Tools) SpawnAgent(ctx context.Context, contextName, prompt string) *tools.Result {
	if strings.TrimSpace(prompt) == "" {
		return tools.ErrorResult("prompt is required")
	}
	if strings.TrimSpace(contextName) == "" {
		return tools.ErrorResult("context is required")
	}
	if t.Runner == nil {
		return tools.ErrorResult("agent runner not configured")
	}

	depth := currentDepth()
	if depth >= MaxAgentDepth {
		return tools.ErrorResult(fmt.Sprintf("max agent depth (%d) exceeded", MaxAgentDepth))
	}

	finalText, cacheID, err := t.Runner.RunSubAgent(ctx, contextName, prompt, depth+1)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("spawn_agent: %v", err))
	}
	if cacheID != "" {
		return tools.OK(fmt.Sprintf("%s\n\n[Full transcript cached: %s]", finalText, cacheID))
	}
	return tools.OK(finalText)
}

// RetrieveContent reads a previously cached agent result by id, subject to
// VFS read permissions (reads are universally allowed, so this mainly
// validates the path and surfaces a not-found error for missing ids).
func (t *Tools) RetrieveContent(ctx context.Context, cacheURI string) *tools.Result {
	p, err := vfs.ParsePathFromURI(cacheURI)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("retrieve_content: %v", err))
	}
	data, err := t.VFS.Read(ctx, t.Caller, p)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("retrieve_content: %v", err))
	}
	return tools.OK(string(data))
}
