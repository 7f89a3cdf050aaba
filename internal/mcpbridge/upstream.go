package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// UpstreamConfig describes one configured upstream MCP server: either a
// local stdio child process, or a remote streamable-HTTP endpoint.
type UpstreamConfig struct {
	Name    string
	Command string   // stdio: executable path
	Args    []string // stdio: arguments
	URL     string   // streamable HTTP: endpoint, mutually exclusive with Command
}

// Upstream is a live connection to one MCP server, wrapping the official
// go-sdk client (spec §4.12 names modelcontextprotocol/go-sdk explicitly for
// this seam).
type Upstream struct {
	Name    string
	client  *gosdk.Client
	session *gosdk.ClientSession
}

var clientImpl = &gosdk.Implementation{Name: "chibi-mcp-bridge", Version: "1.0.0"}

// Dial connects to cfg's upstream server, picking stdio or streamable-HTTP
// transport based on which fields are set.
func Dial(ctx context.Context, cfg UpstreamConfig) (*Upstream, error) {
	client := gosdk.NewClient(clientImpl, nil)

	var (
		session *gosdk.ClientSession
		err     error
	)
	switch {
	case cfg.Command != "":
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		session, err = client.Connect(ctx, &gosdk.CommandTransport{Command: cmd}, nil)
	case cfg.URL != "":
		transport := gosdk.NewStreamableClientTransport(cfg.URL, nil)
		session, err = client.Connect(ctx, transport, nil)
	default:
		return nil, fmt.Errorf("mcpbridge: upstream %q has neither command nor url configured", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: connect to upstream %q: %w", cfg.Name, err)
	}

	return &Upstream{Name: cfg.Name, client: client, session: session}, nil
}

// Close tears down the upstream session.
func (u *Upstream) Close() error {
	if u.session == nil {
		return nil
	}
	return u.session.Close()
}

// ListTools returns this upstream server's tool descriptors.
func (u *Upstream) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	result, err := u.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: list_tools on %q: %w", u.Name, err)
	}

	descs := make([]ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		var params map[string]any
		if t.InputSchema != nil {
			params = schemaToMap(t.InputSchema)
		}
		descs = append(descs, ToolDescriptor{
			Server:      u.Name,
			Tool:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return descs, nil
}

// CallTool invokes one tool on this upstream and returns its textual result.
func (u *Upstream) CallTool(ctx context.Context, tool string, args map[string]any) (string, error) {
	result, err := u.session.CallTool(ctx, &gosdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcpbridge: call_tool %s:%s: %w", u.Name, tool, err)
	}
	if result.IsError {
		return "", fmt.Errorf("mcpbridge: tool %s:%s returned an error result", u.Name, tool)
	}

	var text string
	for _, c := range result.Content {
		if tc, ok := c.(*gosdk.TextContent); ok {
			text += tc.Text
		}
	}
	return text, nil
}

// GetSchema returns the raw JSON-schema parameters for one tool, looked up
// via ListTools (the go-sdk has no single-tool schema endpoint).
func (u *Upstream) GetSchema(ctx context.Context, tool string) (map[string]any, error) {
	descs, err := u.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		if d.Tool == tool {
			return d.Parameters, nil
		}
	}
	return nil, fmt.Errorf("mcpbridge: tool %q not found on %q", tool, u.Name)
}

// schemaToMap converts the SDK's JSON-schema value into a plain map for our
// wire protocol, via a JSON round-trip to avoid depending on its concrete type.
func schemaToMap(schema any) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
