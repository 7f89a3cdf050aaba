// Command chibi-mcp-bridge is the long-lived daemon multiplexing upstream
// MCP servers behind Chibi's line-delimited JSON/TCP protocol (spec §4.12).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/mcpbridge"
)

func newRootCommand() *cobra.Command {
	var (
		chibiHome   string
		idleMinutes int
	)

	cmd := &cobra.Command{
		Use:   "chibi-mcp-bridge",
		Short: "multiplex MCP servers behind Chibi's bridge protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(chibiHome, time.Duration(idleMinutes)*time.Minute)
		},
	}

	home, _ := os.UserHomeDir()
	cmd.Flags().StringVar(&chibiHome, "chibi-home", filepath.Join(home, ".chibi"), "Chibi home directory")
	cmd.Flags().IntVar(&idleMinutes, "idle-timeout-minutes", 30, "exit after this many minutes with no connections")
	return cmd
}

func run(chibiHome string, idleTimeout time.Duration) error {
	if err := os.MkdirAll(chibiHome, 0o755); err != nil {
		return fmt.Errorf("mkdir chibi home: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configs, err := loadUpstreamConfigs(chibiHome)
	if err != nil {
		logx.WarnCF("mcp-bridge", "failed to load upstream config, starting with none", map[string]any{"error": err.Error()})
	}

	cache, err := mcpbridge.LoadSummaryCache(filepath.Join(chibiHome, "mcp_summaries.jsonl"))
	if err != nil {
		return fmt.Errorf("load summary cache: %w", err)
	}

	server, err := mcpbridge.NewServer(ctx, chibiHome, cache, configs, idleTimeout)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer server.Close()

	job := mcpbridge.NewSummarizeJob(cache, nil, "", server.AllToolDescriptors)
	if job.Gateway != nil {
		go job.Run(ctx)
	}

	logx.InfoCF("mcp-bridge", "listening", map[string]any{"upstreams": len(configs)})
	return server.Listen(ctx)
}

// loadUpstreamConfigs reads <chibi_home>/mcp_servers.json (a simple
// front-end-authored config), absent by default — an empty bridge is still
// useful as a no-op target for callers that query list_tools.
func loadUpstreamConfigs(chibiHome string) ([]mcpbridge.UpstreamConfig, error) {
	path := filepath.Join(chibiHome, "mcp_servers.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return readUpstreamConfigFile(path)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
