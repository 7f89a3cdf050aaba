package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chibi-cli/chibi/internal/mcpbridge"
)

// serverConfigFile is the on-disk shape of mcp_servers.json: a flat list of
// upstream server definitions, each either stdio (command+args) or
// streamable-HTTP (url).
type serverConfigFile struct {
	Servers []struct {
		Name    string   `json:"name"`
		Command string   `json:"command,omitempty"`
		Args    []string `json:"args,omitempty"`
		URL     string   `json:"url,omitempty"`
	} `json:"servers"`
}

func readUpstreamConfigFile(path string) ([]mcpbridge.UpstreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var file serverConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	configs := make([]mcpbridge.UpstreamConfig, 0, len(file.Servers))
	for _, s := range file.Servers {
		configs = append(configs, mcpbridge.UpstreamConfig{
			Name: s.Name, Command: s.Command, Args: s.Args, URL: s.URL,
		})
	}
	return configs, nil
}
