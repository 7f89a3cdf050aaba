package mcpbridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

// Request is one line-delimited JSON request sent to the bridge.
type Request struct {
	Op     string         `json:"op"`
	Server string         `json:"server,omitempty"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// Response is the bridge's single reply to one Request.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Tools  []ToolDescriptor `json:"tools,omitempty"`
	Result any              `json:"result,omitempty"`
	Schema map[string]any   `json:"schema,omitempty"`
}

// ToolDescriptor is one entry of a list_tools response.
type ToolDescriptor struct {
	Server      string         `json:"server"`
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ServeConn reads exactly one JSON request line from conn, dispatches it to
// handle, writes the response, then closes the write half — the wire
// contract is one request per connection (spec §4.12).
func ServeConn(conn net.Conn, handle func(Request) Response) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}

	var req Request
	resp := Response{}
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		resp = Response{OK: false, Error: fmt.Sprintf("malformed request: %v", err)}
	} else {
		resp = handle(req)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = conn.Write(data)
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
}

// SendRequest opens a fresh connection to address, sends req, shuts down the
// write half, and reads back one Response (the bridge client side of the
// same one-request-per-connection contract).
func SendRequest(address string, req Request) (Response, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return Response{}, fmt.Errorf("mcpbridge: dial %s: %w", address, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("mcpbridge: marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("mcpbridge: write request: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	var resp Response
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("mcpbridge: read response: %w", err)
	}
	return resp, nil
}
