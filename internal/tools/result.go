// Package tools holds the shared ToolResult shape used by every concrete
// tool implementation (file, coding, agent), grounded on the teacher's
// pkg/tools ToolResult{ForLLM, Err} convention.
package tools

// Result is what a tool execution hands back to the dispatcher: the text
// the model sees, and an error for logging/classification. A non-nil Err
// with empty ForLLM still produces a tool-result message (spec §7: tool
// failures become normal tool-result messages, not aborts).
type Result struct {
	ForLLM string
	Err    error
}

// OK wraps a successful result.
func OK(forLLM string) *Result { return &Result{ForLLM: forLLM} }

// ErrorResult wraps a failure; ForLLM carries the error text so the model
// can react to it directly.
func ErrorResult(msg string) *Result { return &Result{ForLLM: msg, Err: errString(msg)} }

type errString string

func (e errString) Error() string { return string(e) }
