package coding

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShellExecCapturesOutput(t *testing.T) {
	result := ShellExec(context.Background(), "echo hi", 2*time.Second)
	require.NoError(t, result.Err)

	var parsed ShellResult
	require.NoError(t, json.Unmarshal([]byte(result.ForLLM), &parsed))
	require.Equal(t, "hi\n", parsed.Stdout)
	require.Equal(t, 0, parsed.ExitCode)
	require.False(t, parsed.TimedOut)
}

func TestShellExecNonZeroExit(t *testing.T) {
	result := ShellExec(context.Background(), "exit 3", 2*time.Second)
	require.NoError(t, result.Err)

	var parsed ShellResult
	require.NoError(t, json.Unmarshal([]byte(result.ForLLM), &parsed))
	require.Equal(t, 3, parsed.ExitCode)
}

func TestShellExecTimeout(t *testing.T) {
	result := ShellExec(context.Background(), "sleep 2", 50*time.Millisecond)
	require.NoError(t, result.Err)

	var parsed ShellResult
	require.NoError(t, json.Unmarshal([]byte(result.ForLLM), &parsed))
	require.True(t, parsed.TimedOut)
}

func TestShellExecRequiresCommand(t *testing.T) {
	result := ShellExec(context.Background(), "", time.Second)
	require.Error(t, result.Err)
}
