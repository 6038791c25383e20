package tool_bash

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/shell"
)

func newBash(t *testing.T, timeout time.Duration) agent.Tool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("bash tool tests need a POSIX shell")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	tool, err := Tool(shell.Options{Timeout: timeout, StderrGrace: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(tool.Reset)
	return tool
}

func TestBashTool(t *testing.T) {
	tool := newBash(t, 10*time.Second)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr string
	}{
		{name: "echo", args: map[string]any{"command": "echo hello"}, want: "hello"},
		{name: "export", args: map[string]any{"command": "export X=1"}, want: ""},
		{name: "state persists", args: map[string]any{"command": "echo $X"}, want: "1"},
		{name: "stderr", args: map[string]any{"command": "echo out; echo err >&2"}, want: "out\nstderr:\nerr"},
		{name: "non-zero exit", args: map[string]any{"command": "echo partial; false"}, wantErr: "command exited with code 1\npartial"},
		{name: "empty", args: map[string]any{"command": "  "}, wantErr: "no command provided"},
		{name: "restart", args: map[string]any{"restart": true}, want: "tool has been restarted."},
		{name: "state cleared by restart", args: map[string]any{"command": "echo ${X:-unset}"}, want: "unset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Execute(ctx, tt.args)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBashRestartsAfterExit(t *testing.T) {
	tool := newBash(t, 10*time.Second)
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{"command": "exit 2"})
	assert.EqualError(t, err, "command exited with code 2")

	got, err := tool.Execute(ctx, map[string]any{"command": "echo back"})
	require.NoError(t, err)
	assert.Equal(t, "back", got)
}

func TestBashTimeoutNeedsRestart(t *testing.T) {
	tool := newBash(t, 200*time.Millisecond)
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{"command": "sleep 5"})
	assert.ErrorIs(t, err, shell.ErrTimeout)
	_, err = tool.Execute(ctx, map[string]any{"command": "echo hi"})
	assert.ErrorIs(t, err, shell.ErrTimeout)

	_, err = tool.Execute(ctx, map[string]any{"restart": true})
	require.NoError(t, err)
	got, err := tool.Execute(ctx, map[string]any{"command": "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestBashDescriptiveMessage(t *testing.T) {
	tool, err := Tool(shell.Options{})
	require.NoError(t, err)
	assert.Equal(t, "run: ls", tool.DescriptiveMessage(map[string]any{"command": "ls"}))
	assert.Equal(t, "restart bash session", tool.DescriptiveMessage(map[string]any{"restart": true}))
	assert.False(t, tool.NeedsApproval(map[string]any{"command": "ls"}))
}
