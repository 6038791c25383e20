package traeagent

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/executor"
)

// scriptedProvider answers with canned responses and records every request.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []*aisdk.Response
	requests [][]aisdk.Message
}

func (p *scriptedProvider) SetChatHistory([]aisdk.Message) {}

func (p *scriptedProvider) Chat(_ context.Context, msgs []aisdk.Message, _ aisdk.ModelConfig, _ []*aisdk.ChatTool, _ bool) (*aisdk.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, msgs)
	if len(p.replies) == 0 {
		return &aisdk.Response{Content: []aisdk.ContentItem{aisdk.NewTextContent("thinking")}, FinishReason: aisdk.FinishStop}, nil
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuse bool) (aisdk.StreamInterface, error) {
	resp, err := p.Chat(ctx, msgs, cfg, tools, reuse)
	if err != nil {
		return nil, err
	}
	finish := resp.FinishReason
	return aisdk.NewSliceStream([]aisdk.StreamChunk{{Content: resp.Content, ToolCalls: resp.ToolCalls, FinishReason: &finish, Usage: resp.Usage}}, nil), nil
}

func (p *scriptedProvider) ProviderName() string { return "scripted" }

func callReply(calls ...aisdk.ToolCall) *aisdk.Response {
	return &aisdk.Response{ToolCalls: calls, FinishReason: aisdk.FinishToolCalls, Usage: &aisdk.Usage{InputTokens: 10, OutputTokens: 2}}
}

func taskDone(id string) aisdk.ToolCall {
	return aisdk.ToolCall{Name: "task_done", CallID: id, Arguments: map[string]any{}}
}

func newTestAgent(t *testing.T, p *scriptedProvider, opts Options) (*Agent, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo", 0o755))
	opts.Fs = fs
	if opts.Diff == nil {
		opts.Diff = func(context.Context, string) (string, error) { return "", nil }
	}
	a := New(p, aisdk.ModelConfig{Model: "test-model"}, opts)
	t.Cleanup(a.Close)
	return a, fs
}

func TestNewTaskValidation(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedProvider{}, Options{})

	assert.ErrorIs(t, a.NewTask("", map[string]string{ArgProjectPath: "/repo"}, nil), executor.ErrTaskRequired)
	assert.ErrorIs(t, a.NewTask("fix it", nil, nil), executor.ErrProjectPathRequired)
	err := a.NewTask("fix it", map[string]string{ArgProjectPath: "repo"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project path must be absolute")

	err = a.NewTask("fix it", map[string]string{ArgProjectPath: "/repo"}, []string{"telepathy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool: telepathy")

	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, executor.ErrTaskRequired)
}

func TestNewTaskMessages(t *testing.T) {
	a, fs := newTestAgent(t, &scriptedProvider{}, Options{})
	require.NoError(t, afero.WriteFile(fs, "/repo/Project_rules.md", []byte("Keep functions short."), 0o644))

	require.NoError(t, a.NewTask("fix the bug", map[string]string{
		ArgProjectPath: "/repo",
		ArgIssue:       "Parser drops the last token.",
	}, []string{"str_replace_based_edit_tool", "task_done"}))

	exec := a.Execution()
	require.NotNil(t, exec)
	assert.Equal(t, "fix the bug", exec.Task)
	assert.Equal(t, executor.AgentIdle, exec.State)
	assert.ElementsMatch(t, []string{"str_replace_based_edit_tool", "task_done"}, a.Toolbox().Names())

	require.Len(t, exec.Messages, 2)
	assert.Equal(t, aisdk.RoleSystem, exec.Messages[0].Role)
	system := exec.Messages[0].Text()
	assert.Contains(t, system, "Keep functions short.")
	assert.Contains(t, system, "Tool: str_replace_based_edit_tool")
	assert.NotContains(t, system, "Tool: bash")
	assert.Equal(t, aisdk.RoleUser, exec.Messages[1].Role)
	assert.Equal(t,
		"[Project root path]:\n/repo\n\n[Problem statement]: We're currently solving the following issue within our repository. Here's the issue text:\nParser drops the last token.\n",
		exec.Messages[1].Text())
}

func TestUserMessageFallsBackToTask(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedProvider{}, Options{})
	require.NoError(t, a.NewTask("add a flag", map[string]string{ArgProjectPath: "/repo"}, []string{"task_done"}))
	assert.Contains(t, a.Execution().Messages[1].Text(), "Here's the issue text:\nadd a flag\n")
}

func TestRunEditsAndFinishes(t *testing.T) {
	p := &scriptedProvider{replies: []*aisdk.Response{
		callReply(aisdk.ToolCall{Name: "str_replace_based_edit_tool", CallID: "c1", Arguments: map[string]any{
			"command": "create", "path": "/repo/main.go", "file_text": "package main\n",
		}}),
		callReply(taskDone("c2")),
	}}
	a, fs := newTestAgent(t, p, Options{MaxSteps: 5})
	require.NoError(t, a.NewTask("create main.go", map[string]string{ArgProjectPath: "/repo"}, []string{"str_replace_based_edit_tool", "task_done"}))

	exec, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Equal(t, executor.AgentCompleted, exec.State)
	require.NotNil(t, exec.FinalResult)
	assert.Equal(t, "Task done.", *exec.FinalResult)
	assert.Len(t, exec.Steps, 2)
	assert.Equal(t, 20, exec.Usage.InputTokens)

	content, err := afero.ReadFile(fs, "/repo/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))

	require.Len(t, p.requests, 2)
	require.Len(t, p.requests[1], 1)
	assert.Equal(t, aisdk.RoleTool, p.requests[1][0].Role)
}

func TestMustPatchRejectsEmptyDiff(t *testing.T) {
	var mu sync.Mutex
	diffs := []string{"", "diff --git a/x b/x\n"}
	diff := func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		d := diffs[0]
		if len(diffs) > 1 {
			diffs = diffs[1:]
		}
		return d, nil
	}
	p := &scriptedProvider{replies: []*aisdk.Response{callReply(taskDone("c1")), callReply(taskDone("c2"))}}
	a, fs := newTestAgent(t, p, Options{MaxSteps: 5, Diff: diff})
	require.NoError(t, a.NewTask("fix", map[string]string{
		ArgProjectPath: "/repo",
		ArgMustPatch:   "true",
		ArgPatchPath:   "/out/fix.patch",
	}, []string{"task_done"}))

	exec, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Len(t, exec.Steps, 2)

	require.Len(t, p.requests, 2)
	require.Len(t, p.requests[1], 2)
	assert.Equal(t, aisdk.RoleTool, p.requests[1][0].Role)
	require.NotNil(t, p.requests[1][0].ToolResult)
	assert.Equal(t, "c1", p.requests[1][0].ToolResult.CallID)
	assert.Equal(t, EmptyPatchMessage, p.requests[1][1].Text())

	patch, err := afero.ReadFile(fs, "/out/fix.patch")
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/x b/x\n", string(patch))
}

func TestPatchWrittenOnFailure(t *testing.T) {
	diff := func(context.Context, string) (string, error) { return "partial\n", nil }
	a, fs := newTestAgent(t, &scriptedProvider{}, Options{MaxSteps: 2, Diff: diff})
	require.NoError(t, a.NewTask("fix", map[string]string{ArgProjectPath: "/repo", ArgPatchPath: "/repo/out.patch"}, []string{"task_done"}))

	exec, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, exec.Success)
	assert.Equal(t, executor.AgentError, exec.State)

	patch, err := afero.ReadFile(fs, "/repo/out.patch")
	require.NoError(t, err)
	assert.Equal(t, "partial\n", string(patch))
}

func TestStartWaits(t *testing.T) {
	p := &scriptedProvider{replies: []*aisdk.Response{callReply(taskDone("c1"))}}
	a, _ := newTestAgent(t, p, Options{Stream: true})
	require.NoError(t, a.NewTask("done", map[string]string{ArgProjectPath: "/repo"}, []string{"task_done"}))

	h, err := a.Start(context.Background())
	require.NoError(t, err)
	exec, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, exec.Success)
}

func TestNewTaskResetsPreviousTools(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedProvider{}, Options{})
	require.NoError(t, a.NewTask("one", map[string]string{ArgProjectPath: "/repo"}, []string{"todo_list"}))
	first := a.Toolbox()
	res := first.ExecuteTool(context.Background(), aisdk.ToolCall{Name: "todo_list", CallID: "1", Arguments: map[string]any{"command": "new", "items": []any{"a"}}})
	require.True(t, res.Success, res.Error)

	require.NoError(t, a.NewTask("two", map[string]string{ArgProjectPath: "/repo"}, []string{"todo_list"}))
	res = first.ExecuteTool(context.Background(), aisdk.ToolCall{Name: "todo_list", CallID: "2", Arguments: map[string]any{"command": "display"}})
	assert.Equal(t, "Todo list is empty", res.Result)
	assert.NotSame(t, first, a.Toolbox())
}

type echoInput struct {
	Text string `json:"text" required:"true"`
}

func TestExtraToolsRegistered(t *testing.T) {
	echo := agent.MustNewGenericTool("echo", "Echo the text.", func(_ context.Context, in echoInput) (string, error) {
		return in.Text, nil
	})
	a, _ := newTestAgent(t, &scriptedProvider{}, Options{ExtraTools: []agent.Tool{echo}})
	require.NoError(t, a.NewTask("x", map[string]string{ArgProjectPath: "/repo"}, []string{"task_done"}))
	assert.Equal(t, []string{"task_done", "echo"}, a.Toolbox().Names())
	assert.Contains(t, a.Execution().Messages[0].Text(), "echo")

	dup, _ := newTestAgent(t, &scriptedProvider{}, Options{ExtraTools: []agent.Tool{echo, echo}})
	assert.ErrorContains(t, dup.NewTask("x", map[string]string{ArgProjectPath: "/repo"}, []string{"task_done"}), "already registered")
}
