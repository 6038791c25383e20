package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/aisdk"
)

// reply is one scripted model answer.
type reply struct {
	resp *aisdk.Response
	err  error
}

func text(s string, calls ...aisdk.ToolCall) reply {
	r := &aisdk.Response{FinishReason: aisdk.FinishStop, ToolCalls: calls, Usage: &aisdk.Usage{}}
	if s != "" {
		r.Content = []aisdk.ContentItem{aisdk.NewTextContent(s)}
	}
	if len(calls) > 0 {
		r.FinishReason = aisdk.FinishToolCalls
	}
	return reply{resp: r}
}

func failure(err error) reply { return reply{err: err} }

type request struct {
	msgs  []aisdk.Message
	reuse bool
}

// fakeProvider replays scripted replies and records every request.
type fakeProvider struct {
	mu       sync.Mutex
	replies  []reply
	requests []request
	history  []aisdk.Message
	block    bool
}

func (f *fakeProvider) next(ctx context.Context, msgs []aisdk.Message, reuse bool) (*aisdk.Response, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request{msgs: msgs, reuse: reuse})
	if len(f.replies) == 0 {
		return text("still working").resp, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func (f *fakeProvider) SetChatHistory(msgs []aisdk.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = msgs
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []aisdk.Message, _ aisdk.ModelConfig, _ []*aisdk.ChatTool, reuse bool) (*aisdk.Response, error) {
	return f.next(ctx, msgs, reuse)
}

// ChatStream splits the scripted text in two chunks and sends the calls,
// finish reason and usage on the last one.
func (f *fakeProvider) ChatStream(ctx context.Context, msgs []aisdk.Message, _ aisdk.ModelConfig, _ []*aisdk.ChatTool, reuse bool) (aisdk.StreamInterface, error) {
	resp, err := f.next(ctx, msgs, reuse)
	if err != nil {
		return nil, err
	}
	txt := resp.Text()
	half := len(txt) / 2
	finish := resp.FinishReason
	chunks := []aisdk.StreamChunk{
		{Model: "fake-model", Content: []aisdk.ContentItem{aisdk.NewTextContent(txt[:half])}},
		{Content: []aisdk.ContentItem{aisdk.NewTextContent(txt[half:])}, ToolCalls: resp.ToolCalls, FinishReason: &finish, Usage: resp.Usage},
	}
	return aisdk.NewSliceStream(chunks, nil), nil
}

func (f *fakeProvider) ProviderName() string { return "fake" }

func (f *fakeProvider) requestsSeen() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

type toolInput struct {
	Text string `json:"text,omitempty"`
}

// testToolbox registers echo, fail and task_done. Calls are counted by name.
func testToolbox(t *testing.T, taskDoneErr error) (*agent.Toolbox, map[string]*atomic.Int32) {
	t.Helper()
	counts := map[string]*atomic.Int32{"echo": {}, "fail": {}, "task_done": {}}
	tb := agent.NewToolbox()
	require.NoError(t, tb.RegisterTool(agent.MustNewGenericTool("echo", "echo text", func(_ context.Context, in toolInput) (string, error) {
		counts["echo"].Add(1)
		return strings.ToUpper(in.Text), nil
	})))
	require.NoError(t, tb.RegisterTool(agent.MustNewGenericTool("fail", "always fails", func(_ context.Context, _ toolInput) (string, error) {
		counts["fail"].Add(1)
		return "", errors.New("disk on fire")
	})))
	require.NoError(t, tb.RegisterTool(agent.MustNewGenericTool(TaskDoneTool, "finish", func(_ context.Context, _ toolInput) (string, error) {
		counts["task_done"].Add(1)
		if taskDoneErr != nil {
			return "", taskDoneErr
		}
		return "Task done.", nil
	})))
	return tb, counts
}

func tc(name, id string, args map[string]any) aisdk.ToolCall {
	return aisdk.ToolCall{Name: name, CallID: id, Arguments: args}
}

func newExec() *Execution {
	return NewExecution("fix the bug", "/repo", []aisdk.Message{
		aisdk.SystemMessage("system"),
		aisdk.UserMessage("fix the bug"),
	})
}

// collector records events in arrival order.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) Process(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) Close() error { return nil }

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// recorder is an in-memory trajectory Recorder.
type recorder struct {
	started  int
	maxSteps int
	provider string
	steps    []Step
	finished *Execution
}

func (r *recorder) Start(_ context.Context, _ *Execution, provider, _ string, maxSteps int) error {
	r.started++
	r.provider = provider
	r.maxSteps = maxSteps
	return nil
}

func (r *recorder) RecordStep(_ context.Context, _ string, step Step) error {
	r.steps = append(r.steps, step)
	return nil
}

func (r *recorder) Finish(_ context.Context, exec *Execution) error {
	r.finished = exec
	return nil
}
