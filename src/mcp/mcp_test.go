package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/aisdk"
)

// fakeServer answers requests on the far end of a pipe pair.
type fakeServer struct {
	t        *testing.T
	handlers map[string]func(params json.RawMessage) (any, *RPCError)
	seen     chan string
}

func startFake(t *testing.T, handlers map[string]func(json.RawMessage) (any, *RPCError)) (*Client, *fakeServer) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	f := &fakeServer{t: t, handlers: handlers, seen: make(chan string, 64)}
	go f.serve(serverR, serverW)

	c := NewClient("fake", NewStreamTransport(clientR, clientW, nil), time.Second, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, f
}

func (f *fakeServer) serve(r io.Reader, w io.WriteCloser) {
	defer w.Close()
	enc := json.NewEncoder(w)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return
		}
		f.seen <- msg.Method
		if len(msg.ID) == 0 {
			continue
		}
		reply := Message{Jsonrpc: "2.0", ID: msg.ID}
		h, ok := f.handlers[msg.Method]
		if !ok {
			reply.Error = &RPCError{Code: ErrorCodeMethodNotFound, Message: "nope"}
		} else {
			res, rpcErr := h(msg.Params)
			if rpcErr != nil {
				reply.Error = rpcErr
			} else {
				data, _ := json.Marshal(res)
				reply.Result = data
			}
		}
		if err := enc.Encode(reply); err != nil {
			return
		}
	}
}

func initHandler(withTools bool) func(json.RawMessage) (any, *RPCError) {
	return func(json.RawMessage) (any, *RPCError) {
		caps := map[string]any{}
		if withTools {
			caps["tools"] = map[string]any{}
		}
		return map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    caps,
			"serverInfo":      map[string]any{"name": "fake", "version": "1"},
		}, nil
	}
}

func TestClientInitializeAndListTools(t *testing.T) {
	pages := 0
	c, f := startFake(t, map[string]func(json.RawMessage) (any, *RPCError){
		MethodInitialize: initHandler(true),
		MethodListTools: func(params json.RawMessage) (any, *RPCError) {
			var p listToolsParams
			_ = json.Unmarshal(params, &p)
			pages++
			if p.Cursor == "" {
				return listToolsResult{Tools: []Tool{{Name: "search"}}, NextCursor: "2"}, nil
			}
			return listToolsResult{Tools: []Tool{{Name: "fetch", Description: "Fetch a URL"}}}, nil
		},
	})
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx))
	assert.Equal(t, MethodInitialize, <-f.seen)
	assert.Equal(t, MethodInitialized, <-f.seen)

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, tools, 2)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "fetch", tools[1].Name)
}

func TestClientWithoutToolsCapability(t *testing.T) {
	c, _ := startFake(t, map[string]func(json.RawMessage) (any, *RPCError){
		MethodInitialize: initHandler(false),
	})
	require.NoError(t, c.Initialize(context.Background()))
	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestClientRPCError(t *testing.T) {
	c, _ := startFake(t, map[string]func(json.RawMessage) (any, *RPCError){})
	err := c.Initialize(context.Background())
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrorCodeMethodNotFound, rpcErr.Code)
}

func TestClientTimeout(t *testing.T) {
	silent, _ := io.Pipe()
	c := NewClient("slow", NewStreamTransport(silent, nopWriteCloser{}, nil), 50*time.Millisecond, nil)
	defer c.Close()

	err := c.Initialize(context.Background())
	assert.ErrorContains(t, err, "timed out")
}

func TestClientClosedStream(t *testing.T) {
	clientR, serverW := io.Pipe()
	c := NewClient("gone", NewStreamTransport(clientR, nopWriteCloser{}, nil), time.Second, nil)
	defer c.Close()
	require.NoError(t, serverW.Close())

	err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRemoteTool(t *testing.T) {
	c, _ := startFake(t, map[string]func(json.RawMessage) (any, *RPCError){
		MethodInitialize: initHandler(true),
		MethodCallTool: func(params json.RawMessage) (any, *RPCError) {
			var p callToolParams
			_ = json.Unmarshal(params, &p)
			if p.Arguments["q"] == "bad" {
				return CallToolResult{IsError: true, Content: []ContentItem{{Type: "text", Text: "no results"}}}, nil
			}
			return CallToolResult{Content: []ContentItem{
				{Type: "text", Text: "found " + p.Arguments["q"].(string)},
				{Type: "image", MimeType: "image/png", Data: "AAAA"},
			}}, nil
		},
	})
	require.NoError(t, c.Initialize(context.Background()))

	tool, err := NewTool(c, Tool{
		Name:        "web.search",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string","description":"query"}},"required":["q"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "fake_web_search", tool.GetName())
	assert.Contains(t, tool.GetDescription(), "fake MCP server")
	assert.Equal(t, []string{"q"}, tool.GetParameters().Required)
	assert.True(t, tool.NeedsApproval(nil))

	tb := agent.NewToolbox()
	require.NoError(t, tb.RegisterTool(tool))

	res := tb.ExecuteTool(context.Background(), aisdk.ToolCall{ID: "1", Name: "fake_web_search", Arguments: map[string]any{"q": "go"}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "found go\n[image content: image/png, 4 bytes]", res.Result)

	res = tb.ExecuteTool(context.Background(), aisdk.ToolCall{ID: "2", Name: "fake_web_search", Arguments: map[string]any{"q": "bad"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no results")
}

func TestNewToolDefaultsSchema(t *testing.T) {
	c := NewClient("srv", NewStreamTransport(io.MultiReader(), nopWriteCloser{}, nil), time.Second, nil)
	tool, err := NewTool(c, Tool{Name: "ping"})
	require.NoError(t, err)
	require.NotNil(t, tool.GetParameters().Type)
	assert.Equal(t, "object", string(*tool.GetParameters().Type.SimpleTypes))

	_, err = NewTool(c, Tool{Name: "bad", InputSchema: json.RawMessage(`[`)})
	assert.Error(t, err)
}

func TestManagerTools(t *testing.T) {
	c, _ := startFake(t, map[string]func(json.RawMessage) (any, *RPCError){
		MethodInitialize: initHandler(true),
		MethodListTools: func(json.RawMessage) (any, *RPCError) {
			return listToolsResult{Tools: []Tool{{Name: "a"}, {Name: "b"}}}, nil
		},
	})
	require.NoError(t, c.Initialize(context.Background()))
	m := NewManager(nil, c)

	tools, err := m.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "fake_a", tools[0].GetName())
	assert.Equal(t, "fake_b", tools[1].GetName())
	require.NoError(t, m.Close())
}

func TestConnectMissingCommand(t *testing.T) {
	_, err := Connect(context.Background(), map[string]ServerConfig{
		"missing": {Command: "/nonexistent/mcp-server"},
	}, nil)
	assert.ErrorContains(t, err, "failed to start")
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "github_create_issue", ToolName("github", "create_issue"))
	assert.Equal(t, "my_server_a_b", ToolName("my server", "a.b"))
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
