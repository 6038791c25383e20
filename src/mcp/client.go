package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned for requests pending when the connection ends.
var ErrClosed = errors.New("mcp connection closed")

// clientVersion is reported in clientInfo.
const clientVersion = "0.1.0"

// Client is a connection to one MCP server.
type Client struct {
	name      string
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan *Message
	done    chan struct{}

	caps ServerCapabilities
	info implementation
}

// NewClient serves requests over t. Call Initialize before anything else.
func NewClient(name string, t Transport, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		name:      name,
		transport: t,
		timeout:   timeout,
		logger:    logger.With("mcp_server", name),
		pending:   make(map[int64]chan *Message),
		done:      make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Start launches the server described by cfg and initializes it.
func Start(ctx context.Context, name string, cfg ServerConfig, logger *slog.Logger) (*Client, error) {
	t, err := StartStdio(cfg, logger)
	if err != nil {
		return nil, err
	}
	c := NewClient(name, t, cfg.Timeout, logger)
	if err := c.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp server %s: %w", name, err)
	}
	return c, nil
}

// Name returns the server name the client was created with.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) dispatch() {
	defer close(c.done)
	for msg := range c.transport.Messages() {
		if msg.Method != "" {
			c.handleServerMessage(msg)
			continue
		}
		id, err := strconv.ParseInt(string(msg.ID), 10, 64)
		if err != nil {
			c.logger.Warn("response with unknown id", "id", string(msg.ID))
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// handleServerMessage answers server requests. Only ping is supported.
func (c *Client) handleServerMessage(msg *Message) {
	if len(msg.ID) == 0 {
		c.logger.Debug("server notification", "method", msg.Method)
		return
	}
	reply := &Message{ID: msg.ID}
	if msg.Method == MethodPing {
		reply.Result = json.RawMessage("{}")
	} else {
		reply.Error = &RPCError{Code: ErrorCodeMethodNotFound, Message: "method not found: " + msg.Method}
	}
	if err := c.transport.Send(context.Background(), reply); err != nil {
		c.logger.Warn("failed to answer server request", "method", msg.Method, "error", err)
	}
}

// call sends a request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	id := c.nextID.Add(1)
	req := &Message{ID: json.RawMessage(strconv.FormatInt(id, 10)), Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = data
	}

	ch := make(chan *Message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.transport.Send(ctx, req); err != nil {
		return err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("%s: request timed out after %v", method, c.timeout)
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	}
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) error {
	var res initializeResult
	err := c.call(ctx, MethodInitialize, initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      implementation{Name: "gotrae", Version: clientVersion},
	}, &res)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	c.caps = res.Capabilities
	c.info = res.ServerInfo
	if err := c.transport.Send(ctx, &Message{Method: MethodInitialized}); err != nil {
		return err
	}
	c.logger.Info("mcp server initialized", "server_name", res.ServerInfo.Name, "server_version", res.ServerInfo.Version, "protocol", res.ProtocolVersion)
	return nil
}

// ListTools returns every tool the server offers, following pagination.
// A server without the tools capability has none.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if c.caps.Tools == nil {
		return nil, nil
	}
	var (
		out    []Tool
		cursor string
	)
	for {
		var res listToolsResult
		if err := c.call(ctx, MethodListTools, listToolsParams{Cursor: cursor}, &res); err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool runs a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	var res CallToolResult
	if err := c.call(ctx, MethodCallTool, callToolParams{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Close ends the connection and stops the server.
func (c *Client) Close() error {
	return c.transport.Close()
}
