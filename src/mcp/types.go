// Package mcp is a Model Context Protocol client. It starts tool servers over
// stdio, lists their tools and exposes them to the agent as ordinary tools.
package mcp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProtocolVersion is the MCP revision sent in initialize.
const ProtocolVersion = "2024-11-05"

// DefaultTimeout bounds a single request when ServerConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Request methods
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodListTools   = "tools/list"
	MethodCallTool    = "tools/call"
	MethodPing        = "ping"
)

// Standard JSON-RPC error codes
const (
	ErrorCodeParse          = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternal       = -32603
)

// Message is one JSON-RPC 2.0 frame. Requests carry Method and ID,
// notifications Method only, responses ID with Result or Error.
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error reply.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      implementation `json:"clientInfo"`
}

// ServerCapabilities is the part of the initialize result the client uses.
type ServerCapabilities struct {
	Tools *struct {
		ListChanged bool `json:"listChanged,omitempty"`
	} `json:"tools,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      implementation     `json:"serverInfo"`
}

// Tool is a tool advertised by a server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the reply to tools/call.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem is one piece of a tool result.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ServerConfig describes how to start a stdio server.
type ServerConfig struct {
	Command string
	Args    []string
	// Env is added to the inherited environment.
	Env map[string]string
	Dir string
	// Timeout bounds each request; zero means DefaultTimeout.
	Timeout time.Duration
}
