// Package mcp implements spec.md §4.7: connecting to external Model
// Context Protocol servers over stdio, listing and calling their tools,
// and sanitizing their JSON schemas for the provider's tool-calling API.
package mcp

import "encoding/json"

// ServerConfig configures one MCP server connection, adapted from the
// teacher's mcp.ServerConfig narrowed to the stdio transport spec.md §4.7
// requires.
type ServerConfig struct {
	ID        string            `yaml:"id" json:"id"`
	Name      string            `yaml:"name" json:"name"`
	Command   string            `yaml:"command" json:"command"`
	Args      []string          `yaml:"args" json:"args,omitempty"`
	Env       map[string]string `yaml:"env" json:"env,omitempty"`
	WorkDir   string            `yaml:"workdir" json:"workdir,omitempty"`
	TimeoutMs int64             `yaml:"timeout_ms" json:"timeout_ms,omitempty"`
	AutoStart bool              `yaml:"auto_start" json:"auto_start,omitempty"`
}

// Tool describes one tool an MCP server exposes.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCallResult is the outcome of calling an MCP tool.
type ToolCallResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

// ToolResultContent is one block of an MCP tool result.
type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerInfo identifies the connected server, returned by its initialize call.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// JSON-RPC 2.0 envelope types, identical wire shape to the teacher's
// mcp.JSONRPCRequest/Response/Notification/Error.

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeResult struct {
	ServerInfo ServerInfo `json:"serverInfo"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}
