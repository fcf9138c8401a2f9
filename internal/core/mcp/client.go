package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Client is one connected MCP server: its transport plus the cached tool
// list fetched at connect time, adapted from the teacher's mcp.Client.
type Client struct {
	cfg       ServerConfig
	transport *transport
	logger    *slog.Logger

	mu         sync.RWMutex
	tools      []Tool
	serverInfo ServerInfo
}

func newClient(cfg ServerConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:       cfg,
		transport: newTransport(cfg, logger),
		logger:    logger.With("mcp_server", cfg.ID),
	}
}

// Connect starts the subprocess, performs the MCP initialize handshake,
// and caches the server's tool list.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.connect(ctx); err != nil {
		return err
	}

	result, err := c.transport.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "agentcore", "version": "0.1.0"},
	})
	if err != nil {
		c.transport.close()
		return fmt.Errorf("mcp: initialize %q: %w", c.cfg.ID, err)
	}
	var init initializeResult
	if err := json.Unmarshal(result, &init); err == nil {
		c.mu.Lock()
		c.serverInfo = init.ServerInfo
		c.mu.Unlock()
	}

	if err := c.transport.notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("mcp: initialized notification failed", "error", err)
	}

	return c.refreshTools(ctx)
}

// refreshTools calls tools/list and updates the cached tool set.
func (c *Client) refreshTools(ctx context.Context) error {
	result, err := c.transport.call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("mcp: tools/list %q: %w", c.cfg.ID, err)
	}
	var parsed listToolsResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("mcp: parse tools/list %q: %w", c.cfg.ID, err)
	}
	c.mu.Lock()
	c.tools = parsed.Tools
	c.mu.Unlock()
	return nil
}

// Close terminates the subprocess.
func (c *Client) Close() error { return c.transport.close() }

// Connected reports whether the subprocess is alive.
func (c *Client) Connected() bool { return c.transport.connectedNow() }

// Tools returns the cached tool list.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// ServerInfo returns the server's self-reported identity.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// CallTool invokes name on this server with arguments, returning the
// concatenated text content of the result.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcp: invalid arguments for %q: %w", name, err)
		}
	}
	result, err := c.transport.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	var parsed ToolCallResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", fmt.Errorf("mcp: parse tools/call result: %w", err)
	}
	if parsed.IsError {
		return "", fmt.Errorf("mcp: tool %q returned an error result", name)
	}
	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
