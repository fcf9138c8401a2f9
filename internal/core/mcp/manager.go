package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager owns every configured MCP server connection, adapted from the
// teacher's mcp.Manager (internal/mcp/manager.go): Start connects every
// auto_start server, Connect/Disconnect manage one at a time, and
// ToolSchemas/CallTool expose the aggregate surface the tool dispatcher
// needs.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]ServerConfig
	clients map[string]*Client
	logger  *slog.Logger
}

// NewManager builds a Manager over the given server configs.
func NewManager(servers []ServerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := make(map[string]ServerConfig, len(servers))
	for _, s := range servers {
		cfg[s.ID] = s
	}
	return &Manager{
		servers: cfg,
		clients: make(map[string]*Client),
		logger:  logger.With("component", "mcp"),
	}
}

// Start connects every server configured with AutoStart; a failure to
// connect one server is logged and does not prevent the others from
// starting, matching the teacher's Start loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.servers))
	for id, s := range m.servers {
		if s.AutoStart {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	for _, id := range ids {
		if err := m.Connect(ctx, id); err != nil {
			m.logger.Error("failed to connect to MCP server", "server", id, "error", err)
		}
	}
}

// Stop disconnects every connected server.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.clients {
		if err := c.Close(); err != nil {
			m.logger.Error("failed to close MCP client", "server", id, "error", err)
		}
		delete(m.clients, id)
	}
}

// Connect connects to serverID if not already connected.
func (m *Manager) Connect(ctx context.Context, serverID string) error {
	m.mu.RLock()
	cfg, known := m.servers[serverID]
	_, already := m.clients[serverID]
	m.mu.RUnlock()
	if !known {
		return fmt.Errorf("mcp: server %q not configured", serverID)
	}
	if already {
		return nil
	}

	client := newClient(cfg, m.logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.clients[serverID] = client
	m.mu.Unlock()
	m.logger.Info("connected to MCP server", "server", serverID, "name", client.ServerInfo().Name)
	return nil
}

// Disconnect disconnects serverID, if connected.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	client, ok := m.clients[serverID]
	if ok {
		delete(m.clients, serverID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return client.Close()
}

// CallTool calls toolName on serverID with arguments, a JSON-encoded object.
func (m *Manager) CallTool(ctx context.Context, serverID, toolName string, arguments []byte) (string, error) {
	m.mu.RLock()
	client, ok := m.clients[serverID]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("mcp: server %q not connected", serverID)
	}
	return client.CallTool(ctx, toolName, arguments)
}

// FindTool finds which connected server exposes a tool named name,
// returning ("", nil) if none do.
func (m *Manager) FindTool(name string) (serverID string, tool *Tool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.clients {
		for _, t := range c.Tools() {
			if t.Name == name {
				tc := t
				return id, &tc
			}
		}
	}
	return "", nil
}

// QualifiedTool is one MCP tool addressed as "mcp:server.tool", the
// dispatcher-facing name spec.md §4.7 requires so tool names never
// collide across servers.
type QualifiedTool struct {
	ServerID    string
	Name        string
	Description string
	InputSchema []byte
}

// QualifiedName returns the dispatcher-facing "mcp:server.tool" name.
func (q QualifiedTool) QualifiedName() string {
	return "mcp:" + q.ServerID + "." + q.Name
}

// AllTools returns every tool from every connected server, name-sorted
// within each server for deterministic tool-spec ordering.
func (m *Manager) AllTools() []QualifiedTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	serverIDs := make([]string, 0, len(m.clients))
	for id := range m.clients {
		serverIDs = append(serverIDs, id)
	}
	sort.Strings(serverIDs)

	var out []QualifiedTool
	for _, id := range serverIDs {
		tools := m.clients[id].Tools()
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		for _, t := range tools {
			out = append(out, QualifiedTool{
				ServerID:    id,
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return out
}

// ServerStatus describes one configured server's connection state.
type ServerStatus struct {
	ID        string
	Name      string
	Connected bool
	Tools     int
}

// ServerStatuses returns the status of every configured server, in
// config-id order.
func (m *Manager) ServerStatuses() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ServerStatus, 0, len(ids))
	for _, id := range ids {
		cfg := m.servers[id]
		st := ServerStatus{ID: id, Name: cfg.Name}
		if c, ok := m.clients[id]; ok {
			st.Connected = c.Connected()
			st.Tools = len(c.Tools())
		}
		out = append(out, st)
	}
	return out
}

// Status implements session.MCPConnectionManager: one short string per
// configured server, e.g. "github: connected (14 tools)".
func (m *Manager) Status() []string {
	statuses := m.ServerStatuses()
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		state := "disconnected"
		if st.Connected {
			state = fmt.Sprintf("connected (%d tools)", st.Tools)
		}
		out = append(out, fmt.Sprintf("%s: %s", st.ID, state))
	}
	return out
}
