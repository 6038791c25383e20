package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/elee1766/gotrae/src/agent"
)

// Manager owns the connections to the configured servers.
type Manager struct {
	clients []*Client
	logger  *slog.Logger
}

// Connect starts every server in servers, in name order. If one fails the
// ones already started are stopped.
func Connect(ctx context.Context, servers map[string]ServerConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}
	for _, name := range slices.Sorted(maps.Keys(servers)) {
		c, err := Start(ctx, name, servers[name], logger)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m.clients = append(m.clients, c)
	}
	return m, nil
}

// NewManager wraps already initialized clients.
func NewManager(logger *slog.Logger, clients ...*Client) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{clients: clients, logger: logger}
}

// Tools lists the tools of every server as agent tools.
func (m *Manager) Tools(ctx context.Context) ([]agent.Tool, error) {
	var out []agent.Tool
	for _, c := range m.clients {
		list, err := c.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", c.Name(), err)
		}
		for _, t := range list {
			tool, err := NewTool(c, t)
			if err != nil {
				return nil, fmt.Errorf("mcp server %s: %w", c.Name(), err)
			}
			out = append(out, tool)
		}
		m.logger.Info("loaded mcp tools", "mcp_server", c.Name(), "count", len(list))
	}
	return out, nil
}

// Close stops every server.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %s: %w", c.Name(), err))
		}
	}
	m.clients = nil
	return errors.Join(errs...)
}
