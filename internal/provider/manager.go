package provider

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Manager owns the lifecycle of all configured provider connections.
type Manager struct {
	conns []*Connection
}

// NewManager builds a Manager with one Connection per configured provider.
// Connections are ordered by provider name so downstream registry builds are
// deterministic.
func NewManager(specs map[string]Spec, retry RetryPolicy) *Manager {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	m := &Manager{}
	for _, name := range names {
		m.conns = append(m.conns, NewConnection(name, specs[name], retry))
	}
	return m
}

// ConnectAll initializes every connection concurrently. One provider's
// failure never prevents the others from becoming Ready: failures are logged
// and the provider is left out of the ready set.
func (m *Manager) ConnectAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range m.conns {
		conn := conn
		g.Go(func() error {
			if err := conn.Initialize(gctx); err != nil {
				slog.Error("Provider excluded", "provider", conn.Name(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Providers connected", "ready", len(m.Ready()), "configured", len(m.conns))
}

// Ready returns the connections currently in the Ready state, in name order.
func (m *Manager) Ready() []*Connection {
	var out []*Connection
	for _, conn := range m.conns {
		if conn.State() == StateReady {
			out = append(out, conn)
		}
	}
	return out
}

// Connections returns every managed connection regardless of state.
func (m *Manager) Connections() []*Connection {
	out := make([]*Connection, len(m.conns))
	copy(out, m.conns)
	return out
}

// CloseAll tears down every connection. Safe to call more than once.
func (m *Manager) CloseAll() {
	for _, conn := range m.conns {
		conn.Cleanup()
	}
}
