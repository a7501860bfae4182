// Package tools merges the catalogs of ready provider connections into one
// lookup surface and executes calls through the owning connection.
package tools

import (
	"context"
	"log/slog"
	"sort"

	"github.com/toolbridge/toolbridge/internal/provider"
	"github.com/toolbridge/toolbridge/internal/schema"
)

// Connection is the provider surface the registry needs: catalog inspection
// and tool execution. *provider.Connection satisfies it.
type Connection interface {
	Name() string
	State() provider.State
	Catalog() provider.Catalog
	ExecuteTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// Entry pairs a tool descriptor with the connection that owns it.
type Entry struct {
	Conn Connection
	Desc provider.ToolDescriptor
}

// Registry is a read-only mapping from tool name to owning connection and
// descriptor. It reflects only connections in the Ready state at build time;
// rebuild it when the connection set changes.
type Registry struct {
	byName map[string]Entry
	names  []string
}

// BuildRegistry indexes the catalogs of the given connections by tool name.
// Connections not in the Ready state are skipped. When two providers expose
// the same tool name, the first-registered provider wins: connections are
// processed in name order, so the build is deterministic, and the shadowed
// descriptor is logged at warn level.
func BuildRegistry(conns []Connection) *Registry {
	ordered := make([]Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.State() == provider.StateReady {
			ordered = append(ordered, conn)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name() < ordered[j].Name() })

	r := &Registry{byName: make(map[string]Entry)}
	for _, conn := range ordered {
		catalog := conn.Catalog()
		for _, name := range catalog.Names() {
			desc, _ := catalog.Get(name)
			if existing, dup := r.byName[name]; dup {
				slog.Warn("Duplicate tool name, keeping first-registered provider",
					"tool", name, "kept", existing.Conn.Name(), "shadowed", conn.Name())
				continue
			}
			r.byName[name] = Entry{Conn: conn, Desc: desc}
			r.names = append(r.names, name)
		}
	}
	sort.Strings(r.names)
	return r
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Names returns the sorted names of every registered tool.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.byName) }

// Definitions returns the model-facing catalog of every registered tool.
func (r *Registry) Definitions() []schema.ToolDefinition {
	out := make([]schema.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name].Desc.Definition())
	}
	return out
}
