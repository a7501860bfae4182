package session

import (
	"context"
	"sync"

	"github.com/toolbridge/toolbridge/internal/agent"
	"github.com/toolbridge/toolbridge/internal/schema"
)

// OrchestratorFactory builds the orchestrator for one conversation, seeded
// with the saved history (empty for a brand-new conversation).
type OrchestratorFactory func(saved schema.Messages) *agent.Orchestrator

// Conversation pairs one session key with its orchestrator. A per-session
// lock enforces the one-caller-at-a-time contract; independent conversations
// proceed concurrently and never observe each other's history.
type Conversation struct {
	key   string
	store *Store

	mu   sync.Mutex
	orch *agent.Orchestrator
}

// Key returns the session key.
func (c *Conversation) Key() string { return c.key }

// Ask runs one user turn and persists the updated history.
func (c *Conversation) Ask(ctx context.Context, input string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.orch.Turn(ctx, input)
	if err != nil {
		return "", err
	}
	if saveErr := c.store.Save(c.key, c.orch.History()); saveErr != nil {
		return reply, saveErr
	}
	return reply, nil
}

// History returns a snapshot of the conversation so far.
func (c *Conversation) History() schema.Messages {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orch.History()
}

// Manager hands out one Conversation per session key.
type Manager struct {
	store   *Store
	factory OrchestratorFactory
	cache   sync.Map // key → *Conversation
}

// NewManager creates a Manager over the given store and factory.
func NewManager(store *Store, factory OrchestratorFactory) *Manager {
	return &Manager{store: store, factory: factory}
}

// GetOrCreate returns the cached conversation for key, loading persisted
// history from disk if present, or creating a fresh one.
func (m *Manager) GetOrCreate(key string) *Conversation {
	if v, ok := m.cache.Load(key); ok {
		return v.(*Conversation)
	}

	saved, _ := m.store.Load(key)
	c := &Conversation{
		key:   key,
		store: m.store,
		orch:  m.factory(saved),
	}

	actual, _ := m.cache.LoadOrStore(key, c)
	return actual.(*Conversation)
}
