package session

import (
	"context"
	"testing"

	"github.com/toolbridge/toolbridge/internal/agent"
	"github.com/toolbridge/toolbridge/internal/schema"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// echoModel answers every completion with a fixed reply and never calls tools.
type echoModel struct {
	reply string
}

func (m *echoModel) Complete(_ context.Context, history schema.Messages, _ []schema.ToolDefinition) (schema.Message, error) {
	last := history.Last()
	return schema.NewAssistantMessage(m.reply+last.Content, nil), nil
}

func testManager(t *testing.T, dir string) *Manager {
	t.Helper()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	registry := tools.BuildRegistry(nil)
	factory := func(saved schema.Messages) *agent.Orchestrator {
		opts := []agent.Option{}
		if saved.Len() > 0 {
			opts = append(opts, agent.WithHistory(saved))
		}
		return agent.NewOrchestrator(&echoModel{reply: "echo: "}, registry, opts...)
	}
	return NewManager(store, factory)
}

func TestManager_SameKeyReturnsSameConversation(t *testing.T) {
	m := testManager(t, t.TempDir())

	a := m.GetOrCreate("ws:alice")
	b := m.GetOrCreate("ws:alice")
	if a != b {
		t.Error("expected the cached conversation for a repeated key")
	}
}

func TestManager_IsolatedHistories(t *testing.T) {
	m := testManager(t, t.TempDir())
	ctx := context.Background()

	alice := m.GetOrCreate("ws:alice")
	bob := m.GetOrCreate("ws:bob")

	if _, err := alice.Ask(ctx, "hello from alice"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if got := bob.History().Len(); got != 0 {
		t.Errorf("bob's history has %d messages, want 0", got)
	}
	if got := alice.History().Len(); got != 2 {
		t.Errorf("alice's history has %d messages, want 2", got)
	}
}

func TestManager_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m1 := testManager(t, dir)
	conv := m1.GetOrCreate("ws:alice")
	if _, err := conv.Ask(ctx, "first message"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	// A fresh manager simulates a process restart over the same workspace.
	m2 := testManager(t, dir)
	restored := m2.GetOrCreate("ws:alice")

	history := restored.History()
	if history.Len() != 2 {
		t.Fatalf("restored history has %d messages, want 2", history.Len())
	}
	if history.Messages[0].Content != "first message" {
		t.Errorf("restored history[0] = %+v", history.Messages[0])
	}
}

func TestConversation_AskAppendsAndReplies(t *testing.T) {
	m := testManager(t, t.TempDir())

	conv := m.GetOrCreate("cli:direct")
	reply, err := conv.Ask(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if reply != "echo: ping" {
		t.Errorf("reply = %q", reply)
	}
}
