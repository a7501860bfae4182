package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/toolbridge/toolbridge/internal/schema"
)

func ollamaServer(t *testing.T, status int, response any, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
}

func TestOllamaComplete_PlainReply(t *testing.T) {
	srv := ollamaServer(t, http.StatusOK, map[string]any{
		"message": map[string]any{"role": "assistant", "content": "Hello."},
	}, nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	history := schema.NewMessages(schema.NewUserMessage("hi"))

	msg, err := c.Complete(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if msg.Role != schema.RoleAssistant || msg.Content != "Hello." {
		t.Errorf("got %+v", msg)
	}
	if msg.HasToolCalls() {
		t.Error("unexpected tool calls")
	}
}

func TestOllamaComplete_ToolCalls(t *testing.T) {
	srv := ollamaServer(t, http.StatusOK, map[string]any{
		"message": map[string]any{
			"role":    "assistant",
			"content": "",
			"tool_calls": []map[string]any{
				{"function": map[string]any{
					"name":      "get_weather",
					"arguments": map[string]any{"city": "Oslo"},
				}},
			},
		},
	}, nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	msg, err := c.Complete(context.Background(), schema.NewMessages(schema.NewUserMessage("weather?")), nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.Name != "get_weather" {
		t.Errorf("tool name = %q", tc.Name)
	}
	if tc.Arguments["city"] != "Oslo" {
		t.Errorf("arguments = %v", tc.Arguments)
	}
}

func TestOllamaComplete_StripsThinkBlocks(t *testing.T) {
	srv := ollamaServer(t, http.StatusOK, map[string]any{
		"message": map[string]any{
			"role":    "assistant",
			"content": "<think>the user wants a greeting</think>\nHello.",
		},
	}, nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	msg, err := c.Complete(context.Background(), schema.NewMessages(schema.NewUserMessage("hi")), nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if msg.Content != "Hello." {
		t.Errorf("content = %q, want think block removed", msg.Content)
	}
}

func TestOllamaComplete_WrongRole(t *testing.T) {
	srv := ollamaServer(t, http.StatusOK, map[string]any{
		"message": map[string]any{"role": "user", "content": "echo"},
	}, nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	_, err := c.Complete(context.Background(), schema.NewMessages(schema.NewUserMessage("hi")), nil)

	var perr *schema.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *schema.ProtocolError, got %v", err)
	}
}

func TestOllamaComplete_MissingToolName(t *testing.T) {
	srv := ollamaServer(t, http.StatusOK, map[string]any{
		"message": map[string]any{
			"role": "assistant",
			"tool_calls": []map[string]any{
				{"function": map[string]any{"arguments": map[string]any{}}},
			},
		},
	}, nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	_, err := c.Complete(context.Background(), schema.NewMessages(schema.NewUserMessage("hi")), nil)

	var perr *schema.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *schema.ProtocolError, got %v", err)
	}
}

func TestOllamaComplete_HTTPError(t *testing.T) {
	srv := ollamaServer(t, http.StatusInternalServerError, map[string]any{"error": "model not loaded"}, nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	if _, err := c.Complete(context.Background(), schema.NewMessages(schema.NewUserMessage("hi")), nil); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestOllamaComplete_RequestBody(t *testing.T) {
	var captured map[string]any
	srv := ollamaServer(t, http.StatusOK, map[string]any{
		"message": map[string]any{"role": "assistant", "content": "ok"},
	}, &captured)
	defer srv.Close()

	tools := []schema.ToolDefinition{{
		Name:        "get_weather",
		Description: "weather",
		Parameters:  json.RawMessage(`{"type":"object"}`),
	}}
	history := schema.NewMessages(
		schema.NewSystemMessage("Be brief."),
		schema.NewUserMessage("weather?"),
	)

	c := NewOllamaClient(srv.URL, "llama3.1", time.Second)
	if _, err := c.Complete(context.Background(), history, tools); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if captured["model"] != "llama3.1" {
		t.Errorf("model = %v", captured["model"])
	}
	if captured["stream"] != false {
		t.Errorf("stream = %v, want false", captured["stream"])
	}
	msgs, ok := captured["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
	wireTools, ok := captured["tools"].([]any)
	if !ok || len(wireTools) != 1 {
		t.Fatalf("tools = %v", captured["tools"])
	}
}
