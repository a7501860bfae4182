// Package model implements the model-collaborator clients: HTTP backends that
// take the conversation history plus tool catalog and return the next
// assistant message.
package model

import (
	"fmt"
	"net/http"
	"time"

	"github.com/toolbridge/toolbridge/internal/schema"
)

// Backend names accepted in configuration.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Params are the raw values needed to construct any schema.ModelClient.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	Backend string
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// New creates the model client for the configured backend.
func New(p Params) (schema.ModelClient, error) {
	switch p.Backend {
	case BackendOllama, "":
		return NewOllamaClient(p.BaseURL, p.Model, p.Timeout), nil
	case BackendOpenAI:
		return NewOpenAIClient(p.BaseURL, p.APIKey, p.Model, p.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", p.Backend)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// checkRole enforces the assistant-role contract on model responses.
func checkRole(role string) error {
	if role == "" {
		return &schema.ProtocolError{Reason: "response message has no role"}
	}
	if role != schema.RoleAssistant {
		return &schema.ProtocolError{Reason: fmt.Sprintf("response role is %q, want %q", role, schema.RoleAssistant)}
	}
	return nil
}

// wireDefinitions converts the tool catalog to function-calling wire format.
func wireDefinitions(tools []schema.ToolDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, td := range tools {
		out = append(out, td.ToWireMap())
	}
	return out
}
