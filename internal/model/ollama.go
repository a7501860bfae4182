package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/toolbridge/toolbridge/internal/schema"
	"github.com/toolbridge/toolbridge/internal/shared/llmutils"
)

// OllamaClient speaks the Ollama /api/chat endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient constructs a client for an Ollama server.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	baseURL = llmutils.StringOrDefault(baseURL, "http://localhost:11434")
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: newHTTPClient(timeout),
	}
}

// Complete implements schema.ModelClient.
func (c *OllamaClient) Complete(ctx context.Context, history schema.Messages, tools []schema.ToolDefinition) (schema.Message, error) {
	body := map[string]any{
		"model":    c.model,
		"messages": ollamaMessages(history),
		"stream":   false,
	}
	if len(tools) > 0 {
		body["tools"] = wireDefinitions(tools)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.Message{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return schema.Message{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return schema.Message{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.Message{}, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return schema.Message{}, fmt.Errorf("ollama HTTP %d: %s", resp.StatusCode, truncateBody(raw))
	}

	return parseOllamaResponse(raw)
}

// ollamaMessages converts the history to Ollama wire format. Assistant tool
// calls keep their arguments as objects; tool results go out as plain tool
// messages.
func ollamaMessages(history schema.Messages) []map[string]any {
	out := make([]map[string]any, 0, history.Len())
	for _, m := range history.Messages {
		wire := map[string]any{
			"role":    m.Role,
			"content": m.Content,
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = map[string]any{
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				}
			}
			wire["tool_calls"] = calls
		}
		if m.Role == schema.RoleTool && m.ToolName != "" {
			wire["tool_name"] = m.ToolName
		}
		out = append(out, wire)
	}
	return out
}

func parseOllamaResponse(raw []byte) (schema.Message, error) {
	var body struct {
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string         `json:"name"`
					Arguments map[string]any `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.Message{}, &schema.ProtocolError{Reason: fmt.Sprintf("unparseable ollama response: %v", err)}
	}
	if err := checkRole(body.Message.Role); err != nil {
		return schema.Message{}, err
	}

	var calls []schema.ToolCall
	for _, tc := range body.Message.ToolCalls {
		if tc.Function.Name == "" {
			return schema.Message{}, &schema.ProtocolError{Reason: "tool call missing function name"}
		}
		calls = append(calls, schema.ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	// Local models may embed reasoning blocks in the content; they are not
	// part of the answer.
	content := strings.TrimSpace(llmutils.StripThink(body.Message.Content))
	return schema.NewAssistantMessage(content, calls), nil
}

func truncateBody(raw []byte) string {
	return llmutils.Truncate(string(raw), 200)
}
