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

// OpenAIClient speaks any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient constructs a client for an OpenAI-compatible server.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	baseURL = llmutils.StringOrDefault(baseURL, "https://api.openai.com/v1")
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: newHTTPClient(timeout),
	}
}

// Complete implements schema.ModelClient.
func (c *OpenAIClient) Complete(ctx context.Context, history schema.Messages, tools []schema.ToolDefinition) (schema.Message, error) {
	body := map[string]any{
		"model":    c.model,
		"messages": openAIMessages(history),
	}
	if len(tools) > 0 {
		body["tools"] = wireDefinitions(tools)
		body["tool_choice"] = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.Message{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return schema.Message{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return schema.Message{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.Message{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return schema.Message{}, fmt.Errorf("chat completion HTTP %d: %s", resp.StatusCode, truncateBody(raw))
	}

	return parseOpenAIResponse(raw)
}

// openAIMessages converts the history to OpenAI wire format. Assistant tool
// calls carry their arguments as a JSON string; tool results reference the
// originating call by id.
func openAIMessages(history schema.Messages) []map[string]any {
	out := make([]map[string]any, 0, history.Len())
	for _, m := range history.Messages {
		wire := map[string]any{
			"role":    m.Role,
			"content": m.Content,
		}
		if m.Role == schema.RoleAssistant && len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = tc.ToWireMap()
			}
			wire["tool_calls"] = calls
		}
		if m.Role == schema.RoleTool {
			wire["tool_call_id"] = m.ToolCallID
			wire["name"] = m.ToolName
		}
		out = append(out, wire)
	}
	return out
}

func parseOpenAIResponse(raw []byte) (schema.Message, error) {
	var body struct {
		Choices []struct {
			Message struct {
				Role      string `json:"role"`
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.Message{}, &schema.ProtocolError{Reason: fmt.Sprintf("unparseable response: %v", err)}
	}
	if len(body.Choices) == 0 {
		return schema.Message{}, &schema.ProtocolError{Reason: "response has no choices"}
	}

	msg := body.Choices[0].Message
	if err := checkRole(msg.Role); err != nil {
		return schema.Message{}, err
	}

	var calls []schema.ToolCall
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			return schema.Message{}, &schema.ProtocolError{Reason: "tool call missing function name"}
		}
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return schema.Message{}, &schema.ProtocolError{Reason: fmt.Sprintf("unparseable tool arguments for %q: %v", tc.Function.Name, err)}
			}
		}
		calls = append(calls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return schema.NewAssistantMessage(msg.Content, calls), nil
}
