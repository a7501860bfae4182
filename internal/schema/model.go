package schema

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolDefinition is the model-facing description of one callable tool:
// what the model sees in its tool catalog when completing a turn.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema for the arguments
}

// ToWireMap serialises the definition into OpenAI function-calling format.
func (td ToolDefinition) ToWireMap() map[string]any {
	var params any
	if err := json.Unmarshal(td.Parameters, &params); err != nil || params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        td.Name,
			"description": td.Description,
			"parameters":  params,
		},
	}
}

// ModelClient is the capability interface every model backend must satisfy.
// Complete sends the full history plus the current tool catalog and returns
// the next assistant message. Transport failures and malformed responses
// (wrong role, unparseable body) are returned as errors and abort the turn.
type ModelClient interface {
	Complete(ctx context.Context, history Messages, tools []ToolDefinition) (Message, error)
}

// ProtocolError reports a malformed or unexpected model response, such as a
// message whose role is not "assistant". It is not recovered locally.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("model protocol error: %s", e.Reason)
}
