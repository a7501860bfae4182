package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownTool is returned by Invoke when the tool is absent from the
// registry. The orchestrator treats this as a skip, not a turn failure.
var ErrUnknownTool = errors.New("tool not registered")

// Result is the outcome of one tool invocation. Execution failures are
// carried in Err rather than raised across the orchestrator boundary, so the
// conversation can continue with an inline error message.
type Result struct {
	Content string
	Err     error
}

// IsError reports whether the invocation failed.
func (r Result) IsError() bool { return r.Err != nil }

// Invoker resolves a tool call to its owning connection and executes it.
type Invoker struct {
	registry *Registry
}

// NewInvoker returns an Invoker over the given registry.
func NewInvoker(registry *Registry) *Invoker {
	return &Invoker{registry: registry}
}

// Invoke executes the named tool through its owning connection. The only
// error it returns is ErrUnknownTool; every other failure — validation,
// exhausted retries, a closed connection — is folded into the Result.
func (iv *Invoker) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	entry, ok := iv.registry.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("tool %q: %w", name, ErrUnknownTool)
	}

	value, err := entry.Conn.ExecuteTool(ctx, name, args)
	if err != nil {
		return Result{Err: err}, nil
	}
	return Result{Content: stringifyResult(value)}, nil
}

// stringifyResult renders a normalized tool result as message text: plain
// strings pass through, structured data is re-encoded as compact JSON.
func stringifyResult(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
