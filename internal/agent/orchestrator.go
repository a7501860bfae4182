// Package agent drives the conversation loop: model completion, tool
// execution, and history bookkeeping for one conversation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/toolbridge/toolbridge/internal/schema"
	"github.com/toolbridge/toolbridge/internal/shared/llmutils"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// DefaultMaxRounds bounds a single turn's tool-call rounds.
const DefaultMaxRounds = 20

// ErrMaxRounds is returned when a turn exhausts its tool-round budget
// without the model producing a final answer.
var ErrMaxRounds = errors.New("maximum tool rounds reached without a final answer")

// Orchestrator drives one conversation through zero or more rounds of tool
// calls to a final answer. Each Orchestrator owns its history exclusively;
// concurrent conversations get their own instances and never share state.
// One caller drives an Orchestrator at a time.
type Orchestrator struct {
	model     schema.ModelClient
	registry  *tools.Registry
	invoker   *tools.Invoker
	history   schema.Messages
	maxRounds int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystemPrompt seeds the history with a system message.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		if prompt != "" {
			o.history.AddSystem(prompt)
		}
	}
}

// WithHistory seeds the conversation with a previously saved history,
// replacing any system prompt already applied.
func WithHistory(history schema.Messages) Option {
	return func(o *Orchestrator) {
		o.history = history.Clone()
	}
}

// WithMaxRounds overrides the tool-round budget for one turn.
// Values below 1 keep the default.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxRounds = n
		}
	}
}

// NewOrchestrator creates an Orchestrator with a fresh history.
func NewOrchestrator(model schema.ModelClient, registry *tools.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:     model,
		registry:  registry,
		invoker:   tools.NewInvoker(registry),
		history:   schema.NewMessages(),
		maxRounds: DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// History returns a snapshot of the conversation so far.
func (o *Orchestrator) History() schema.Messages {
	return o.history.Clone()
}

// Turn runs one user turn: it appends the user message, asks the model for a
// completion, executes any requested tool calls in the order the model
// returned them, and repeats until the model answers with no further tool
// calls. The final assistant content is returned.
//
// Tool-level failures degrade gracefully: the model sees an inline error
// message and may retry or explain. Model-level failures abort the turn.
func (o *Orchestrator) Turn(ctx context.Context, input string) (string, error) {
	o.history.AddUser(input)

	reply, err := o.complete(ctx)
	if err != nil {
		return "", err
	}

	for round := 0; reply.HasToolCalls(); round++ {
		if round >= o.maxRounds {
			return "", fmt.Errorf("turn aborted after %d tool rounds: %w", o.maxRounds, ErrMaxRounds)
		}

		o.executeToolCalls(ctx, reply.ToolCalls)

		reply, err = o.complete(ctx)
		if err != nil {
			return "", err
		}
	}

	return reply.Content, nil
}

// complete asks the model for the next assistant message and appends it.
func (o *Orchestrator) complete(ctx context.Context) (schema.Message, error) {
	reply, err := o.model.Complete(ctx, o.history, o.registry.Definitions())
	if err != nil {
		return schema.Message{}, fmt.Errorf("model completion: %w", err)
	}
	o.history.Add(reply)
	return reply, nil
}

// executeToolCalls runs one round of tool calls sequentially, in the order
// the model requested them, so the result messages land in the history in
// that same order. Unknown tools are skipped with a warning and produce no
// history entry; failures are recorded inline as tool results.
func (o *Orchestrator) executeToolCalls(ctx context.Context, calls []schema.ToolCall) {
	slog.Info("Tool round", "calls", llmutils.ToolHint(calls))
	for _, call := range calls {
		result, err := o.invoker.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			slog.Warn("Tool not found in registry, skipping", "tool", call.Name)
			continue
		}

		if result.IsError() {
			slog.Error("Tool execution failed", "tool", call.Name, "err", result.Err)
			o.history.AddToolResult(call.ID, call.Name, fmt.Sprintf("Error: %v", result.Err))
			continue
		}
		o.history.AddToolResult(call.ID, call.Name, result.Content)
	}
}
