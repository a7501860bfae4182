// Package provider manages tool-provider connections: spawning the provider
// subprocess, performing the JSON-RPC handshake, discovering the tool catalog,
// executing tools with a bounded retry policy, and tearing everything down
// exactly once.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Spec holds the launch parameters for one tool provider, as supplied by the
// configuration layer. Env entries override the ambient environment.
type Spec struct {
	Command string
	Args    []string
	Env     map[string]string
}

// State is the lifecycle state of a Connection.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection owns one provider process end to end. No other component holds
// a reference to the raw transport.
type Connection struct {
	name  string
	spec  Spec
	retry RetryPolicy

	mu      sync.Mutex
	state   State
	closed  bool
	sess    session
	catalog Catalog
}

// NewConnection creates a Connection in the Uninitialized state.
func NewConnection(name string, spec Spec, retry RetryPolicy) *Connection {
	return &Connection{
		name:  name,
		spec:  spec,
		retry: retry,
	}
}

// Name returns the provider's unique name.
func (c *Connection) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Catalog returns the tool catalog fetched during initialization.
// Empty until the connection is Ready.
func (c *Connection) Catalog() Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog
}

// Initialize spawns the provider process, performs the handshake, and fetches
// the tool catalog. Any failure moves the connection to Failed, releases the
// partially acquired resources, and is returned to the caller.
func (c *Connection) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("provider %q: connection is closed", c.name)
	}
	if c.state != StateUninitialized {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("provider %q: initialize called in state %s", c.name, st)
	}
	c.state = StateInitializing
	c.sess = newSession(c.name, c.spec)
	sess := c.sess
	c.mu.Unlock()

	slog.Debug("Initializing provider", "provider", c.name, "command", c.spec.Command, "args", c.spec.Args)

	fail := func(stage string, err error) error {
		ierr := &InitializationError{Provider: c.name, Stage: stage, Err: err}
		slog.Error("Provider initialization failed", "provider", c.name, "stage", stage, "err", err)
		c.mu.Lock()
		if c.state == StateInitializing {
			c.state = StateFailed
		}
		c.mu.Unlock()
		c.Cleanup()
		return ierr
	}

	if err := sess.start(ctx); err != nil {
		return fail("spawn", err)
	}
	if err := sess.initialize(ctx); err != nil {
		return fail("handshake", err)
	}

	infos, err := sess.listTools(ctx)
	if err != nil {
		return fail("catalog", err)
	}
	descriptors := make([]ToolDescriptor, 0, len(infos))
	for _, info := range infos {
		if info.Name == "" {
			continue
		}
		d, err := NewToolDescriptor(info.Name, info.Description, info.InputSchema)
		if err != nil {
			slog.Warn("Skipping tool with invalid schema", "provider", c.name, "tool", info.Name, "err", err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	catalog := NewCatalog(descriptors)

	c.mu.Lock()
	if c.state != StateInitializing {
		// Closed concurrently during initialization.
		c.mu.Unlock()
		c.Cleanup()
		return fmt.Errorf("provider %q: closed during initialization", c.name)
	}
	c.catalog = catalog
	c.state = StateReady
	c.mu.Unlock()

	slog.Info("Provider connected", "provider", c.name, "tools", catalog.Len())
	return nil
}

// ExecuteTool runs a catalog tool through the provider with the connection's
// retry policy. The tool must exist in the local catalog and the arguments
// must satisfy its schema; both checks fail fast without a provider call.
// The first successful attempt is returned; when every attempt fails the last
// failure is wrapped in an *ExecutionError.
//
// The result is structured data when the provider's response parses as JSON,
// plain text otherwise.
func (c *Connection) ExecuteTool(ctx context.Context, name string, args map[string]any) (any, error) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, fmt.Errorf("provider %q: %w", c.name, ErrNotInitialized)
	}
	sess := c.sess
	tool, ok := c.catalog.Get(name)
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("tool %q on provider %q: %w", name, c.name, ErrToolNotFound)
	}
	if err := tool.ValidateArguments(args); err != nil {
		return nil, err
	}

	attempts := c.retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		slog.Info("Executing tool", "provider", c.name, "tool", name, "attempt", attempt, "of", attempts)

		raw, err := sess.callTool(ctx, name, args)
		if err == nil {
			return normalizeResult(raw), nil
		}
		lastErr = err
		slog.Warn("Tool execution failed", "provider", c.name, "tool", name, "attempt", attempt, "err", err)

		if attempt < attempts {
			if werr := c.retry.wait(ctx, attempt); werr != nil {
				lastErr = werr
				break
			}
		}
	}
	return nil, &ExecutionError{Tool: name, Attempts: attempts, Err: lastErr}
}

// Cleanup releases the provider process and transport. It is idempotent and
// safe from any call site, including the failure path during initialization;
// teardown errors are logged and swallowed so Cleanup never masks an original
// error during unwind.
func (c *Connection) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.state != StateFailed {
		c.state = StateClosed
	}

	if c.sess != nil {
		if err := c.sess.close(); err != nil {
			slog.Error("Error during provider cleanup", "provider", c.name, "err", err)
		}
		c.sess = nil
	}
}

// normalizeResult decodes the raw text content as JSON when possible,
// otherwise returns it unchanged.
func normalizeResult(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
