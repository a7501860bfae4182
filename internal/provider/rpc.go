package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

const protocolVersion = "2024-11-05"

// toolInfo is the wire-level tool entry returned by tools/list.
type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// session is the subprocess channel a Connection drives. It exposes exactly
// the three provider operations the core depends on, plus teardown.
// The production implementation is stdioSession; tests substitute fakes.
type session interface {
	start(ctx context.Context) error
	initialize(ctx context.Context) error
	listTools(ctx context.Context) ([]toolInfo, error)
	callTool(ctx context.Context, name string, args map[string]any) (string, error)
	close() error
}

// newSession creates the transport session for a provider spec.
// Overridable in tests.
var newSession = func(name string, spec Spec) session {
	return &stdioSession{name: name, spec: spec}
}

// stdioSession speaks newline-delimited JSON-RPC 2.0 with a provider
// subprocess over its stdin/stdout.
type stdioSession struct {
	name string
	spec Spec

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	nextID int64
}

// start resolves the executable path, merges the configured environment over
// the ambient one, and spawns the provider process.
func (s *stdioSession) start(ctx context.Context) error {
	path, err := exec.LookPath(s.spec.Command)
	if err != nil {
		return fmt.Errorf("resolve command %q: %w", s.spec.Command, err)
	}

	s.cmd = exec.CommandContext(ctx, path, s.spec.Args...)
	env := os.Environ()
	for k, v := range s.spec.Env {
		env = append(env, k+"="+v)
	}
	s.cmd.Env = env

	stdinPipe, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	s.stdin = stdinPipe
	s.stdout = bufio.NewReader(stdoutPipe)

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start provider process: %w", err)
	}
	return nil
}

// initialize performs the JSON-RPC handshake and sends the initialized
// notification (no response expected).
func (s *stdioSession) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "toolbridge", "version": "1.0"},
	}
	if _, err := s.call(ctx, "initialize", params); err != nil {
		return err
	}
	notif := map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"}
	data, _ := json.Marshal(notif)
	_, _ = fmt.Fprintf(s.stdin, "%s\n", data)
	return nil
}

// listTools returns the tools exposed by this provider.
func (s *stdioSession) listTools(ctx context.Context) ([]toolInfo, error) {
	resp, err := s.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []toolInfo `json:"tools"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("parse tools/list response: %w", err)
	}
	return result.Tools, nil
}

// callTool invokes a named tool and returns its text content. Text blocks are
// joined with newlines, matching what providers emit for multi-block results.
func (s *stdioSession) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	payload := map[string]any{
		"name":      name,
		"arguments": args,
	}
	resp, err := s.call(ctx, "tools/call", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return string(resp), nil
	}

	var parts []string
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	out := strings.Join(parts, "\n")
	if result.IsError {
		if out == "" {
			out = "tool reported an error"
		}
		return "", fmt.Errorf("provider error: %s", out)
	}
	return out, nil
}

func (s *stdioSession) close() error {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	return nil
}

// call sends one JSON-RPC request and reads stdout lines until the response
// with the matching id arrives. Non-JSON lines (provider log noise) are
// skipped. The channel delivers at most one response per call.
func (s *stdioSession) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(s.stdin, "%s\n", data); err != nil {
		return nil, fmt.Errorf("write to provider stdin: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line, err := s.stdout.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read provider stdout: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var resp struct {
			ID     *int64          `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			continue
		}
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("provider rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}
