// Package session manages per-conversation state: each conversation gets its
// own orchestrator and history, persisted as JSONL files.
//
// File format:
//
//	Line 1:  {"_type":"metadata","key":"…","updated_at":"…"}
//	Line 2+: one JSON message object per line
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toolbridge/toolbridge/internal/schema"
)

// Store persists conversation histories as JSONL files under one directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at the workspace directory.
// It creates the sessions subdirectory if necessary.
func NewStore(workspace string) (*Store, error) {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads the saved history for key. The second return value reports
// whether a saved history existed; corrupt lines are skipped.
func (s *Store) Load(key string) (schema.Messages, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return schema.NewMessages(), false
	}

	history := schema.NewMessages()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			var meta struct {
				Type string `json:"_type"`
			}
			if json.Unmarshal([]byte(line), &meta) == nil && meta.Type == "metadata" {
				continue
			}
		}
		var msg schema.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		history.Add(msg)
	}
	return history, true
}

// Save writes the history for key, replacing any previous file.
func (s *Store) Save(key string, history schema.Messages) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	meta := map[string]any{
		"_type":      "metadata",
		"key":        key,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	for _, msg := range history.Messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("encode session message: %w", err)
		}
	}

	if err := os.WriteFile(s.path(key), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", key, err)
	}
	return nil
}

// path maps a session key to its file, replacing separators that would
// escape the sessions directory.
func (s *Store) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+".jsonl")
}
