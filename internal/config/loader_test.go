package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Model.Model != def.Model.Model {
		t.Errorf("expected default model %q, got %q", def.Model.Model, cfg.Model.Model)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"model": map[string]any{
			"backend": "openai",
			"model":   "gpt-4o",
		},
		"providers": map[string]any{
			"weather": map[string]any{
				"command": "weather-provider",
				"args":    []string{"--port", "0"},
			},
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Backend != "openai" {
		t.Errorf("expected backend %q, got %q", "openai", cfg.Model.Backend)
	}
	if cfg.Model.Model != "gpt-4o" {
		t.Errorf("expected model %q, got %q", "gpt-4o", cfg.Model.Model)
	}
	p, ok := cfg.Providers["weather"]
	if !ok {
		t.Fatal("weather provider missing")
	}
	if p.Command != "weather-provider" || len(p.Args) != 2 {
		t.Errorf("provider = %+v", p)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model:
  backend: openai
  model: gpt-4o
agent:
  maxToolRounds: 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Backend != "openai" {
		t.Errorf("expected backend openai, got %q", cfg.Model.Backend)
	}
	if cfg.Agent.MaxToolRounds != 5 {
		t.Errorf("expected maxToolRounds 5, got %d", cfg.Agent.MaxToolRounds)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid JSON (falls back to default), got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Model.Model != def.Model.Model {
		t.Errorf("expected default model %q, got %q", def.Model.Model, cfg.Model.Model)
	}
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-from-env")
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"model": map[string]any{
			"apiKey": "${TEST_API_KEY}",
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.APIKey != "sk-from-env" {
		t.Errorf("expected substituted key, got %q", cfg.Model.APIKey)
	}
}

func TestLoad_MissingEnvKeptVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"model": map[string]any{
			"apiKey": "${DEFINITELY_NOT_SET_ANYWHERE}",
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.APIKey != "${DEFINITELY_NOT_SET_ANYWHERE}" {
		t.Errorf("expected missing variable kept verbatim, got %q", cfg.Model.APIKey)
	}
}

func TestLoad_EnvSubstitutionInProviderEnv(t *testing.T) {
	t.Setenv("TEST_TOKEN", "tok-123")
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"providers": map[string]any{
			"weather": map[string]any{
				"command": "weather-provider",
				"env":     map[string]string{"API_TOKEN": "${TEST_TOKEN}"},
			},
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Providers["weather"].Env["API_TOKEN"]; got != "tok-123" {
		t.Errorf("expected substituted provider env, got %q", got)
	}
}

func TestLoad_PartialConfig_UsesDefaults(t *testing.T) {
	dir := t.TempDir()
	// Only set one field; the rest should come from DefaultConfig.
	path := writeConfig(t, dir, map[string]any{
		"model": map[string]any{"model": "custom-model"},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := DefaultConfig()
	if cfg.Model.Model != "custom-model" {
		t.Errorf("expected model %q, got %q", "custom-model", cfg.Model.Model)
	}
	if cfg.Agent.MaxToolRounds != def.Agent.MaxToolRounds {
		t.Errorf("expected default maxToolRounds %d, got %d", def.Agent.MaxToolRounds, cfg.Agent.MaxToolRounds)
	}
	if cfg.Gateway.Addr != def.Gateway.Addr {
		t.Errorf("expected default gateway addr %q, got %q", def.Gateway.Addr, cfg.Gateway.Addr)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := DefaultConfig()
	original.Model.Model = "gpt-4o-mini"
	original.Agent.RetryAttempts = 5

	if err := Save(&original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Model.Model != original.Model.Model {
		t.Errorf("model mismatch: got %q, want %q", loaded.Model.Model, original.Model.Model)
	}
	if loaded.Agent.RetryAttempts != original.Agent.RetryAttempts {
		t.Errorf("retryAttempts mismatch: got %d, want %d", loaded.Agent.RetryAttempts, original.Agent.RetryAttempts)
	}
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected permissions 0600, got %04o", perm)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	a := AgentConfig{RetryDelaySeconds: 1.5}
	if got := a.RetryDelay().Milliseconds(); got != 1500 {
		t.Errorf("RetryDelay = %dms, want 1500ms", got)
	}
}
