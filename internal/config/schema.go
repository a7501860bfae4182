// Package config defines the toolbridge configuration schema and loader.
//
// JSON keys use camelCase; the same schema loads from YAML files.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// ProviderConfig holds the launch descriptor for one tool provider: the
// subprocess command, its arguments, and environment overrides applied on
// top of the ambient environment.
type ProviderConfig struct {
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args" yaml:"args"`
	Env     map[string]string `json:"env" yaml:"env"`
}

// ModelConfig selects and configures the model backend.
type ModelConfig struct {
	Backend        string `json:"backend" yaml:"backend"` // "ollama" | "openai"
	BaseURL        string `json:"baseUrl" yaml:"baseUrl"`
	Model          string `json:"model" yaml:"model"`
	APIKey         string `json:"apiKey" yaml:"apiKey"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// Timeout returns the request timeout as a duration.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// AgentConfig tunes the conversation loop and tool retries.
type AgentConfig struct {
	SystemPrompt      string  `json:"systemPrompt" yaml:"systemPrompt"`
	MaxToolRounds     int     `json:"maxToolRounds" yaml:"maxToolRounds"`
	RetryAttempts     int     `json:"retryAttempts" yaml:"retryAttempts"`
	RetryDelaySeconds float64 `json:"retryDelaySeconds" yaml:"retryDelaySeconds"`
}

// RetryDelay returns the inter-attempt delay as a duration.
func (a AgentConfig) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelaySeconds * float64(time.Second))
}

// GatewayConfig configures the HTTP chat gateway.
type GatewayConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// ScheduleConfig is one scheduled prompt: a cron expression and the prompt
// text fed through the orchestrator each time it fires.
type ScheduleConfig struct {
	Name    string `json:"name" yaml:"name"`
	Cron    string `json:"cron" yaml:"cron"`
	Prompt  string `json:"prompt" yaml:"prompt"`
	Session string `json:"session" yaml:"session"`
}

// Config is the root configuration.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Model     ModelConfig               `json:"model" yaml:"model"`
	Agent     AgentConfig               `json:"agent" yaml:"agent"`
	Gateway   GatewayConfig             `json:"gateway" yaml:"gateway"`
	Schedules []ScheduleConfig          `json:"schedules" yaml:"schedules"`
	Workspace string                    `json:"workspace" yaml:"workspace"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Providers: map[string]ProviderConfig{},
		Model: ModelConfig{
			Backend:        "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1",
			TimeoutSeconds: 30,
		},
		Agent: AgentConfig{
			SystemPrompt:      "You are a helpful assistant. You can call tools to get information.",
			MaxToolRounds:     20,
			RetryAttempts:     2,
			RetryDelaySeconds: 1.0,
		},
		Gateway: GatewayConfig{
			Addr: "localhost:18790",
		},
		Workspace: filepath.Join(DataDir(), "workspace"),
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolbridge/config.json"
	}
	return filepath.Join(home, ".toolbridge", "config.json")
}

// DataDir returns the toolbridge data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolbridge"
	}
	return filepath.Join(home, ".toolbridge")
}

// WorkspacePath returns the workspace directory, defaulting under DataDir.
func (c *Config) WorkspacePath() string {
	if c.Workspace == "" {
		return filepath.Join(DataDir(), "workspace")
	}
	return c.Workspace
}
