package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses the config file at path. YAML is selected by file
// extension (.yaml/.yml), JSON otherwise. If path is empty, ConfigPath() is
// used. String values may reference environment variables as ${VAR}; missing
// variables are kept verbatim with a warning.
//
// A missing file yields DefaultConfig(). On parse failure a warning is
// printed and DefaultConfig() is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	raw, err := parseRaw(path, data)
	if err != nil {
		fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
		fmt.Println("Using default configuration.")
		cfg := DefaultConfig()
		return &cfg, nil
	}

	substituted := substituteVariables(raw)

	// Round-trip through JSON so the typed unmarshal merges over defaults.
	merged, err := json.Marshal(substituted)
	if err != nil {
		return nil, fmt.Errorf("normalise config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(merged, &cfg); err != nil {
		fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
		fmt.Println("Using default configuration.")
		cfg2 := DefaultConfig()
		return &cfg2, nil
	}

	return &cfg, nil
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func parseRaw(path string, data []byte) (any, error) {
	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// substituteVariables recursively replaces ${VAR} references in string values
// with environment variable values.
func substituteVariables(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = substituteVariables(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteVariables(item)
		}
		return out
	case string:
		return replaceVariables(val)
	default:
		return v
	}
}

// replaceVariables expands ${VAR} patterns from the environment. Unknown
// variables are kept as written so a typo is visible rather than silently
// blanked.
func replaceVariables(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if env, ok := os.LookupEnv(name); ok {
			return env
		}
		slog.Warn("Environment variable not found", "var", name)
		return match
	})
}
