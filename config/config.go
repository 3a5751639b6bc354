// Package config loads the YAML run configuration consumed by the CLI:
// a model block, a set of agents and an optional set of triggers.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of a run configuration file.
type Config struct {
	// Model selects the default model backing agents without their own.
	Model ModelConfig `yaml:"model"`

	// Agents declares the registered agent set. At least one is required.
	Agents []AgentConfig `yaml:"agents"`

	// Triggers declares optional non-human message producers.
	Triggers []TriggerConfig `yaml:"triggers"`

	// EventLog is the optional JSONL audit file path.
	EventLog string `yaml:"event_log"`
}

// ModelConfig selects and parameterizes a provider adapter.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // "openai" or "anthropic"
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// AgentConfig declares one agent. Tools cannot be declared in YAML; they
// are Go capabilities registered programmatically.
type AgentConfig struct {
	Name          string `yaml:"name"`
	Instructions  string `yaml:"instructions"`
	MaxIterations int    `yaml:"max_iterations"`
}

// TriggerConfig declares one trigger of the given type:
//
//	type: timer       interval + prompt
//	type: file_watch  path + poll_interval
//	type: cron        schedule + prompt
type TriggerConfig struct {
	Type         string   `yaml:"type"`
	Agent        string   `yaml:"agent"`
	Prompt       string   `yaml:"prompt"`
	Interval     Duration `yaml:"interval"`
	PollInterval Duration `yaml:"poll_interval"`
	Path         string   `yaml:"path"`
	Schedule     string   `yaml:"schedule"`
}

// Duration unmarshals Go duration strings like "30s" or "5m" from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks structural consistency: provider selection, agent name
// uniqueness and trigger bindings.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic":
	case "":
		return fmt.Errorf("config: model.provider is required")
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("config: at least one agent is required")
	}

	names := make(map[string]struct{}, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("config: agent name must not be empty")
		}
		if _, dup := names[a.Name]; dup {
			return fmt.Errorf("config: duplicate agent name %q", a.Name)
		}
		names[a.Name] = struct{}{}
	}

	for i, t := range c.Triggers {
		if _, ok := names[t.Agent]; !ok {
			return fmt.Errorf("config: trigger %d bound to unknown agent %q", i, t.Agent)
		}
		switch t.Type {
		case "timer":
			if t.Interval <= 0 {
				return fmt.Errorf("config: timer trigger %d needs a positive interval", i)
			}
		case "file_watch":
			if t.Path == "" {
				return fmt.Errorf("config: file_watch trigger %d needs a path", i)
			}
		case "cron":
			if t.Schedule == "" {
				return fmt.Errorf("config: cron trigger %d needs a schedule", i)
			}
		default:
			return fmt.Errorf("config: unknown trigger type %q", t.Type)
		}
	}

	return nil
}
