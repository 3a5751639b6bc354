package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: openai
  name: gpt-4o-mini
  temperature: 0.2
agents:
  - name: researcher
    instructions: Research topics.
  - name: writer
    instructions: Write summaries.
    max_iterations: 5
triggers:
  - type: timer
    agent: researcher
    interval: 30s
    prompt: Check the news.
event_log: events.jsonl
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, 5, cfg.Agents[1].MaxIterations)
	require.Len(t, cfg.Triggers, 1)
	assert.Equal(t, Duration(30*time.Second), cfg.Triggers[0].Interval)
	assert.Equal(t, "events.jsonl", cfg.EventLog)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "model: [broken")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Model:  ModelConfig{Provider: "anthropic"},
			Agents: []AgentConfig{{Name: "helper"}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing provider", func(t *testing.T) {
		cfg := base()
		cfg.Model.Provider = ""
		assert.ErrorContains(t, cfg.Validate(), "provider is required")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base()
		cfg.Model.Provider = "bedrock"
		assert.ErrorContains(t, cfg.Validate(), "unknown model provider")
	})

	t.Run("no agents", func(t *testing.T) {
		cfg := base()
		cfg.Agents = nil
		assert.ErrorContains(t, cfg.Validate(), "at least one agent")
	})

	t.Run("duplicate agent", func(t *testing.T) {
		cfg := base()
		cfg.Agents = append(cfg.Agents, AgentConfig{Name: "helper"})
		assert.ErrorContains(t, cfg.Validate(), "duplicate agent name")
	})

	t.Run("trigger unknown agent", func(t *testing.T) {
		cfg := base()
		cfg.Triggers = []TriggerConfig{{Type: "timer", Agent: "ghost", Interval: Duration(time.Second)}}
		assert.ErrorContains(t, cfg.Validate(), "unknown agent")
	})

	t.Run("trigger unknown type", func(t *testing.T) {
		cfg := base()
		cfg.Triggers = []TriggerConfig{{Type: "webhook", Agent: "helper"}}
		assert.ErrorContains(t, cfg.Validate(), "unknown trigger type")
	})

	t.Run("timer without interval", func(t *testing.T) {
		cfg := base()
		cfg.Triggers = []TriggerConfig{{Type: "timer", Agent: "helper"}}
		assert.ErrorContains(t, cfg.Validate(), "positive interval")
	})

	t.Run("file_watch without path", func(t *testing.T) {
		cfg := base()
		cfg.Triggers = []TriggerConfig{{Type: "file_watch", Agent: "helper"}}
		assert.ErrorContains(t, cfg.Validate(), "needs a path")
	})

	t.Run("cron without schedule", func(t *testing.T) {
		cfg := base()
		cfg.Triggers = []TriggerConfig{{Type: "cron", Agent: "helper"}}
		assert.ErrorContains(t, cfg.Validate(), "needs a schedule")
	})
}
