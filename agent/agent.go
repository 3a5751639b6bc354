// Package agent defines the Agent type (identity + instructions + tools)
// and the bounded think-act-observe loop executed per dispatched message.
package agent

import (
	"fmt"
	"sort"

	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// DefaultMaxIterations bounds the think-act-observe loop when no explicit
// limit is configured.
const DefaultMaxIterations = 10

// Agent is identity plus capability set: a routing name, a system-level
// behavioral directive, an immutable tool table and an iteration bound.
// Agents hold no conversation state between dispatches; every dispatched
// message starts a fresh conversation seeded with the instructions and
// the triggering content.
type Agent struct {
	name          string
	instructions  string
	mdl           model.Model
	tools         map[string]tool.Tool
	toolOrder     []string
	maxIterations int
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithModel binds a model implementation to the agent. Without one the
// orchestrator's default model is used.
func WithModel(m model.Model) Option {
	return func(a *Agent) { a.mdl = m }
}

// WithMaxIterations overrides the loop iteration bound.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithTools registers callable capabilities. Tool names must be unique
// within the agent.
func WithTools(tools ...tool.Tool) Option {
	return func(a *Agent) {
		for _, t := range tools {
			if _, exists := a.tools[t.Name()]; exists {
				panic(fmt.Sprintf("agent %q: duplicate tool name %q", a.name, t.Name()))
			}
			a.tools[t.Name()] = t
			a.toolOrder = append(a.toolOrder, t.Name())
		}
	}
}

// New constructs an Agent. The name is the routing key and must be
// unique within an orchestrator.
func New(name, instructions string, opts ...Option) *Agent {
	a := &Agent{
		name:          name,
		instructions:  instructions,
		tools:         make(map[string]tool.Tool),
		maxIterations: DefaultMaxIterations,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Name returns the agent's routing key.
func (a *Agent) Name() string { return a.name }

// Instructions returns the system-level behavioral directive.
func (a *Agent) Instructions() string { return a.instructions }

// Model returns the agent's bound model, or nil when it relies on the
// orchestrator default.
func (a *Agent) Model() model.Model { return a.mdl }

// MaxIterations returns the loop bound.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// Tool resolves a capability by exact name match.
func (a *Agent) Tool(name string) (tool.Tool, bool) {
	t, ok := a.tools[name]
	return t, ok
}

// Tools returns the agent's capabilities in registration order.
func (a *Agent) Tools() []tool.Tool {
	out := make([]tool.Tool, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		out = append(out, a.tools[name])
	}
	return out
}

// ToolNames returns the registered tool names sorted alphabetically.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolDefinitions returns the declared capability set in the shape
// expected by model function calling.
func (a *Agent) ToolDefinitions() []model.ToolDefinition {
	if len(a.toolOrder) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		t := a.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
