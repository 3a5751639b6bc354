package model

import (
	"context"

	"github.com/hupe1980/agentrelay/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to
// the model. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the agent loop.
type Request struct {
	Instructions string           `json:"instructions"` // System-level behavioral directive
	Contents     []core.Content   `json:"contents"`     // Ordered conversation turns
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed model output for one Request. Content holds
// either text parts (terminating reply) or function call parts (tool
// invocation requests), or both.
type Response struct {
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Text returns the concatenated text parts of the response.
func (r Response) Text() string { return r.Content.Text() }

// FunctionCalls returns the tool invocation requests in order.
func (r Response) FunctionCalls() []core.FunctionCall { return r.Content.FunctionCalls() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent loop to drive
// generation. A transport or provider failure surfaces as a non-nil
// error distinguishable from a normal reply.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}
