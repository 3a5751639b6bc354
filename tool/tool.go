// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, side effects) with
// schema validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrelay/internal/util"
)

// Tool defines the interface for extending agent capabilities with
// external functions.
//
// Tools are registered at agent construction and are immutable
// thereafter. Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool within its owning
	// agent. Names should follow function naming conventions (snake_case
	// recommended).
	Name() string

	// Description returns a human-readable description of what this tool
	// does. It is provided to the model to help it understand when and
	// how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input
	// format, used for argument validation and model function calling.
	Parameters() map[string]any

	// Call executes the tool with structured arguments. A returned error
	// is recovered by the agent loop and fed back into the conversation
	// as tool-result content rather than aborting the cycle.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for categorization.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
