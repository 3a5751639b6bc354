package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/hupe1980/agentrelay/internal/util"
)

// Func is the implementation signature wrapped by FunctionTool.
type Func func(ctx context.Context, args map[string]any) (any, error)

// FunctionTool is a generic adapter that exposes a plain Go function as
// an AgentRelay tool.
//
// Responsibilities:
//   - Holds a JSON-Schema-like parameter specification
//   - Validates supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with
//     consistent codes: VALIDATION_ERROR for schema mismatch,
//     EXECUTION_ERROR for underlying failures (custom codes preserved if
//     the function returns *ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct
// type using invopop/jsonschema. Field json tags become property names;
// jsonschema tags (description, required behavior via pointers/omitempty)
// are honored.
//
// Example:
//
//	type SearchArgs struct {
//	  Query string `json:"query" jsonschema:"description=The search query"`
//	}
//
//	searchTool := NewFunctionToolFromStruct(
//	  "web_search",
//	  "Search the web",
//	  SearchArgs{},
//	  func(ctx context.Context, args map[string]any) (any, error) { ... },
//	)
func NewFunctionToolFromStruct(name, description string, structType any, fn Func) *FunctionTool {
	return NewFunctionTool(name, description, SchemaFromStruct(structType), fn)
}

// SchemaFromStruct reflects a JSON schema for a struct type and flattens
// it to the map shape expected by model function declarations.
func SchemaFromStruct(structType any) map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	schema := r.Reflect(structType)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	// Drop reflector metadata irrelevant to function declarations.
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the tool description shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing accepted arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema and invokes the wrapped function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeValidationError,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if tErr, ok := err.(*ToolError); ok {
			return nil, tErr
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecutionError,
		}
	}

	return result, nil
}
