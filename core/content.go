package core

// Part represents a polymorphic segment of role-based content. Concrete
// part types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// FunctionCall describes a tool invocation request surfaced by a model.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Correlates call and response
	Name      string `json:"name"`                // Tool name
	Arguments string `json:"arguments,omitempty"` // JSON-encoded argument payload
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call. Error is
// populated instead of Response when execution failed; either way the
// response flows back into the conversation rather than aborting it.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Content holds a conversation role plus ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // user, assistant or tool
	Parts []Part `json:"parts"`
}

// NewUserContent wraps plain text as a user turn.
func NewUserContent(text string) Content {
	return Content{Role: "user", Parts: []Part{TextPart{Text: text}}}
}

// NewToolContent wraps a function response as a tool turn.
func NewToolContent(resp FunctionResponse) Content {
	return Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: resp}}}
}

// Text concatenates all text parts preserving order.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// FunctionCalls returns any FunctionCall parts contained within the
// content preserving their original order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns any FunctionResponse parts contained within
// the content preserving their original order.
func (c Content) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}
