package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted responses (Enqueue*) are served first in order; after the
// script is exhausted, canned responses registered per prompt apply, and
// finally a generic echo response.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	script    []Response
	responses map[string]string
	err       error
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// EnqueueText scripts a plain text turn.
func (m *MockModel) EnqueueText(text string) {
	m.enqueue(Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	})
}

// EnqueueToolCalls scripts a turn requesting the given tool invocations.
func (m *MockModel) EnqueueToolCalls(calls ...core.FunctionCall) {
	parts := make([]core.Part, 0, len(calls))
	for _, fc := range calls {
		if fc.ID == "" {
			fc.ID = core.NewID()
		}
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	m.enqueue(Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	})
}

// FailWith makes every subsequent Generate call return err, simulating a
// transport failure.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of all requests seen so far, for assertions.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many times Generate has been invoked.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockModel) enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}

	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		return &resp, nil
	}

	var inputText string
	if len(req.Contents) > 0 {
		inputText = req.Contents[len(req.Contents)-1].Text()
	}

	text := m.responses[inputText]
	if text == "" {
		text = fmt.Sprintf("Mock response to: %s", inputText)
	}

	return &Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
